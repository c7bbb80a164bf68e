package importer

import (
	"bufio"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"reelqueue/internal/logging"
	"reelqueue/internal/services"
)

var gzipMagic = []byte{0x1f, 0x8b}

// ExportPath returns where the export for source is stored under dir.
func ExportPath(dir, source string) string {
	sum := sha256.Sum256([]byte(source))
	return filepath.Join(dir, hex.EncodeToString(sum[:])[:16]+".jsonl")
}

// Fetch materializes source as a plain JSON-lines file under the export
// directory and returns its path. HTTP(S) sources are downloaded; local paths
// (bare or file://) are copied, and gzipped input is decompressed either way.
// Cursor offsets always point into that private copy, so later edits to the
// original file cannot shift a resumed import.
func (im *Importer) Fetch(ctx context.Context, source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", services.Wrap(services.ErrValidation, "import", "fetch", "export source is required", nil)
	}
	parsed, err := url.Parse(source)
	if err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
		return im.download(ctx, source)
	}
	local := source
	if err == nil && parsed.Scheme == "file" {
		local = parsed.Path
	}
	return im.localExport(source, local)
}

func (im *Importer) download(ctx context.Context, source string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "import", "download", "build request", err)
	}
	resp, err := im.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrTransient, "import", "download", source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusNotFound {
			marker = services.ErrNotFound
		}
		return "", services.Wrap(marker, "import", "download", fmt.Sprintf("%s returned %s", source, resp.Status), nil)
	}
	dest := ExportPath(im.exportDir, source)
	if err := writeExport(dest, resp.Body); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrTransient, "import", "download", source, err)
	}
	im.logger.Info("export downloaded",
		logging.String("source", source),
		logging.String("path", dest),
		logging.String(logging.FieldEventType, "import_download_complete"),
	)
	return dest, nil
}

func (im *Importer) localExport(source, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "import", "open", path, err)
	}
	defer file.Close()
	dest := ExportPath(im.exportDir, source)
	if err := writeExport(dest, file); err != nil {
		return "", services.Wrap(services.ErrValidation, "import", "copy", path, err)
	}
	im.logger.Debug("export copied",
		logging.String("source", source),
		logging.String("path", dest),
		logging.String(logging.FieldEventType, "import_copy_complete"),
	)
	return dest, nil
}

// writeExport copies body to dest, gunzipping when it starts with the gzip
// magic bytes. The file appears at dest only once complete.
func writeExport(dest string, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	br := bufio.NewReader(body)
	var src io.Reader = br
	if magic, err := br.Peek(len(gzipMagic)); err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("finalize export: %w", err)
	}
	return nil
}
