package importer_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelqueue/internal/importer"
	"reelqueue/internal/queue"
	"reelqueue/internal/testsupport"
)

func newImporter(t *testing.T, store importer.Store, dir string, every int) *importer.Importer {
	t.Helper()
	im, err := importer.New(store, importer.Options{
		ExportDir:      dir,
		CommitEvery:    every,
		LatinThreshold: 0.9,
	})
	if err != nil {
		t.Fatalf("importer.New: %v", err)
	}
	return im
}

func TestReaderParsesLines(t *testing.T) {
	input := strings.Join([]string{
		`{"adult":false,"id":11,"original_title":"Star Wars","popularity":1}`,
		``,
		`42`,
		`not json`,
		`{"id":"x"}`,
		`{"id":12.5}`,
		`{"id":13}`,
		`-4`,
		`99`,
	}, "\n")
	r := importer.NewReader(strings.NewReader(input), 0, 0)
	var got []importer.Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != 9 {
		t.Fatalf("expected 9 records, got %d", len(got))
	}
	if got[0].ExternalID != 11 || got[0].OriginalTitle != "Star Wars" || got[0].Line != 1 {
		t.Fatalf("unexpected first record %+v", got[0])
	}
	wantSkipped := []bool{false, true, false, true, true, true, false, true, false}
	for i, rec := range got {
		if rec.Skipped != wantSkipped[i] {
			t.Fatalf("line %d: skipped=%v, want %v (%+v)", i+1, rec.Skipped, wantSkipped[i], rec)
		}
	}
	if got[8].ExternalID != 99 {
		t.Fatalf("expected unterminated last line to parse, got %+v", got[8])
	}
	line, offset := r.Position()
	if line != 9 || offset != int64(len(input)) {
		t.Fatalf("unexpected position %d/%d", line, offset)
	}
}

func TestOpenFileResumesAtOffset(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteLines(t, filepath.Join(dir, "ids.txt"), "1", "2", "3")
	r, closer, err := importer.OpenFile(path, 2, 4)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer closer.Close()
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.ExternalID != 3 || rec.Line != 3 {
		t.Fatalf("unexpected record after seek %+v", rec)
	}
	if _, _, err := importer.OpenFile(path, 0, 1000); err == nil {
		t.Fatal("expected offset past end to fail")
	}
}

func TestMostlyLatin(t *testing.T) {
	cases := []struct {
		title string
		want  bool
	}{
		{"Star Wars: Episode IV", true},
		{"Am\u00e9lie", true},
		{"Ame\u0301lie", true},
		{"L\u00e9on: The Professional!", true},
		{"\u5343\u3068\u5343\u5c0b\u306e\u795e\u96a0\u3057", false},
		{"\u0411\u0440\u0430\u0442 2", false},
		{"", false},
		{"Crouching Tiger \u5367\u864e\u85cf\u9f8d", false},
	}
	for _, tc := range cases {
		if got := importer.MostlyLatin(tc.title, 0.9); got != tc.want {
			t.Fatalf("MostlyLatin(%q) = %v, want %v", tc.title, got, tc.want)
		}
	}
}

func TestImportCompletesAndCountsExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewItem(t, store, 2, "Already queued")

	path := testsupport.WriteLines(t, filepath.Join(t.TempDir(), "export.json"),
		`{"id":1,"original_title":"One"}`,
		`{"id":2,"original_title":"Two"}`,
		`{"id":3,"original_title":"\u5343\u3068\u5343\u5c0b"}`,
		`garbage`,
		`{"id":4}`,
	)
	im := newImporter(t, store, cfg.ExportDir(), 2)
	result, err := im.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Lines != 5 || result.Imported != 2 || result.Existing != 1 || result.Skipped != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if want := importer.ExportPath(cfg.ExportDir(), path); result.LocalPath != want {
		t.Fatalf("expected local export copied to %s, got %s", want, result.LocalPath)
	}
	cursor, err := store.LoadCursor(ctx, path)
	if err != nil {
		t.Fatalf("LoadCursor: %v", err)
	}
	if cursor.CompletedAt == nil || cursor.LineNumber != 5 || cursor.Imported != 2 || cursor.Skipped != 2 || cursor.LastExternalID != 4 {
		t.Fatalf("unexpected cursor %+v", cursor)
	}
	if _, err := store.GetByExternalID(ctx, 3); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected non-latin title to be filtered, got %v", err)
	}
	if _, err := im.Resume(ctx, ""); !errors.Is(err, importer.ErrNothingToResume) {
		t.Fatalf("expected ErrNothingToResume, got %v", err)
	}
}

// cancellingStore cancels the import once a given number of ids has been
// committed, the way an interrupt would land between records.
type cancellingStore struct {
	*queue.Store
	cancel  context.CancelFunc
	after   int64
	commits int
}

func (s *cancellingStore) CommitImportBatch(ctx context.Context, entries []queue.ImportEntry, c *queue.ImportCursor) (int, error) {
	n, err := s.Store.CommitImportBatch(ctx, entries, c)
	s.commits++
	if err == nil && c.Imported >= s.after && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return n, err
}

func TestImportResumesAfterInterrupt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteExport(t, t.TempDir(), 1000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wrapped := &cancellingStore{Store: store, cancel: cancel, after: 500}
	first := newImporter(t, wrapped, cfg.ExportDir(), 50)
	result, err := first.Import(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Imported != 500 || result.Lines != 500 {
		t.Fatalf("unexpected interrupted result %+v", result)
	}
	cursor, err := store.LatestCursor(context.Background())
	if err != nil {
		t.Fatalf("LatestCursor: %v", err)
	}
	if cursor.LineNumber != 500 || cursor.LastExternalID != 500 || cursor.CompletedAt != nil {
		t.Fatalf("unexpected cursor after interrupt %+v", cursor)
	}

	second := newImporter(t, store, cfg.ExportDir(), 50)
	result, err = second.Resume(context.Background(), "")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !result.Resumed || result.Lines != 500 || result.Imported != 500 || result.Existing != 0 {
		t.Fatalf("unexpected resumed result %+v", result)
	}
	if result.Cursor.Imported != 1000 || result.Cursor.CompletedAt == nil {
		t.Fatalf("unexpected final cursor %+v", result.Cursor)
	}
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusRefreshData] != 1000 {
		t.Fatalf("expected 1000 queued items, got %d", stats[queue.StatusRefreshData])
	}
	for _, id := range []int64{1, 500, 501, 1000} {
		if _, err := store.GetByExternalID(context.Background(), id); err != nil {
			t.Fatalf("expected id %d queued: %v", id, err)
		}
	}
}

func TestImportRewindsToLastCommitAfterHardStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	path := testsupport.WriteExport(t, t.TempDir(), 30)

	// A cursor left behind mid-file with items beyond it already queued, as
	// after a kill between an upsert and the next commit.
	cursor, err := store.ResetCursor(ctx, path, path)
	if err != nil {
		t.Fatalf("ResetCursor: %v", err)
	}
	r, closer, err := importer.OpenFile(path, 0, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := r.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	closer.Close()
	entries := make([]queue.ImportEntry, 0, 12)
	for id := int64(1); id <= 12; id++ {
		entries = append(entries, queue.ImportEntry{ExternalID: id})
	}
	cursor.LineNumber, cursor.ByteOffset = r.Position()
	if _, err := store.CommitImportBatch(ctx, entries, cursor); err != nil {
		t.Fatalf("CommitImportBatch: %v", err)
	}

	im := newImporter(t, store, cfg.ExportDir(), 7)
	result, err := im.Resume(ctx, "")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if result.Lines != 20 || result.Existing != 2 || result.Imported != 18 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestImportCommitsOnInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteExport(t, t.TempDir(), 5)
	wrapped := &cancellingStore{Store: store, after: 1 << 30}
	im, err := importer.New(wrapped, importer.Options{
		ExportDir:      cfg.ExportDir(),
		CommitEvery:    1000,
		CommitInterval: 1,
		LatinThreshold: 0.9,
	})
	if err != nil {
		t.Fatalf("importer.New: %v", err)
	}
	if _, err := im.Import(context.Background(), path); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if wrapped.commits != 6 {
		t.Fatalf("expected one commit per record plus the final one, got %d", wrapped.commits)
	}
}

func gzipLines(t *testing.T, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, line := range lines {
		if _, err := gz.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestImportDownloadsGzippedExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	payload := gzipLines(t, `{"id":5,"original_title":"Five"}`, `{"id":6,"original_title":"Six"}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie_ids.json.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	im := newImporter(t, store, cfg.ExportDir(), 50)
	source := srv.URL + "/movie_ids.json.gz"
	result, err := im.Import(context.Background(), source)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if want := importer.ExportPath(cfg.ExportDir(), source); result.LocalPath != want {
		t.Fatalf("expected export at %s, got %s", want, result.LocalPath)
	}
	data, err := os.ReadFile(result.LocalPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"id":5`) {
		t.Fatalf("expected decompressed export, got %q", data)
	}

	if _, err := im.Import(context.Background(), srv.URL+"/missing.gz"); err == nil {
		t.Fatal("expected 404 download to fail")
	}
}

func TestImportDecompressesLocalGzipFileURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := filepath.Join(t.TempDir(), "ids.json.gz")
	if err := os.WriteFile(path, gzipLines(t, "7", "8", "9"), 0o644); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	im := newImporter(t, store, cfg.ExportDir(), 50)
	result, err := im.Import(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 3 || result.LocalPath == path {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestResumeBySourceReadsPrivateCopy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteExport(t, t.TempDir(), 1000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wrapped := &cancellingStore{Store: store, cancel: cancel, after: 500}
	if _, err := newImporter(t, wrapped, cfg.ExportDir(), 50).Import(ctx, path); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The original file changes and a newer import of another source is left
	// incomplete; resuming by source must still continue the first copy.
	testsupport.WriteLines(t, path, "5001", "5002")
	other := testsupport.WriteLines(t, filepath.Join(t.TempDir(), "other.json"), "9001")
	if _, err := store.ResetCursor(context.Background(), other, other); err != nil {
		t.Fatalf("ResetCursor: %v", err)
	}

	im := newImporter(t, store, cfg.ExportDir(), 50)
	result, err := im.Resume(context.Background(), path)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if result.SourceURL != path || result.Lines != 500 || result.Imported != 500 {
		t.Fatalf("unexpected resumed result %+v", result)
	}
	if _, err := store.GetByExternalID(context.Background(), 1000); err != nil {
		t.Fatalf("expected id 1000 queued from the saved copy: %v", err)
	}
	for _, id := range []int64{5001, 9001} {
		if _, err := store.GetByExternalID(context.Background(), id); !errors.Is(err, queue.ErrNotFound) {
			t.Fatalf("id %d should not be imported, got %v", id, err)
		}
	}

	if _, err := im.Resume(context.Background(), path); !errors.Is(err, importer.ErrNothingToResume) {
		t.Fatalf("completed source should have nothing to resume, got %v", err)
	}
	if _, err := im.Resume(context.Background(), "never-imported"); !errors.Is(err, importer.ErrNothingToResume) {
		t.Fatalf("unknown source should have nothing to resume, got %v", err)
	}
	latest, err := im.Resume(context.Background(), "")
	if err != nil || latest.SourceURL != other {
		t.Fatalf("blank source should resume the remaining import, got %+v (%v)", latest, err)
	}
}
