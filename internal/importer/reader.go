package importer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tidwall/gjson"
)

// Record is one line of an export.
type Record struct {
	// Line is the 1-based line number.
	Line          int64
	ExternalID    int64
	OriginalTitle string
	// Skipped marks blank or unparseable lines.
	Skipped bool
}

// Reader is a lazy sequence of export records. It tracks the line number and
// the byte offset just past the last line returned.
type Reader struct {
	br     *bufio.Reader
	line   int64
	offset int64
}

// NewReader reads records from r. line and offset describe where r starts,
// so positions continue from a resumed cursor.
func NewReader(r io.Reader, line, offset int64) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024), line: line, offset: offset}
}

// OpenFile opens path positioned at offset.
func OpenFile(path string, line, offset int64) (*Reader, io.Closer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open export: %w", err)
	}
	if offset > 0 {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("stat export: %w", err)
		}
		if offset > info.Size() {
			file.Close()
			return nil, nil, fmt.Errorf("export %s is %d bytes, cursor offset %d is past the end", path, info.Size(), offset)
		}
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("seek export: %w", err)
		}
	}
	return NewReader(file, line, offset), file, nil
}

// Position returns the line number and byte offset of the last record returned.
func (r *Reader) Position() (line, offset int64) {
	return r.line, r.offset
}

// Next returns the next record, or io.EOF when the export is exhausted.
func (r *Reader) Next() (Record, error) {
	raw, err := r.br.ReadBytes('\n')
	if len(raw) == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("read export line %d: %w", r.line+1, err)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return Record{}, fmt.Errorf("read export line %d: %w", r.line+1, err)
	}
	r.line++
	r.offset += int64(len(raw))
	rec := parseLine(bytes.TrimSpace(raw))
	rec.Line = r.line
	return rec, nil
}

// parseLine accepts a bare integer id or a JSON object with id and an
// optional original_title.
func parseLine(line []byte) Record {
	if len(line) == 0 {
		return Record{Skipped: true}
	}
	if line[0] == '{' {
		if !gjson.ValidBytes(line) {
			return Record{Skipped: true}
		}
		id := gjson.GetBytes(line, "id")
		if id.Type != gjson.Number || id.Int() <= 0 || float64(id.Int()) != id.Num {
			return Record{Skipped: true}
		}
		return Record{ExternalID: id.Int(), OriginalTitle: gjson.GetBytes(line, "original_title").String()}
	}
	id, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil || id <= 0 {
		return Record{Skipped: true}
	}
	return Record{ExternalID: id}
}
