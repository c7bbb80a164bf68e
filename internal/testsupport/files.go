package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteExport writes a TMDB-style export with one JSON object per line for ids
// 1..count and returns the file path.
func WriteExport(t testing.TB, dir string, count int) string {
	t.Helper()
	lines := make([]string, 0, count)
	for id := 1; id <= count; id++ {
		lines = append(lines, fmt.Sprintf(`{"adult":false,"id":%d,"original_title":"Movie %d","popularity":1.5,"video":false}`, id, id))
	}
	return WriteLines(t, filepath.Join(dir, "movie_ids.json"), lines...)
}

// WriteLines writes the given lines, each newline terminated, to path.
func WriteLines(t testing.TB, path string, lines ...string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
