package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
)

// prettyHandler writes one human-readable line per record:
//
//	2026-01-02T15:04:05Z INFO [stageexec] movie 550 #12 refresh_data: item advanced key=value ...
//
// component, job, stage, item and external ids are lifted out of the
// key/value tail into the prefix.
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
	color     bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource, color bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource, color: color}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

type kv struct {
	key   string
	value slog.Value
}

// subject collects the identifiers printed ahead of the message.
type subject struct {
	component, job, stage, itemID, externalID string
}

func (s *subject) take(item kv) bool {
	var dst *string
	switch item.key {
	case FieldComponent:
		dst = &s.component
	case FieldJob:
		dst = &s.job
	case FieldStage:
		dst = &s.stage
	case FieldItemID:
		dst = &s.itemID
	case FieldExternalID:
		dst = &s.externalID
	default:
		return false
	}
	if *dst == "" {
		*dst = plainValue(item.value)
	}
	return true
}

func (s subject) String() string {
	parts := make([]string, 0, 3)
	if s.externalID != "" {
		parts = append(parts, "movie "+s.externalID)
	}
	if s.itemID != "" {
		parts = append(parts, "#"+s.itemID)
	}
	switch {
	case s.stage != "":
		parts = append(parts, s.stage)
	case s.job != "":
		parts = append(parts, s.job)
	}
	return strings.Join(parts, " ")
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	all := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		flattenAttr(&all, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&all, h.groups, attr)
		return true
	})

	var subj subject
	rest := make([]kv, 0, len(all))
	for _, item := range all {
		if !subj.take(item) {
			rest = append(rest, item)
		}
	}
	rest = lastValueWins(rest)

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(128 + len(rest)*24)

	buf.WriteString(timestamp.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	h.writeLevel(&buf, record.Level)
	if subj.component != "" {
		buf.WriteString(" [")
		buf.WriteString(subj.component)
		buf.WriteByte(']')
	}
	if s := subj.String(); s != "" {
		buf.WriteByte(' ')
		buf.WriteString(s)
	}
	buf.WriteString(": ")
	buf.WriteString(message)

	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}

	for _, item := range rest {
		buf.WriteByte(' ')
		h.paint(&buf, ansiGray, item.key+"=")
		buf.WriteString(quotedValue(item.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) paint(buf *bytes.Buffer, color, s string) {
	if !h.color {
		buf.WriteString(s)
		return
	}
	buf.WriteString(color)
	buf.WriteString(s)
	buf.WriteString(ansiReset)
}

func (h *prettyHandler) writeLevel(buf *bytes.Buffer, level slog.Level) {
	switch {
	case level >= slog.LevelError:
		h.paint(buf, ansiRed, "ERROR")
	case level >= slog.LevelWarn:
		h.paint(buf, ansiYellow, "WARN")
	case level >= slog.LevelInfo:
		h.paint(buf, ansiCyan, "INFO")
	default:
		h.paint(buf, ansiGray, "DEBUG")
	}
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// lastValueWins keeps the first position of every key with its last value.
func lastValueWins(items []kv) []kv {
	if len(items) < 2 {
		return items
	}
	positions := make(map[string]int, len(items))
	out := make([]kv, 0, len(items))
	for _, item := range items {
		if item.key == "" {
			continue
		}
		if pos, ok := positions[item.key]; ok {
			out[pos].value = item.value
			continue
		}
		positions[item.key] = len(out)
		out = append(out, item)
	}
	return out
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, child := range attr.Value.Group() {
			flattenAttr(dst, next, child)
		}
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), key), ".")
		key = strings.TrimSuffix(key, ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

// plainValue renders v without quoting.
func plainValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// quotedValue renders v for the key=value tail, quoting strings that would
// otherwise be ambiguous.
func quotedValue(v slog.Value) string {
	s := plainValue(v)
	switch v.Resolve().Kind() {
	case slog.KindString, slog.KindAny:
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
	}
	return s
}
