package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Markers classify stage failures. Wrap attaches one so callers can test with
// errors.Is and logs can report ErrorKind.
var (
	ErrExternalService = errors.New("external service error")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

// Wrap returns an error reading "<marker>: <stage>: <operation>: <message>: <err>"
// with blank segments dropped. Both marker and err stay reachable through
// errors.Is. A nil marker means ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := joinNonBlank(stage, operation, message)
	if detail == "" {
		detail = "service failure"
	}
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

var errorKinds = []struct {
	kind    string
	markers []error
}{
	{"validation", []error{ErrValidation}},
	{"configuration", []error{ErrConfiguration}},
	{"not_found", []error{ErrNotFound}},
	{"timeout", []error{ErrTimeout, context.DeadlineExceeded}},
	{"external", []error{ErrExternalService}},
}

// ErrorKind labels err for logs and metrics. Every kind consumes the same
// retry budget. Unmarked errors are "transient"; nil is "".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorKinds {
		for _, marker := range entry.markers {
			if errors.Is(err, marker) {
				return entry.kind
			}
		}
	}
	return "transient"
}

func joinNonBlank(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ": ")
}
