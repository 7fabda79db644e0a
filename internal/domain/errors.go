package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("invalid input")
)

// FailureKind is the closed set of classified external-tool failures. The
// process-invocation adapters map raw tool output onto these once; nothing
// downstream re-parses text.
type FailureKind string

const (
	FailureTimeout        FailureKind = "timeout"
	FailurePrivate        FailureKind = "private_or_unavailable"
	FailureUnsupportedURL FailureKind = "unsupported_url"
	FailureExtraction     FailureKind = "extraction_error"
	FailureStorageFull    FailureKind = "storage_full"
)

// ProcessFailure wraps the raw output of a failed external-process run with
// its classified kind.
type ProcessFailure struct {
	Kind    FailureKind
	Message string
}

func (f *ProcessFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// FailureKindOf extracts the kind from an error chain, or FailureExtraction
// if the error carries no classification.
func FailureKindOf(err error) FailureKind {
	var pf *ProcessFailure
	if errors.As(err, &pf) {
		return pf.Kind
	}
	return FailureExtraction
}

// substring → kind, checked in order. Brittle by design: the external tools
// expose failure causes only through free text.
var failureMarkers = []struct {
	marker string
	kind   FailureKind
}{
	{"timed out", FailureTimeout},
	{"timeout", FailureTimeout},
	{"Private video", FailurePrivate},
	{"Video unavailable", FailurePrivate},
	{"not available", FailurePrivate},
	{"Unsupported URL", FailureUnsupportedURL},
	{"no space left", FailureStorageFull},
}

// ClassifyToolFailure maps raw tool output to a ProcessFailure, falling back
// to the given kind when no marker matches.
func ClassifyToolFailure(output string, fallback FailureKind) *ProcessFailure {
	for _, m := range failureMarkers {
		if strings.Contains(output, m.marker) {
			return &ProcessFailure{Kind: m.kind, Message: strings.TrimSpace(output)}
		}
	}
	return &ProcessFailure{Kind: fallback, Message: strings.TrimSpace(output)}
}
