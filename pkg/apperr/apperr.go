// Package apperr defines the error taxonomy shared by every component and
// its mapping onto HTTP status codes.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// Kind groups errors by who is at fault.
type Kind int

const (
	// KindUnknown covers infrastructure failures with no sentinel (database, I/O).
	KindUnknown Kind = iota
	// KindInput is a bad upload or malformed request.
	KindInput
	// KindUpstream is a failure or timeout of an external service.
	KindUpstream
	// KindMalformedGeneration is model output that failed structural parsing.
	KindMalformedGeneration
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "InputError"
	case KindUpstream:
		return "UpstreamServiceError"
	case KindMalformedGeneration:
		return "MalformedGenerationError"
	default:
		return "InternalError"
	}
}

// Input errors.
var (
	ErrEmptyInput            = errors.New("the uploaded file is empty")
	ErrUnreadableDocument    = errors.New("the uploaded file could not be read as a PDF")
	ErrNoExtractableText     = errors.New("no text could be extracted from the PDF")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrTranscriptUnavailable = errors.New("failed to extract transcript from the video")
)

// Upstream service errors.
var (
	ErrEmbeddingService    = errors.New("embedding service error")
	ErrVectorIndex         = errors.New("vector index error")
	ErrIndexConfigMismatch = errors.New("index configuration mismatch")
	ErrLanguageModel       = errors.New("language model error")
	ErrTranscriptService   = errors.New("transcript service error")
)

// ErrMalformedGeneration marks model output that does not match the expected structure.
var ErrMalformedGeneration = errors.New("malformed generation")

var (
	inputErrors = []error{
		ErrEmptyInput, ErrUnreadableDocument, ErrNoExtractableText,
		ErrInvalidRequest, ErrTranscriptUnavailable,
	}
	upstreamErrors = []error{
		ErrEmbeddingService, ErrVectorIndex, ErrIndexConfigMismatch,
		ErrLanguageModel, ErrTranscriptService, context.DeadlineExceeded,
	}
)

// KindOf classifies err. Malformed generation wins over upstream so that a
// parse failure wrapped inside a generation call still reports as a bad result.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrMalformedGeneration) {
		return KindMalformedGeneration
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return KindInput
		}
	}
	for _, target := range upstreamErrors {
		if errors.Is(err, target) {
			return KindUpstream
		}
	}
	return KindUnknown
}

// HTTPStatus maps err onto the status code returned to clients.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInput, KindMalformedGeneration:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Invalid wraps a validation message as an input error.
func Invalid(msg string) error {
	return &invalidError{msg: msg}
}

type invalidError struct{ msg string }

func (e *invalidError) Error() string { return e.msg }

func (e *invalidError) Unwrap() error { return ErrInvalidRequest }
