package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindConfigurationMissing Kind = "configuration_missing"
	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	KindStoreUnavailable     Kind = "store_unavailable"
	KindUnsupportedInput     Kind = "unsupported_input"
	KindGenerationFailed     Kind = "generation_failed"
	KindInternal             Kind = "internal"
)

// Sentinel errors, one per kind. A *Error matches the sentinel of its kind
// with errors.Is.
var (
	// ErrConfigurationMissing indicates a credential or required setting is absent.
	// The user has to fix the configuration; retrying does not help.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrEmbeddingUnavailable indicates the embedding backend failed to load or respond.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable indicates the vector store backend failed.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrUnsupportedInput indicates input the pipeline refuses to process.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrGenerationFailed indicates the answer generator returned an error.
	ErrGenerationFailed = errors.New("answer generation failed")

	// ErrDimensionMismatch indicates vectors of different dimensions met.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedding failure reasons.
const (
	ReasonMissingCredential = "missing_credential"
	ReasonCallFailed        = "call_failed"
	ReasonInitFailed        = "init_failed"
)

// Error carries a Kind plus the operation that failed.
type Error struct {
	Kind      Kind
	Op        string
	Reason    string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString(" (")
		b.WriteString(e.Reason)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == sentinel(e.Kind)
}

func sentinel(k Kind) error {
	switch k {
	case KindConfigurationMissing:
		return ErrConfigurationMissing
	case KindEmbeddingUnavailable:
		return ErrEmbeddingUnavailable
	case KindStoreUnavailable:
		return ErrStoreUnavailable
	case KindUnsupportedInput:
		return ErrUnsupportedInput
	case KindGenerationFailed:
		return ErrGenerationFailed
	}
	return nil
}

// ConfigMissing reports an absent credential or setting named by what.
func ConfigMissing(op, what string) error {
	return &Error{Kind: KindConfigurationMissing, Op: op, Err: fmt.Errorf("%s is not set", what)}
}

// EmbeddingFailure wraps a backend error from an embedding provider.
func EmbeddingFailure(op, reason string, retryable bool, err error) error {
	return &Error{Kind: KindEmbeddingUnavailable, Op: op, Reason: reason, Retryable: retryable, Err: err}
}

// StoreFailure wraps a backend error from a vector store. Store failures are retryable.
func StoreFailure(op string, err error) error {
	return &Error{Kind: KindStoreUnavailable, Op: op, Retryable: true, Err: err}
}

// Unsupported rejects input with a user-facing detail.
func Unsupported(op, detail string) error {
	return &Error{Kind: KindUnsupportedInput, Op: op, Err: errors.New(detail)}
}

// GenerationFailure wraps an answer generator error.
func GenerationFailure(op string, err error) error {
	return &Error{Kind: KindGenerationFailed, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// ErrDimensionMismatch counts as unsupported input.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, ErrDimensionMismatch) {
		return KindUnsupportedInput
	}
	return KindInternal
}

// IsRetryable reports whether err is marked as transient.
func IsRetryable(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Retryable
}

// ErrorResponse is the structured error returned at the service boundary.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    Kind   `json:"kind"`
	Details string `json:"details"`
}

// NewErrorResponse converts err into a boundary response. summary is the
// short human message, e.g. "Failed to process query".
func NewErrorResponse(summary string, err error) ErrorResponse {
	return ErrorResponse{Error: summary, Kind: KindOf(err), Details: err.Error()}
}
