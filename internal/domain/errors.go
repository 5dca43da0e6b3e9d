package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by every layer. Wrap them with %w and test with errors.Is.
var (
	// ErrConfiguration indicates a required credential or setting is missing.
	// Raised when collaborators are constructed, never during chunking.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbedding indicates the embedding collaborator failed for one input.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStoreWrite indicates a batch upsert into the vector index failed.
	ErrStoreWrite = errors.New("vector store write failed")

	// ErrStoreRead indicates a vector index query failed.
	// It is distinct from a query that succeeded with zero matches.
	ErrStoreRead = errors.New("vector store read failed")

	// ErrNoContent indicates a source produced no usable text.
	ErrNoContent = errors.New("no content available")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed input such as an unparseable URL.
	ErrInvalidInput = errors.New("invalid input")
)

// NoContentError explains why a source yielded nothing to index.
type NoContentError struct {
	Reason  string
	Missing []MissingSource
}

// MissingSource identifies a sub-source (for example one video) that lacked a transcript.
type MissingSource struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

func (e *NoContentError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("%s: %s", ErrNoContent, e.Reason)
	}
	ids := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		ids = append(ids, m.ID)
	}
	return fmt.Sprintf("%s: %s (without transcripts: %s)", ErrNoContent, e.Reason, strings.Join(ids, ", "))
}

func (e *NoContentError) Unwrap() error { return ErrNoContent }
