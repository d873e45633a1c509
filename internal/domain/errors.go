package domain

import "errors"

var (
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRecord signals a record violating ingestion invariants.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidConfig signals an out-of-range retrieval parameter.
	ErrInvalidConfig = errors.New("invalid retrieval config")
	// ErrIndexUnavailable signals that no promoted vector index exists yet.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrRebuildInProgress signals a concurrent index rebuild.
	ErrRebuildInProgress = errors.New("index rebuild already in progress")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
