package indexsync

import (
	"context"

	"github.com/tonnylei0321/bankfind/internal/domain"
)

// SourceStore is the read view of the source-of-truth record store used by
// rebuilds.
type SourceStore interface {
	GetAll(ctx context.Context) ([]domain.BankRecord, error)
	Count(ctx context.Context) (int, error)
}

// IndexStore manages vector-index generations. A generation is invisible to
// readers until Promote succeeds, so a failed rebuild never exposes a
// half-populated index.
type IndexStore interface {
	// BeginGeneration creates an empty generation and returns its handle.
	BeginGeneration(ctx context.Context, dimension int) (string, error)
	// Add writes entries into a not-yet-promoted generation.
	Add(ctx context.Context, gen string, entries []domain.VectorEntry) error
	// Promote atomically makes gen the generation readers see and returns
	// the previously promoted one ("" if none).
	Promote(ctx context.Context, gen string) (string, error)
	// DropGeneration deletes a generation and its keys.
	DropGeneration(ctx context.Context, gen string) error
	// Count reports the promoted generation's entry count (0 if none).
	Count(ctx context.Context) (int, error)
}

// Embedder vectorizes record names during rebuild.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
