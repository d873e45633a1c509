package retrieval

import (
	"context"

	"github.com/tonnylei0321/bankfind/internal/domain"
)

// RecordStore is the read view of the source-of-truth record store used on
// the query path. Full-corpus access is deliberately absent: per-query
// scoring must never scan the whole store.
type RecordStore interface {
	FindByExactName(ctx context.Context, name string) (domain.BankRecord, error)
	FindByCode(ctx context.Context, code string) (domain.BankRecord, error)
	Count(ctx context.Context) (int, error)
}

// VectorIndex is the promoted vector-index generation as seen by readers.
type VectorIndex interface {
	// Query returns the k nearest candidates with similarity in [0,1].
	Query(ctx context.Context, vector []float32, k int) ([]domain.Candidate, error)
	// LookupTokens resolves candidates through the inverted keyword index,
	// returning at most limit candidates.
	LookupTokens(ctx context.Context, tokens []string, limit int) ([]domain.Candidate, error)
	Count(ctx context.Context) (int, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Syncer exposes the index maintenance operations the service forwards.
type Syncer interface {
	Rebuild(ctx context.Context, force bool) (bool, error)
	Stats(ctx context.Context) (domain.SyncStats, error)
}
