// Package indexsync rebuilds the vector index from the source-of-truth
// record store and reports drift between the two. Rebuilds write into a
// fresh generation and promote it atomically, so concurrent readers always
// observe a complete index.
package indexsync

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tonnylei0321/bankfind/internal/domain"
	"github.com/tonnylei0321/bankfind/internal/metrics"
	"github.com/tonnylei0321/bankfind/internal/usecase/extract"
)

const defaultBatchSize = 64

// Service is the index sync manager. It is the only writer to the vector
// index; Rebuild runs exclusively while reads continue against the
// previously promoted generation.
type Service struct {
	source    SourceStore
	index     IndexStore
	embed     Embedder
	dimension int
	batchSize int
	logger    *zap.Logger

	mu sync.Mutex // one rebuild at a time
}

// New creates an index sync manager.
func New(source SourceStore, index IndexStore, embed Embedder, dimension int, logger *zap.Logger) *Service {
	return &Service{
		source:    source,
		index:     index,
		embed:     embed,
		dimension: dimension,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

// WithBatchSize overrides how many records are embedded per provider call.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Rebuild re-embeds every record into a new generation and promotes it on
// success. Returns false with no error when the index is already synced and
// force is unset. Idempotent: two forced rebuilds leave identical stats.
func (s *Service) Rebuild(ctx context.Context, force bool) (bool, error) {
	if !s.mu.TryLock() {
		return false, domain.ErrRebuildInProgress
	}
	defer s.mu.Unlock()

	if !force {
		if st, err := s.Stats(ctx); err == nil && st.IsSynced {
			s.logger.Info("index already synced, skipping rebuild")
			return false, nil
		}
	}

	records, err := s.source.GetAll(ctx)
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("load source records: %w", err)
	}

	gen, err := s.index.BeginGeneration(ctx, s.dimension)
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("begin generation: %w", err)
	}
	s.logger.Info("index rebuild started",
		zap.String("generation", gen), zap.Int("records", len(records)))

	if err := s.populate(ctx, gen, records); err != nil {
		s.discard(ctx, gen)
		metrics.IndexRebuildsTotal.WithLabelValues("error").Inc()
		return false, err
	}

	prev, err := s.index.Promote(ctx, gen)
	if err != nil {
		s.discard(ctx, gen)
		metrics.IndexRebuildsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("promote generation %s: %w", gen, err)
	}
	if prev != "" && prev != gen {
		if err := s.index.DropGeneration(ctx, prev); err != nil {
			s.logger.Warn("failed to drop previous generation",
				zap.String("generation", prev), zap.Error(err))
		}
	}

	metrics.IndexRebuildsTotal.WithLabelValues("success").Inc()
	metrics.IndexDocuments.Set(float64(len(records)))
	s.logger.Info("index rebuild finished",
		zap.String("generation", gen), zap.Int("records", len(records)))
	return true, nil
}

// Stats compares entry counts between the promoted index generation and the
// record store. An empty corpus always reports unsynced so operators can
// detect it.
func (s *Service) Stats(ctx context.Context) (domain.SyncStats, error) {
	vectorCount, err := s.index.Count(ctx)
	if err != nil {
		return domain.SyncStats{}, fmt.Errorf("vector count: %w", err)
	}
	sourceCount, err := s.source.Count(ctx)
	if err != nil {
		return domain.SyncStats{}, fmt.Errorf("source count: %w", err)
	}
	return domain.SyncStats{
		VectorCount:        vectorCount,
		SourceCount:        sourceCount,
		IsSynced:           vectorCount == sourceCount && vectorCount > 0,
		EmbeddingDimension: s.dimension,
	}, nil
}

// populate embeds records batch by batch into the generation.
func (s *Service) populate(ctx context.Context, gen string, records []domain.BankRecord) error {
	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.BankName
		}

		emb, err := domain.EmbedAll(ctx, s.embed, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(emb.Embeddings) != len(batch) {
			return fmt.Errorf("embed batch at %d: got %d vectors for %d records",
				start, len(emb.Embeddings), len(batch))
		}

		entries := make([]domain.VectorEntry, len(batch))
		for i, rec := range batch {
			entries[i] = domain.VectorEntry{
				RecordID:  rec.ID,
				Embedding: emb.Embeddings[i],
				BankName:  rec.BankName,
				BankCode:  rec.BankCode,
				Tokens:    extract.Tokens(rec.BankName),
			}
		}

		if err := s.index.Add(ctx, gen, entries); err != nil {
			return fmt.Errorf("add batch at %d: %w", start, err)
		}
	}
	return nil
}

// discard removes a generation that will never be promoted.
func (s *Service) discard(ctx context.Context, gen string) {
	if err := s.index.DropGeneration(ctx, gen); err != nil {
		s.logger.Warn("failed to drop abandoned generation",
			zap.String("generation", gen), zap.Error(err))
	}
}
