// Package retrieval implements the hybrid retrieval and ranking engine:
// entity extraction, an exact full-name shortcut, vector nearest-neighbor
// search, keyword re-scoring over a restricted candidate set, and weighted
// score fusion.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tonnylei0321/bankfind/internal/domain"
	"github.com/tonnylei0321/bankfind/internal/metrics"
	"github.com/tonnylei0321/bankfind/internal/usecase/extract"
)

// Service orchestrates the matchers behind a single Retrieve operation.
// All dependencies are injected once at startup and never mutated, so any
// number of Retrieve calls may run concurrently.
type Service struct {
	records RecordStore
	index   VectorIndex
	embed   Embedder
	sync    Syncer
	logger  *zap.Logger

	cfg   atomic.Pointer[domain.RetrievalConfig]
	cfgMu sync.Mutex // serializes UpdateConfig; reads go through cfg
}

// New creates the retrieval service with an initial config.
func New(
	records RecordStore, index VectorIndex, embed Embedder, syncer Syncer,
	cfg domain.RetrievalConfig, logger *zap.Logger,
) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("initial config: %w", err)
	}
	s := &Service{records: records, index: index, embed: embed, sync: syncer, logger: logger}
	s.cfg.Store(&cfg)
	return s, nil
}

// Request carries one retrieval call. TopK <= 0 and a nil threshold fall
// back to the current config.
type Request struct {
	Question            string
	TopK                int
	SimilarityThreshold *float64
}

// Response is the ranked, score-annotated candidate list.
type Response struct {
	Results    []domain.RetrievalResult
	TotalFound int
	Elapsed    time.Duration
}

// Retrieve resolves a free-text query to ranked branch records. It never
// errors for "no results"; only malformed per-call overrides are rejected.
func (s *Service) Retrieve(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	cfg := *s.cfg.Load()
	topK, threshold, err := resolveOverrides(cfg, req)
	if err != nil {
		return Response{}, err
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Response{Elapsed: time.Since(start)}, nil
	}

	ents := extract.Extract(question)

	if ents.FullName != "" {
		if res, ok := s.exactMatch(ctx, ents.FullName); ok {
			s.observe(domain.MethodExactFullName, start, 1)
			return Response{
				Results:    []domain.RetrievalResult{res},
				TotalFound: 1,
				Elapsed:    time.Since(start),
			}, nil
		}
	}

	vecCands := s.vectorCandidates(ctx, question, topK, threshold)
	scored := s.keywordScores(ctx, ents, vecCands)
	results := fuse(cfg, question, scored, topK)

	s.observe(topMethod(results), start, len(results))
	return Response{
		Results:    results,
		TotalFound: len(results),
		Elapsed:    time.Since(start),
	}, nil
}

// exactMatch looks the normalized full-name hint up in the record store.
// An exact identity hit is definitionally better than any approximate
// signal, so the caller short-circuits on it.
func (s *Service) exactMatch(ctx context.Context, fullName string) (domain.RetrievalResult, bool) {
	rec, err := s.records.FindByExactName(ctx, fullName)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("exact name lookup failed", zap.Error(err))
		}
		return domain.RetrievalResult{}, false
	}
	return domain.RetrievalResult{
		BankName:        rec.BankName,
		BankCode:        rec.BankCode,
		SimilarityScore: 1,
		FinalScore:      1,
		Method:          domain.MethodExactFullName,
	}, true
}

// Config returns the current config snapshot.
func (s *Service) Config() domain.RetrievalConfig {
	return *s.cfg.Load()
}

// UpdateConfig validates and applies a partial update atomically. On
// validation failure the active config is left unchanged.
func (s *Service) UpdateConfig(patch domain.ConfigPatch) (domain.RetrievalConfig, error) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	next, err := s.cfg.Load().Apply(patch)
	if err != nil {
		return domain.RetrievalConfig{}, err
	}
	s.cfg.Store(&next)
	s.logger.Info("retrieval config updated",
		zap.Float64("similarity_threshold", next.SimilarityThreshold),
		zap.Int("top_k", next.TopK),
		zap.Float64("vector_weight", next.VectorWeight),
		zap.Float64("keyword_weight", next.KeywordWeight),
		zap.Bool("enable_hybrid", next.EnableHybrid),
	)
	return next, nil
}

// Stats reports sync drift between the vector index and the record store.
func (s *Service) Stats(ctx context.Context) (domain.SyncStats, error) {
	return s.sync.Stats(ctx)
}

// RebuildIndex re-embeds the corpus into a fresh index generation.
func (s *Service) RebuildIndex(ctx context.Context, force bool) (bool, error) {
	return s.sync.Rebuild(ctx, force)
}

func resolveOverrides(cfg domain.RetrievalConfig, req Request) (topK int, threshold float64, err error) {
	topK = cfg.TopK
	if req.TopK > 0 {
		if req.TopK > domain.MaxTopK {
			return 0, 0, fmt.Errorf("%w: top_k must be in [1,%d], got %d",
				domain.ErrInvalidConfig, domain.MaxTopK, req.TopK)
		}
		topK = req.TopK
	}
	threshold = cfg.SimilarityThreshold
	if req.SimilarityThreshold != nil {
		t := *req.SimilarityThreshold
		if t < 0 || t > 1 {
			return 0, 0, fmt.Errorf("%w: similarity_threshold must be in [0,1], got %g",
				domain.ErrInvalidConfig, t)
		}
		threshold = t
	}
	return topK, threshold, nil
}

func topMethod(results []domain.RetrievalResult) domain.Method {
	if len(results) == 0 {
		return "none"
	}
	return results[0].Method
}

func (s *Service) observe(method domain.Method, start time.Time, found int) {
	metrics.RetrievalRequestsTotal.WithLabelValues(string(method)).Inc()
	metrics.RetrievalDuration.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
	metrics.RetrievalResults.Observe(float64(found))
}
