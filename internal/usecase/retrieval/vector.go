package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/tonnylei0321/bankfind/internal/domain"
)

// vectorCandidates embeds the query and fetches the topK nearest neighbors,
// pruning anything below the similarity threshold. Infrastructure failures
// degrade to an empty set so retrieval can continue on the other
// strategies; they are logged, never raised.
func (s *Service) vectorCandidates(
	ctx context.Context, question string, topK int, threshold float64,
) []domain.Candidate {
	emb, err := s.embed.Embed(ctx, question)
	if err != nil {
		s.logger.Warn("query embedding failed, degrading to keyword retrieval", zap.Error(err))
		return nil
	}

	cands, err := s.index.Query(ctx, emb.Embedding, topK)
	if err != nil {
		s.logger.Warn("vector index query failed, degrading to keyword retrieval", zap.Error(err))
		return nil
	}

	kept := cands[:0]
	for _, c := range cands {
		if c.Similarity >= threshold {
			kept = append(kept, c)
		}
	}
	return kept
}
