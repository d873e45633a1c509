package retrieval

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/tonnylei0321/bankfind/internal/domain"
)

// fallbackLookupLimit bounds how many candidates the inverted keyword index
// may contribute when the vector matcher came back empty. Keyword scoring
// must never degenerate into a full corpus scan.
const fallbackLookupLimit = 200

// scoredCandidate carries a candidate with its keyword contribution through
// fusion.
type scoredCandidate struct {
	cand         domain.Candidate
	keywordScore float64
	fromVector   bool
}

// keywordScores re-scores the restricted candidate set by keyword overlap.
// The set is the vector candidates, plus a direct clearing-code hit when the
// query contained one, plus a bounded inverted-index lookup when the vector
// matcher produced nothing.
func (s *Service) keywordScores(
	ctx context.Context, ents domain.QueryEntities, vecCands []domain.Candidate,
) []scoredCandidate {
	byID := make(map[int64]int, len(vecCands)+1)
	scored := make([]scoredCandidate, 0, len(vecCands)+1)

	for _, c := range vecCands {
		byID[c.RecordID] = len(scored)
		scored = append(scored, scoredCandidate{cand: c, fromVector: true})
	}

	var exactCodeID int64 = -1
	if ents.CodePattern != "" {
		if rec, err := s.records.FindByCode(ctx, ents.CodePattern); err == nil {
			exactCodeID = rec.ID
			if _, ok := byID[rec.ID]; !ok {
				byID[rec.ID] = len(scored)
				scored = append(scored, scoredCandidate{cand: domain.Candidate{
					RecordID: rec.ID,
					BankName: rec.BankName,
					BankCode: rec.BankCode,
				}})
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("code lookup failed", zap.String("code", ents.CodePattern), zap.Error(err))
		}
	}

	if len(vecCands) == 0 && len(ents.Keywords) > 0 {
		cands, err := s.index.LookupTokens(ctx, ents.Keywords, fallbackLookupLimit)
		if err != nil {
			if !errors.Is(err, domain.ErrIndexUnavailable) {
				s.logger.Warn("inverted index lookup failed", zap.Error(err))
			}
		} else {
			for _, c := range cands {
				if _, ok := byID[c.RecordID]; ok {
					continue
				}
				byID[c.RecordID] = len(scored)
				scored = append(scored, scoredCandidate{cand: c})
			}
		}
	}

	for i := range scored {
		sc := &scored[i]
		sc.keywordScore = keywordScore(ents.Keywords, sc.cand)
		if sc.cand.RecordID == exactCodeID {
			// The query names this record's code outright; that is as
			// strong a keyword signal as exists.
			sc.keywordScore = 1
		}
	}
	return scored
}

// keywordScore returns the fraction of query keywords present in the
// candidate's name, precomputed tokens, or bank code. Bounded [0,1].
func keywordScore(keywords []string, c domain.Candidate) float64 {
	if len(keywords) == 0 {
		return 0
	}
	normName := domain.NormalizeName(c.BankName)
	matched := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(normName, kw) || kw == c.BankCode || containsToken(c.Tokens, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

func containsToken(tokens []string, kw string) bool {
	for _, t := range tokens {
		if t == kw {
			return true
		}
	}
	return false
}
