package retrieval

import (
	"sort"
	"strings"

	"github.com/tonnylei0321/bankfind/internal/domain"
)

// fuse merges the scored candidate set into the final ranked list:
// final = vector_weight*similarity + keyword_weight*keyword. With hybrid
// fusion disabled only the dominant strategy's raw score is used. Candidates
// are already deduplicated by record id upstream.
func fuse(
	cfg domain.RetrievalConfig, rawQuery string, cands []scoredCandidate, topK int,
) []domain.RetrievalResult {
	results := make([]domain.RetrievalResult, 0, len(cands))
	for _, sc := range cands {
		sim, kw := sc.cand.Similarity, sc.keywordScore

		var final float64
		switch {
		case cfg.EnableHybrid:
			final = cfg.VectorWeight*sim + cfg.KeywordWeight*kw
		case cfg.VectorWeight >= cfg.KeywordWeight:
			final = sim
		default:
			final = kw
		}
		if final <= 0 {
			continue
		}

		results = append(results, domain.RetrievalResult{
			BankName:        sc.cand.BankName,
			BankCode:        sc.cand.BankCode,
			SimilarityScore: sim,
			KeywordScore:    kw,
			FinalScore:      final,
			Method:          method(sc.fromVector, sim, kw),
		})
	}

	normQuery := domain.NormalizeName(rawQuery)
	sort.SliceStable(results, func(i, j int) bool {
		return rankLess(results[i], results[j], normQuery)
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func method(fromVector bool, sim, kw float64) domain.Method {
	switch {
	case fromVector && kw > 0:
		return domain.MethodHybrid
	case fromVector:
		return domain.MethodVector
	default:
		return domain.MethodKeyword
	}
}

// rankLess orders by final score descending; ties prefer (1) names that
// contain the query verbatim, (2) the shorter name — the more specific
// branch over a parent aggregate, (3) the smaller bank code, for
// determinism.
func rankLess(a, b domain.RetrievalResult, normQuery string) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}

	if normQuery != "" {
		ac := strings.Contains(domain.NormalizeName(a.BankName), normQuery)
		bc := strings.Contains(domain.NormalizeName(b.BankName), normQuery)
		if ac != bc {
			return ac
		}
	}

	al, bl := len([]rune(a.BankName)), len([]rune(b.BankName))
	if al != bl {
		return al < bl
	}

	return a.BankCode < b.BankCode
}
