package domain

import "fmt"

// MaxTopK caps the result window a single retrieval may request.
const MaxTopK = 100

// RetrievalConfig holds the tunable retrieval parameters. Values are read on
// every Retrieve call and replaced wholesale on update, so a config value is
// always internally consistent.
type RetrievalConfig struct {
	SimilarityThreshold float64 // minimum vector similarity, [0,1]
	TopK                int     // result cap, 1..MaxTopK
	VectorWeight        float64 // fusion weight for similarity, >= 0
	KeywordWeight       float64 // fusion weight for keyword overlap, >= 0
	EnableHybrid        bool    // false: only the dominant strategy scores
}

// DefaultRetrievalConfig returns the tuning used when none is configured.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		SimilarityThreshold: 0.35,
		TopK:                10,
		VectorWeight:        0.7,
		KeywordWeight:       0.3,
		EnableHybrid:        true,
	}
}

// Validate checks every parameter range.
func (c RetrievalConfig) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be in [0,1], got %g", ErrInvalidConfig, c.SimilarityThreshold)
	}
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k must be in [1,%d], got %d", ErrInvalidConfig, MaxTopK, c.TopK)
	}
	if c.VectorWeight < 0 {
		return fmt.Errorf("%w: vector_weight must be >= 0, got %g", ErrInvalidConfig, c.VectorWeight)
	}
	if c.KeywordWeight < 0 {
		return fmt.Errorf("%w: keyword_weight must be >= 0, got %g", ErrInvalidConfig, c.KeywordWeight)
	}
	if c.VectorWeight == 0 && c.KeywordWeight == 0 {
		return fmt.Errorf("%w: at least one fusion weight must be positive", ErrInvalidConfig)
	}
	return nil
}

// ConfigPatch is a partial update; nil fields keep their current value.
type ConfigPatch struct {
	SimilarityThreshold *float64
	TopK                *int
	VectorWeight        *float64
	KeywordWeight       *float64
	EnableHybrid        *bool
}

// Apply merges the patch into a copy of c and validates the outcome. The
// receiver is never modified, so a failed update leaves config untouched.
func (c RetrievalConfig) Apply(p ConfigPatch) (RetrievalConfig, error) {
	next := c
	if p.SimilarityThreshold != nil {
		next.SimilarityThreshold = *p.SimilarityThreshold
	}
	if p.TopK != nil {
		next.TopK = *p.TopK
	}
	if p.VectorWeight != nil {
		next.VectorWeight = *p.VectorWeight
	}
	if p.KeywordWeight != nil {
		next.KeywordWeight = *p.KeywordWeight
	}
	if p.EnableHybrid != nil {
		next.EnableHybrid = *p.EnableHybrid
	}
	if err := next.Validate(); err != nil {
		return RetrievalConfig{}, err
	}
	return next, nil
}
