package domain

// Method identifies which retrieval strategy produced a result.
type Method string

const (
	// MethodExactFullName marks a normalized legal-name equality hit.
	MethodExactFullName Method = "exact_full_name"
	// MethodVector marks a pure semantic nearest-neighbor hit.
	MethodVector Method = "vector"
	// MethodKeyword marks a pure token-overlap hit.
	MethodKeyword Method = "keyword"
	// MethodHybrid marks a result scored by both strategies.
	MethodHybrid Method = "hybrid"
)

// RetrievalResult is one ranked candidate answer. Immutable once produced.
type RetrievalResult struct {
	BankName        string
	BankCode        string
	SimilarityScore float64 // vector contribution, [0,1]
	KeywordScore    float64 // keyword contribution, [0,1]
	FinalScore      float64 // fused score used for ranking
	Method          Method
}

// Candidate is an intermediate hit carried between matchers before fusion.
// BankName/BankCode/Tokens are the denormalized snapshot stored next to the
// vector so scoring does not join back to the record store.
type Candidate struct {
	RecordID   int64
	BankName   string
	BankCode   string
	Tokens     []string
	Similarity float64 // [0,1], zero for keyword-sourced candidates
}

// SyncStats reports drift between the vector index and the record store.
type SyncStats struct {
	VectorCount        int
	SourceCount        int
	IsSynced           bool
	EmbeddingDimension int
}
