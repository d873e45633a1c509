package domain

// VectorEntry is one embedded record inside a vector-index generation.
// RecordID is a weak back-reference to the source BankRecord; the remaining
// fields are a denormalized snapshot taken at sync time so query-path
// scoring never joins back to the record store. Entries are created by the
// index sync manager and replaced wholesale on rebuild.
type VectorEntry struct {
	RecordID  int64
	Embedding []float32
	BankName  string
	BankCode  string
	Tokens    []string // precomputed keyword tokens of BankName
}
