package domain

// QueryEntities holds the structured hints extracted from one raw query.
// All fields are optional; an empty string means the hint was not found.
// Instances live only for the duration of a single Retrieve call.
type QueryEntities struct {
	// FullName is set when the whole query looks like a complete legal
	// branch name (brand present, branch suffix at the end).
	FullName string
	// BankType is the canonical brand resolved from a full or colloquial
	// bank name mention (工行 → 中国工商银行).
	BankType string
	// Location is the first recognized geographic token.
	Location string
	// BranchName is the residual token after brand/location/suffix removal.
	BranchName string
	// CodePattern is a 12-digit run found anywhere in the query.
	CodePattern string
	// Keywords are all non-stopword tokens in query order, deduplicated.
	Keywords []string
}
