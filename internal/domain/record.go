package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// CodeLength is the fixed length of inter-bank clearing identifiers.
const CodeLength = 12

// BankRecord is a single bank-branch entity from the source-of-truth store.
// The engine only reads records; mutation belongs to the ingestion boundary.
type BankRecord struct {
	ID           int64
	BankName     string // legal branch name, free text
	BankCode     string // 12-digit inter-bank clearing identifier (联行号)
	ClearingCode string // 12-digit settlement identifier
}

// Validate enforces the ingestion invariants: non-empty name, both codes
// exactly 12 numeric characters.
func (r BankRecord) Validate() error {
	if strings.TrimSpace(r.BankName) == "" {
		return fmt.Errorf("%w: bank_name is empty", ErrInvalidRecord)
	}
	if !isNumericCode(r.BankCode) {
		return fmt.Errorf("%w: bank_code %q must be %d digits", ErrInvalidRecord, r.BankCode, CodeLength)
	}
	if !isNumericCode(r.ClearingCode) {
		return fmt.Errorf("%w: clearing_code %q must be %d digits", ErrInvalidRecord, r.ClearingCode, CodeLength)
	}
	return nil
}

func isNumericCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// NormalizeName canonicalizes a legal name for equality lookups: lowercases
// latin letters and drops all whitespace and punctuation (half- and
// full-width). CJK characters pass through unchanged.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
