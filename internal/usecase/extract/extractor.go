// Package extract parses free-text bank-branch queries into structured
// retrieval hints: brand, location, branch token, clearing-code pattern and
// keyword tokens. Extraction is a pure function and never fails; in the
// worst case every field is empty and the keywords are the raw tokens.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/tonnylei0321/bankfind/internal/domain"
)

var codePattern = regexp.MustCompile(`\d{12}`)

// Extract parses a raw query into QueryEntities.
func Extract(query string) domain.QueryEntities {
	norm := normalize(query)
	compact := strings.ReplaceAll(norm, " ", "")

	var ents domain.QueryEntities
	if compact == "" {
		return ents
	}

	ents.CodePattern = codePattern.FindString(compact)

	segs := segment(norm)
	for _, seg := range segs {
		switch seg.kind {
		case kindBrand:
			if ents.BankType == "" {
				ents.BankType = brandAliases[seg.text]
			}
		case kindLocation:
			if ents.Location == "" {
				ents.Location = seg.text
			}
		case kindResidual:
			if _, stop := stopwords[seg.text]; stop {
				continue
			}
			if ents.BranchName == "" && !isDigits(seg.text) {
				ents.BranchName = seg.text
			}
		}
	}

	if looksLikeFullName(compact, ents) {
		ents.FullName = compact
	}

	ents.Keywords = keywordsFrom(segs, compact)
	return ents
}

// Tokens returns the keyword tokens of a record name, using the same
// segmentation as query extraction so index-time and query-time tokens line
// up. Used to precompute VectorEntry.Tokens and the inverted keyword index.
func Tokens(name string) []string {
	norm := normalize(name)
	compact := strings.ReplaceAll(norm, " ", "")
	if compact == "" {
		return nil
	}
	return keywordsFrom(segment(norm), compact)
}

// looksLikeFullName reports whether the whole query reads as a complete
// legal branch name: a bank mention, a branch suffix at the end, and no
// embedded clearing code.
func looksLikeFullName(compact string, ents domain.QueryEntities) bool {
	if ents.CodePattern != "" {
		return false
	}
	hasBankWord := ents.BankType != "" ||
		strings.Contains(compact, "银行") || strings.Contains(compact, "信用社")
	if !hasBankWord {
		return false
	}
	for _, suffix := range branchSuffixes {
		if strings.HasSuffix(compact, suffix) {
			return true
		}
	}
	return false
}

func keywordsFrom(segs []segmentToken, compact string) []string {
	keywords := make([]string, 0, len(segs))
	seen := make(map[string]struct{}, len(segs))
	for _, seg := range segs {
		text := seg.text
		if seg.kind == kindBrand {
			// Index the canonical brand so 工行 and 工商银行 meet in one token.
			text = brandAliases[seg.text]
		}
		if _, stop := stopwords[text]; stop {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		keywords = append(keywords, text)
	}
	if len(keywords) == 0 {
		keywords = append(keywords, compact)
	}
	return keywords
}

// normalize lowercases latin letters and replaces punctuation and symbols
// with spaces, preserving latin word boundaries. CJK passes through.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			if !space {
				b.WriteRune(' ')
				space = true
			}
			continue
		}
		b.WriteRune(unicode.ToLower(r))
		space = false
	}
	return strings.TrimSpace(b.String())
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
