package extract

import (
	"sort"
	"unicode"
)

type segKind int

const (
	kindWord segKind = iota // latin/digit run
	kindBrand
	kindLocation
	kindSuffix
	kindResidual
)

type segmentToken struct {
	text string
	pos  int // rune offset in the normalized string
	kind segKind
}

// segment splits a normalized query into ordered tokens: latin/digit words,
// known brands, gazetteer or suffix-delimited locations, branch suffix
// markers, and residual CJK runs.
func segment(norm string) []segmentToken {
	runes := []rune(norm)
	var toks []segmentToken

	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ':
			i++
		case unicode.Is(unicode.Han, r):
			j := i
			for j < len(runes) && unicode.Is(unicode.Han, runes[j]) {
				j++
			}
			toks = append(toks, segmentHan(runes[i:j], i)...)
			i = j
		default:
			j := i
			for j < len(runes) && runes[j] != ' ' && !unicode.Is(unicode.Han, runes[j]) {
				j++
			}
			toks = append(toks, segmentToken{text: string(runes[i:j]), pos: i, kind: kindWord})
			i = j
		}
	}

	sort.SliceStable(toks, func(a, b int) bool { return toks[a].pos < toks[b].pos })
	return toks
}

// segmentHan covers one CJK run with vocabulary matches and emits the
// leftover stretches as residual tokens.
func segmentHan(run []rune, base int) []segmentToken {
	covered := make([]bool, len(run))
	var toks []segmentToken

	toks = append(toks, markMatches(run, covered, base, brandKeys, kindBrand)...)
	toks = append(toks, markMatches(run, covered, base, branchSuffixes, kindSuffix)...)
	toks = append(toks, markMatches(run, covered, base, locationKeys, kindLocation)...)
	toks = append(toks, markDivisions(run, covered, base)...)

	// Residual stretches; single characters are too weak to keep.
	start := -1
	for i := 0; i <= len(run); i++ {
		if i < len(run) && !covered[i] {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= 2 {
			toks = append(toks, segmentToken{text: string(run[start:i]), pos: base + start, kind: kindResidual})
		}
		start = -1
	}

	return toks
}

// markMatches finds non-overlapping occurrences of vocabulary entries,
// longest entries first, skipping already covered stretches.
func markMatches(run []rune, covered []bool, base int, vocab []string, kind segKind) []segmentToken {
	var toks []segmentToken
	for _, entry := range vocab {
		er := []rune(entry)
		if len(er) == 0 || len(er) > len(run) {
			continue
		}
		for i := 0; i+len(er) <= len(run); i++ {
			if !matchesAt(run, covered, er, i) {
				continue
			}
			for j := i; j < i+len(er); j++ {
				covered[j] = true
			}
			toks = append(toks, segmentToken{text: entry, pos: base + i, kind: kind})
			i += len(er) - 1
		}
	}
	return toks
}

// markDivisions catches administrative divisions the gazetteer misses by
// their closing suffix: up to three uncovered runes before 省/市/县/区/…
// become one location token (朝阳区, 海淀区, 中关村街道).
func markDivisions(run []rune, covered []bool, base int) []segmentToken {
	var toks []segmentToken
	for _, suffix := range locationSuffixes {
		sr := []rune(suffix)
		for i := 0; i+len(sr) <= len(run); i++ {
			if !matchesAt(run, covered, sr, i) {
				continue
			}
			start := i
			for start > 0 && !covered[start-1] && i-start < 3 {
				start--
			}
			if start == i {
				// Bare suffix. If it trails a covered token (北京 + 市) absorb
				// it so it cannot leak into the next division token.
				if i > 0 && covered[i-1] {
					for j := i; j < i+len(sr); j++ {
						covered[j] = true
					}
				}
				continue
			}
			for j := start; j < i+len(sr); j++ {
				covered[j] = true
			}
			toks = append(toks, segmentToken{text: string(run[start : i+len(sr)]), pos: base + start, kind: kindLocation})
			i += len(sr) - 1
		}
	}
	return toks
}

func matchesAt(run []rune, covered []bool, entry []rune, at int) bool {
	for j, r := range entry {
		if covered[at+j] || run[at+j] != r {
			return false
		}
	}
	return true
}
