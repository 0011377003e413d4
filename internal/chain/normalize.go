package chain

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.AmericanEnglish)

// entitySuffixes are dropped during normalization so "FIRST BANK N.A." and
// "FIRST BANK" compare equal.
var entitySuffixes = map[string]bool{
	"TRST":    true,
	"TRUST":   true,
	"TRUSTEE": true,
	"NA":      true,
	"LLC":     true,
	"INC":     true,
	"CORP":    true,
	"CO":      true,
	"LP":      true,
}

// NormalizeName canonicalizes a party name for comparison: uppercase,
// punctuation stripped, whitespace collapsed, entity suffixes dropped.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	folded := upper.String(name)
	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteByte(' ')
		default:
			// Punctuation separates tokens so "N.A." splits cleanly.
			sb.WriteByte(' ')
		}
	}
	tokens := strings.Fields(sb.String())
	kept := tokens[:0]
	for _, token := range tokens {
		if entitySuffixes[token] {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// NamesMatch reports whether two party names refer to the same entity after
// normalization. Partial containment matches only for names longer than three
// characters, and spacing variants ("US BANK" vs "U S BANK") compare equal.
func NamesMatch(a, b string) bool {
	na := NormalizeName(a)
	nb := NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if len(na) > 3 && len(nb) > 3 {
		if strings.Contains(na, nb) || strings.Contains(nb, na) {
			return true
		}
	}
	return strings.ReplaceAll(na, " ", "") == strings.ReplaceAll(nb, " ", "")
}

func anyNameMatches(grantees, grantors []string) bool {
	for _, grantee := range grantees {
		for _, grantor := range grantors {
			if NamesMatch(grantee, grantor) {
				return true
			}
		}
	}
	return false
}
