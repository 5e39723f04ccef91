package scoring

import (
	"strings"
	"unicode"
)

// Tokenize lowercases s and splits it on non-alphanumeric boundaries.
// The result has no duplicates and keeps the first-seen order.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), isSeparator)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	res := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		res = append(res, f)
	}
	return res
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

type tokenSet map[string]struct{}

func (s tokenSet) add(text string) {
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
		s[tok] = struct{}{}
	}
}

func (s tokenSet) has(tok string) bool {
	_, ok := s[tok]
	return ok
}
