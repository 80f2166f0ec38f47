// Package tokenizer turns vocabulary entries into index terms. The type and
// key of an entry are indexed verbatim as exact terms; the display text is
// lower-cased, split on non-alphanumeric boundaries, stripped of stop-words
// and lightly stemmed.
package tokenizer

import (
	"strings"
	"unicode"
)

const (
	TypePrefix = "type:"
	KeyPrefix  = "key:"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {}, "by": {},
	"de": {}, "for": {}, "from": {}, "in": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "with": {},
}

// Token is a normalised term and its position in the source text.
type Token struct {
	Term     string
	Position int
}

// TypeTerm is the exact term of a vocabulary type.
func TypeTerm(vocabType string) string {
	return TypePrefix + vocabType
}

// KeyTerm is the exact term of a vocabulary key. Keys are case sensitive.
func KeyTerm(key string) string {
	return KeyPrefix + key
}

// IsExact reports whether term is a type or key term.
func IsExact(term string) bool {
	return strings.HasPrefix(term, TypePrefix) || strings.HasPrefix(term, KeyPrefix)
}

// Tokenize breaks free text into stemmed, lower-cased tokens.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		tokens = append(tokens, Token{Term: stem(word), Position: pos})
		pos++
	}
	return tokens
}

var suffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"ations", "ate", 2},
	{"ation", "ate", 2},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"ed", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

func stem(word string) string {
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(stemmed) >= rule.minLen {
				return stemmed
			}
		}
	}
	return word
}
