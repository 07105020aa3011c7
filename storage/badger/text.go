package badger

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "were": true, "to": true, "of": true, "and": true, "in": true,
	"that": true, "have": true, "has": true, "it": true, "its": true, "for": true,
	"not": true, "on": true, "with": true, "as": true, "you": true, "do": true,
	"at": true, "this": true, "but": true, "by": true, "from": true, "or": true,
	"what": true, "which": true, "who": true, "how": true, "why": true, "when": true,
	"where": true, "does": true, "did": true, "i": true, "me": true, "my": true,
	"we": true, "our": true, "they": true, "their": true, "he": true, "she": true,
	"his": true, "her": true, "them": true, "there": true, "these": true, "those": true,
	"about": true, "into": true, "than": true, "then": true, "so": true, "if": true,
	"can": true, "will": true, "would": true, "should": true, "could": true,
}

// tokenize splits text into lowercase, stop-word filtered, stemmed terms.
// Index and query text go through the same path so their terms line up.
func tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(word)
		if len(cleaned) < 2 || stopWords[cleaned] {
			continue
		}
		terms = append(terms, stem(cleaned))
	}

	return terms
}

// stem reduces word to its Porter2 stem so plural and tense variants share
// a posting list.
func stem(word string) string {
	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil || stemmed == "" {
		return word
	}
	return stemmed
}

// termFrequencies counts the occurrences of each term.
func termFrequencies(terms []string) map[string]int {
	freqs := make(map[string]int, len(terms))
	for _, term := range terms {
		freqs[term]++
	}
	return freqs
}
