package core

import (
	"math"
	"strings"
)

// Stop words to filter out of search terms and keywords
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "or": true, "will": true, "were": true, "been": true,
	"they": true, "their": true, "there": true, "which": true, "when": true,
	"what": true, "into": true, "than": true, "then": true, "them": true,
	"these": true, "those": true, "would": true, "could": true, "should": true,
	"about": true, "also": true, "more": true, "some": true, "such": true,
	"only": true, "other": true, "over": true, "your": true, "very": true,
}

// IsStopWord reports whether a lowercased word carries no search value.
func IsStopWord(word string) bool {
	return stopWords[word]
}

// Tokenize splits text into words, lowercases, trims punctuation, and removes stop words.
func Tokenize(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}|/\\`*#"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// TextRelevance scores how well content matches query in [0,1].
// Each query term contributes a saturating term-frequency weight tf/(tf+1.2),
// averaged over the distinct query terms.
func TextRelevance(query, content string) float64 {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return 0
	}

	freq := make(map[string]int)
	for _, w := range Tokenize(content) {
		freq[w]++
	}

	seen := make(map[string]bool, len(terms))
	var sum float64
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		if tf := float64(freq[term]); tf > 0 {
			sum += tf / (tf + 1.2)
		}
	}
	return sum / float64(len(seen))
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length or zero magnitude score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
