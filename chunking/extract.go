package chunking

import (
	"strings"
	"unicode"

	"github.com/poiesic/vectorpipe/core"
)

// ContentFields are checked in order for a record's primary text.
var ContentFields = []string{"content", "text", "description", "body"}

// safePunct lists the non-alphanumeric characters kept by CleanText.
const safePunct = ".,!?;:'\"-()[]/@#$%&*+=_|<>~"

// ExtractText returns the whitespace-normalized text of the first non-empty
// content field, and whether one was found.
func ExtractText(rec core.Record) (string, bool) {
	for _, field := range ContentFields {
		if text := CleanText(rec.String(field)); text != "" {
			return text, true
		}
	}
	return "", false
}

// CleanText drops characters outside the safe set and collapses whitespace.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		case strings.ContainsRune(safePunct, r):
			return r
		}
		return -1
	}, text)
	return strings.Join(strings.Fields(cleaned), " ")
}

// lookup resolves a dotted path such as "wallet.chainName" in nested maps.
func lookup(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}
