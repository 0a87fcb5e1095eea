package spamfilter

import (
	"bufio"
	_ "embed"
	"strings"
	"unicode"
)

//go:embed stopwords.txt
var stopwordData []byte

var stopwords = func() map[string]struct{} {
	words := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(string(stopwordData)))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			words[line] = struct{}{}
		}
	}
	return words
}()

// Clean normalizes raw message text for the classifier. It lowercases
// the input, splits on whitespace, drops every token that contains a
// non-letter character, drops stopwords, and joins the survivors with
// single spaces. Applying Clean to its own output changes nothing.
func Clean(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	kept := fields[:0]
	for _, tok := range fields {
		if !alphabetic(tok) {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func alphabetic(tok string) bool {
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
