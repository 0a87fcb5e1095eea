package spamfilter

import (
	"sort"
	"strings"
)

// Vocabulary assigns dense integer ids to tokens. Id 0 is reserved for
// padding; real tokens get 1..Words() ranked by descending corpus
// frequency, ties broken by first appearance.
type Vocabulary struct {
	Index map[string]int `json:"index"`
}

// BuildVocabulary counts the tokens of the given texts, which should
// already be cleaned, and keeps the maxWords most frequent ones.
// maxWords <= 0 keeps every token.
func BuildVocabulary(texts []string, maxWords int) *Vocabulary {
	type entry struct {
		tok   string
		count int
		first int
	}
	byTok := make(map[string]*entry)
	var order []*entry
	pos := 0
	for _, text := range texts {
		for _, tok := range strings.Fields(text) {
			e, ok := byTok[tok]
			if !ok {
				e = &entry{tok: tok, first: pos}
				byTok[tok] = e
				order = append(order, e)
			}
			e.count++
			pos++
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})
	if maxWords > 0 && len(order) > maxWords {
		order = order[:maxWords]
	}
	index := make(map[string]int, len(order))
	for i, e := range order {
		index[e.tok] = i + 1
	}
	return &Vocabulary{Index: index}
}

// Encode maps the tokens of text to their ids, drops unknown tokens,
// and pads with trailing zeros or cuts to exactly seqLen ids.
func (v *Vocabulary) Encode(text string, seqLen int) []int {
	out := make([]int, seqLen)
	n := 0
	for _, tok := range strings.Fields(text) {
		if n == seqLen {
			break
		}
		if id, ok := v.Index[tok]; ok {
			out[n] = id
			n++
		}
	}
	return out
}

// Words returns the number of distinct tokens in the vocabulary.
func (v *Vocabulary) Words() int { return len(v.Index) }

// Rows returns the embedding table height: every token plus the
// padding row.
func (v *Vocabulary) Rows() int { return len(v.Index) + 1 }
