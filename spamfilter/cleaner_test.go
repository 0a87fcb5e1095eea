package spamfilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yyyoichi/mllab/spamfilter"
)

func TestClean(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and drops stopwords", "FREE MONEY NOW CLICK HERE", "free money click"},
		{"drops tokens with punctuation", "Win a FREE prize now!!!", "win free prize"},
		{"drops tokens with digits", "call 08001234567 to claim", "call claim"},
		{"empty input", "", ""},
		{"whitespace only", " \t\n  ", ""},
		{"stopwords only", "the and of is", ""},
		{"collapses whitespace", "free\t\tmoney\n click", "free money click"},
		{"keeps unicode letters", "Café au lait", "café au lait"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := spamfilter.Clean(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, spamfilter.Clean(got), "cleaning must be idempotent")
		})
	}
}

func TestCleanDeterministic(t *testing.T) {
	t.Parallel()
	const msg = "URGENT! You have WON a free prize, click http://spam.example NOW"
	first := spamfilter.Clean(msg)
	for range 10 {
		assert.Equal(t, first, spamfilter.Clean(msg))
	}
}
