package spamfilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/mllab/spamfilter"
)

func TestBuildVocabulary(t *testing.T) {
	t.Parallel()
	t.Run("ranks by frequency", func(t *testing.T) {
		v := spamfilter.BuildVocabulary([]string{"free money free", "money click free"}, 0)
		assert.Equal(t, map[string]int{"free": 1, "money": 2, "click": 3}, v.Index)
		assert.Equal(t, 3, v.Words())
		assert.Equal(t, 4, v.Rows())
	})
	t.Run("breaks ties by first appearance", func(t *testing.T) {
		v := spamfilter.BuildVocabulary([]string{"bb aa", "aa bb", "cc"}, 0)
		assert.Equal(t, map[string]int{"bb": 1, "aa": 2, "cc": 3}, v.Index)
	})
	t.Run("caps at max words", func(t *testing.T) {
		v := spamfilter.BuildVocabulary([]string{"free money free", "money click free"}, 2)
		assert.Equal(t, map[string]int{"free": 1, "money": 2}, v.Index)
	})
	t.Run("empty corpus", func(t *testing.T) {
		v := spamfilter.BuildVocabulary(nil, 100)
		assert.Zero(t, v.Words())
		assert.Equal(t, 1, v.Rows(), "the padding row always exists")
	})
}

func TestVocabularyEncode(t *testing.T) {
	t.Parallel()
	v := spamfilter.BuildVocabulary([]string{"free money free", "money click free"}, 0)

	tests := []struct {
		name   string
		text   string
		seqLen int
		want   []int
	}{
		{"pads with trailing zeros", "free click money", 5, []int{1, 3, 2, 0, 0}},
		{"drops unknown tokens", "free pelican money", 5, []int{1, 2, 0, 0, 0}},
		{"cuts at sequence length", "free click money", 2, []int{1, 3}},
		{"empty text is all padding", "", 4, []int{0, 0, 0, 0}},
		{"only unknown tokens is all padding", "pelican heron", 3, []int{0, 0, 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := v.Encode(tc.text, tc.seqLen)
			require.Equal(t, tc.want, got)
			require.Len(t, got, tc.seqLen)
		})
	}
}
