package lowrank_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/mllab/internal/lowrank"
)

func TestDecompose_FullRankRoundTrip(t *testing.T) {
	test := []struct {
		name string
		w, h int
		data []float64
	}{
		{name: "2x2_symmetric", w: 2, h: 2, data: []float64{3, 1, 1, 3}},
		{name: "3x3_identity", w: 3, h: 3, data: []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}},
		{name: "3x2_rectangular", w: 2, h: 3, data: []float64{1, 2, 3, 4, 5, 6}},
		{name: "2x3_rectangular", w: 3, h: 2, data: []float64{1, 2, 3, 4, 5, 6}},
		{name: "3x3_diagonal", w: 3, h: 3, data: []float64{5, 0, 0, 0, 3, 0, 0, 0, 1}},
	}

	for _, tt := range test {
		t.Run(tt.name, func(t *testing.T) {
			f, err := lowrank.Decompose(tt.data, tt.w, tt.h)
			require.NoError(t, err)

			// Keeping every triplet must reproduce the original matrix.
			tr, err := f.Truncate(f.Rank())
			require.NoError(t, err)
			rec := tr.Reconstruct()

			const tolerance = 1e-10
			for i := range tt.h {
				for j := range tt.w {
					assert.InDelta(t, tt.data[i*tt.w+j], rec.At(i, j), tolerance,
						"reconstruction mismatch at (%d,%d)", i, j)
				}
			}
		})
	}
}

func TestDecompose_SingularValueProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := make([]float64, 12*9)
	for i := range data {
		data[i] = rng.Float64() * 255
	}

	f, err := lowrank.Decompose(data, 9, 12)
	require.NoError(t, err)
	require.Equal(t, 9, f.Rank())

	s := f.Values()
	for i, v := range s {
		assert.GreaterOrEqual(t, v, 0.0, "singular value[%d] must be non-negative", i)
	}
	for i := 1; i < len(s); i++ {
		assert.GreaterOrEqual(t, s[i-1], s[i], "singular values must descend")
	}
}

func TestFactors_Energy(t *testing.T) {
	t.Run("monotone_in_unit_interval", func(t *testing.T) {
		rng := rand.New(rand.NewSource(11))
		data := make([]float64, 16*16)
		for i := range data {
			data[i] = rng.Float64()
		}
		f, err := lowrank.Decompose(data, 16, 16)
		require.NoError(t, err)

		e := f.Energy()
		require.Len(t, e, f.Rank())
		prev := 0.0
		for i, v := range e {
			assert.GreaterOrEqual(t, v, prev, "energy must not decrease at %d", i)
			assert.LessOrEqual(t, v, 1.0+1e-12)
			prev = v
		}
		assert.InDelta(t, 1.0, e[len(e)-1], 1e-12, "full energy must be 1")
	})

	t.Run("known_spectrum", func(t *testing.T) {
		// diag(3,1) has singular values 3 and 1: energy 0.75 then 1.0.
		f, err := lowrank.Decompose([]float64{3, 0, 0, 1}, 2, 2)
		require.NoError(t, err)
		e := f.Energy()
		require.Len(t, e, 2)
		assert.InDelta(t, 0.75, e[0], 1e-12)
		assert.InDelta(t, 1.0, e[1], 1e-12)
	})

	t.Run("zero_matrix", func(t *testing.T) {
		f, err := lowrank.Decompose(make([]float64, 9), 3, 3)
		require.NoError(t, err)
		for _, v := range f.Energy() {
			assert.Zero(t, v)
		}
	})
}

func TestFactors_Truncate(t *testing.T) {
	data := []float64{
		1, 2, 3,
		2, 4, 6,
		3, 6, 9,
	}
	f, err := lowrank.Decompose(data, 3, 3)
	require.NoError(t, err)

	t.Run("rank_deficient", func(t *testing.T) {
		// The matrix has rank 1, so a single triplet reconstructs it.
		tr, err := f.Truncate(1)
		require.NoError(t, err)
		rec := tr.Reconstruct()
		for i := range 3 {
			for j := range 3 {
				assert.InDelta(t, data[i*3+j], rec.At(i, j), 1e-10)
			}
		}
	})

	t.Run("out_of_range", func(t *testing.T) {
		_, err := f.Truncate(0)
		assert.Error(t, err)
		_, err = f.Truncate(4)
		assert.Error(t, err)
	})

	t.Run("shapes", func(t *testing.T) {
		tr, err := f.Truncate(2)
		require.NoError(t, err)
		assert.Len(t, tr.U, 3*2)
		assert.Len(t, tr.S, 2)
		assert.Len(t, tr.V, 3*2)
	})
}

func TestRatio(t *testing.T) {
	// 100x100 at k=10: 10000 / (10*201) > 1.
	assert.Greater(t, lowrank.Ratio(100, 100, 10), 1.0)

	// Non-increasing in k.
	prev := lowrank.Ratio(480, 640, 1)
	for k := 2; k <= 480; k++ {
		r := lowrank.Ratio(480, 640, k)
		assert.LessOrEqual(t, r, prev, "ratio must not increase at k=%d", k)
		prev = r
	}

	// Above 1 whenever fewer than half the possible triplets are kept.
	for _, tt := range []struct{ m, n int }{{100, 100}, {480, 640}, {33, 97}} {
		k := min(tt.m, tt.n)/2 - 1
		assert.Greater(t, lowrank.Ratio(tt.m, tt.n, k), 1.0, "%dx%d k=%d", tt.m, tt.n, k)
	}
}

func TestDecompose_InvalidShape(t *testing.T) {
	_, err := lowrank.Decompose([]float64{1, 2, 3}, 2, 2)
	assert.Error(t, err)
	_, err = lowrank.Decompose(nil, 0, 0)
	assert.Error(t, err)
}
