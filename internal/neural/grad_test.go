package neural

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixWeights overwrites every parameter with a smooth deterministic
// pattern bounded by scale. The tests below then pin the biases far
// from zero so no activation sits on the relu kink, where a finite
// difference would disagree with the subgradient.
func fixWeights(ps []*param, scale float64) {
	for k, p := range ps {
		for i := range p.w {
			p.w[i] = scale * math.Sin(float64(i+3*k+1))
		}
	}
}

func numericGrad(score func() float64, w []float64, j int, y float64) float64 {
	const eps = 1e-6
	orig := w[j]
	w[j] = orig + eps
	up := logLoss(score(), y)
	w[j] = orig - eps
	down := logLoss(score(), y)
	w[j] = orig
	return (up - down) / (2 * eps)
}

// checkGradients compares every accumulated gradient of one backward
// pass against a central finite difference of the loss.
func checkGradients(t *testing.T, mdl model, seq []int, y float64) {
	t.Helper()
	for _, p := range mdl.params() {
		p.zeroGrad()
	}
	mdl.step(seq, y)

	names := mdl.paramNames()
	for k, p := range mdl.params() {
		for j := range p.w {
			want := numericGrad(func() float64 { return mdl.score(seq) }, p.w, j, y)
			require.InDelta(t, want, p.g[j], 1e-4, "%s[%d] y=%v", names[k], j, y)
		}
	}
}

func TestDenseGradients(t *testing.T) {
	t.Parallel()
	d := newDenseNet(5, 4, 3, 2, rand.New(rand.NewSource(1)))
	fixWeights(d.params(), 0.3)
	// |w1 row . x| <= 12*0.09, so +-2.5 keeps one unit open and one
	// closed under the finite difference perturbation
	d.b1.w[0], d.b1.w[1] = 2.5, -2.5

	// token 1 appears twice so its embedding gradient accumulates
	seq := []int{1, 2, 1, 3}
	for _, y := range []float64{0, 1} {
		checkGradients(t, d, seq, y)
	}
}

func TestDenseClosedUnitGetsNoGradient(t *testing.T) {
	t.Parallel()
	d := newDenseNet(5, 4, 3, 2, rand.New(rand.NewSource(2)))
	fixWeights(d.params(), 0.3)
	d.b1.w[0], d.b1.w[1] = -2.5, -2.5

	d.step([]int{1, 2, 3, 4}, 1)
	for j, g := range d.w1.g {
		assert.Zero(t, g, "w1[%d]", j)
	}
	for j, g := range d.b1.g {
		assert.Zero(t, g, "b1[%d]", j)
	}
	for j, g := range d.emb.g {
		assert.Zero(t, g, "embedding[%d]", j)
	}
	assert.NotZero(t, d.b2.g[0], "the output bias learns even with all units closed")
}

func TestConvGradients(t *testing.T) {
	t.Parallel()
	c := newConvNet(5, 4, 3, 2, 2, rand.New(rand.NewSource(3)))
	fixWeights(c.params(), 0.3)
	// |filter . window| <= 6*0.09, so +-2.5 keeps one filter open
	// across every window and one fully closed
	c.cb.w[0], c.cb.w[1] = 2.5, -2.5

	seq := []int{1, 2, 1, 3}
	for _, y := range []float64{0, 1} {
		checkGradients(t, c, seq, y)
	}
}

func TestConvClosedFilterGetsNoGradient(t *testing.T) {
	t.Parallel()
	c := newConvNet(5, 4, 3, 2, 2, rand.New(rand.NewSource(4)))
	fixWeights(c.params(), 0.3)
	c.cb.w[0], c.cb.w[1] = -2.5, -2.5

	c.step([]int{1, 2, 3, 4}, 0)
	for j, g := range c.cw.g {
		assert.Zero(t, g, "conv[%d]", j)
	}
	for j, g := range c.cb.g {
		assert.Zero(t, g, "convBias[%d]", j)
	}
	for j, g := range c.emb.g {
		assert.Zero(t, g, "embedding[%d]", j)
	}
	assert.NotZero(t, c.b.g[0])
}

func TestConvPoolPicksStrongestWindow(t *testing.T) {
	t.Parallel()
	c := newConvNet(4, 3, 1, 1, 1, rand.New(rand.NewSource(5)))
	// one filter of kernel 1 on one-dimensional embeddings reduces the
	// network to max over scaled embedding values
	c.emb.w = []float64{0, 0.5, 2, -1}
	c.cw.w = []float64{1}
	c.cb.w = []float64{0}

	m, argmax := c.pool([]float64{0.5, 2, -1})
	assert.Equal(t, []float64{2}, m)
	assert.Equal(t, []int{1}, argmax)

	m, argmax = c.pool([]float64{-1, -2, -0.5})
	assert.Equal(t, []float64{0}, m, "all-negative activations pool to zero")
	assert.Equal(t, []int{-1}, argmax)
}
