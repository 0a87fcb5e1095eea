package neural

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdamStep(t *testing.T) {
	t.Parallel()
	p := newParam(1)
	p.w[0] = 1
	p.g[0] = 0.5
	opt := newAdam(0.1, []*param{p})

	opt.step([]*param{p}, 1)
	// with bias correction the first step moves by almost exactly lr
	assert.InDelta(t, 0.9, p.w[0], 1e-7)
	assert.Zero(t, p.g[0], "gradients must be cleared after the update")

	p.g[0] = 0.5
	opt.step([]*param{p}, 1)
	assert.InDelta(t, 0.8, p.w[0], 1e-6)
}

func TestAdamBatchScaling(t *testing.T) {
	t.Parallel()
	// the same mean gradient must produce the same update whether it
	// was accumulated over one example or four
	single := newParam(1)
	single.w[0] = 1
	single.g[0] = 0.25
	optA := newAdam(0.01, []*param{single})
	optA.step([]*param{single}, 1)

	batched := newParam(1)
	batched.w[0] = 1
	batched.g[0] = 1.0
	optB := newAdam(0.01, []*param{batched})
	optB.step([]*param{batched}, 0.25)

	assert.Equal(t, single.w[0], batched.w[0])
}

func TestAccumulator(t *testing.T) {
	t.Parallel()
	var a Accumulator
	assert.Zero(t, a.Loss())
	assert.Zero(t, a.Accuracy())

	a.Add(0.9, 1) // hit
	a.Add(0.4, 1) // miss
	a.Add(0.2, 0) // hit
	require.Equal(t, 3, a.Count())
	assert.InDelta(t, 2.0/3.0, a.Accuracy(), 1e-12)
	// mean of -ln(0.9), -ln(0.4), -ln(0.8)
	assert.InDelta(t, 0.414932, a.Loss(), 1e-5)
}
