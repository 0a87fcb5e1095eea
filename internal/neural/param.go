package neural

import (
	"math"
	"math/rand"
)

// param is one learnable tensor: its values and the gradient
// accumulated since the last optimizer step.
type param struct {
	w []float64
	g []float64
}

func newParam(size int) *param {
	return &param{
		w: make([]float64, size),
		g: make([]float64, size),
	}
}

func (p *param) zeroGrad() {
	clear(p.g)
}

// initUniform fills the values from U(-scale, scale).
func (p *param) initUniform(rd *rand.Rand, scale float64) {
	for i := range p.w {
		p.w[i] = (rd.Float64()*2 - 1) * scale
	}
}

// initGlorot fills the values with the Glorot uniform limit for the
// given fan sizes.
func (p *param) initGlorot(rd *rand.Rand, fanIn, fanOut int) {
	p.initUniform(rd, math.Sqrt(6.0/float64(fanIn+fanOut)))
}
