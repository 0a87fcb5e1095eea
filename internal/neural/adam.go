package neural

import "math"

// adam holds the first and second moment estimates of every parameter
// and applies the Adam update rule with bias correction.
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
	m, v  [][]float64
}

func newAdam(lr float64, params []*param) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
	for _, p := range params {
		a.m = append(a.m, make([]float64, len(p.w)))
		a.v = append(a.v, make([]float64, len(p.w)))
	}
	return a
}

// step applies one update using the gradients accumulated in params,
// scaled by invBatch, then clears them.
func (a *adam) step(params []*param, invBatch float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, p := range params {
		m, v := a.m[i], a.v[i]
		for j, g := range p.g {
			g *= invBatch
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
			p.w[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.eps)
		}
		p.zeroGrad()
	}
}
