package neural

import "math"

const probEps = 1e-7

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// logLoss is binary cross entropy with the prediction clamped away
// from 0 and 1 so the logarithms stay finite.
func logLoss(p, y float64) float64 {
	p = math.Min(math.Max(p, probEps), 1-probEps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}
