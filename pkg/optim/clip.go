package optim

import "math"

// GradNorm returns the global L2 norm of every gradient in params
func GradNorm(params []*Parameter) float64 {
	sum := 0.0
	for _, p := range params {
		for _, g := range p.Grad {
			sum += g * g
		}
	}
	return math.Sqrt(sum)
}

// ClipGradNorm rescales all gradients together so their global L2 norm does
// not exceed maxNorm. It returns the norm measured before clipping. A
// non-positive maxNorm disables clipping.
func ClipGradNorm(params []*Parameter, maxNorm float64) float64 {
	total := GradNorm(params)
	if maxNorm <= 0 {
		return total
	}
	coef := maxNorm / (total + 1e-6)
	if coef >= 1 {
		return total
	}
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] *= coef
		}
	}
	return total
}
