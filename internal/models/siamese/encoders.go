package siamese

import (
	"math"
	"math/rand"

	"github.com/cnclabs/ddi/pkg/optim"
	"github.com/cnclabs/ddi/pkg/pairnet"
	"github.com/cnclabs/ddi/pkg/rnn"
)

type charEncoder struct {
	cell *rnn.RNNCell
}

func (c *charEncoder) encode(rep pairnet.Representation, length int) ([]float64, func([]float64)) {
	tr := c.cell.Encode(rep.Tokens, length)
	return tr.Output(), func(dh []float64) { c.cell.Backward(tr, dh) }
}

func (c *charEncoder) parameters() []*optim.Parameter {
	return c.cell.Parameters()
}

// dense encodes a real-valued feature vector: h = tanh(W f + b)
type dense struct {
	w *optim.Parameter // [hiddenDim x featureDim]
	b *optim.Parameter // [1 x hiddenDim]
}

func newDense(featureDim, hiddenDim int, rng *rand.Rand) *dense {
	d := &dense{
		w: optim.NewParameter("dense.w", hiddenDim, featureDim),
		b: optim.NewParameter("dense.b", 1, hiddenDim),
	}
	scale := 1.0 / math.Sqrt(float64(featureDim))
	for i := range d.w.Value {
		d.w.Value[i] = (rng.Float64()*2 - 1) * scale
	}
	return d
}

func (d *dense) encode(rep pairnet.Representation, _ int) ([]float64, func([]float64)) {
	f := rep.Features
	h := make([]float64, d.w.Rows)
	for i := range h {
		row := d.w.Row(i)
		sum := d.b.Value[i]
		for j := 0; j < len(row) && j < len(f); j++ {
			sum += row[j] * f[j]
		}
		h[i] = math.Tanh(sum)
	}
	return h, func(dh []float64) {
		for i := range h {
			da := dh[i] * (1 - h[i]*h[i])
			d.b.Grad[i] += da
			grad := d.w.GradRow(i)
			for j := 0; j < len(grad) && j < len(f); j++ {
				grad[j] += da * f[j]
			}
		}
	}
}

func (d *dense) parameters() []*optim.Parameter {
	return []*optim.Parameter{d.w, d.b}
}
