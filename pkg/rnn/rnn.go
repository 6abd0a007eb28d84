package rnn

import (
	"math"
	"math/rand"

	"github.com/cnclabs/ddi/pkg/optim"
)

// RNNCell is an Elman recurrent encoder over character tokens. Each token is
// looked up in an embedding table and folded into the hidden state:
//
//	h_t = tanh(Wx * embed[x_t] + Wh * h_{t-1} + b)
//
// The final hidden state is the sequence encoding.
type RNNCell struct {
	VocabSize int
	InputDim  int
	HiddenDim int

	Embed *optim.Parameter // [vocabSize x inputDim]
	Wx    *optim.Parameter // input-to-hidden weights [hiddenDim x inputDim]
	Wh    *optim.Parameter // hidden-to-hidden weights [hiddenDim x hiddenDim]
	B     *optim.Parameter // bias [1 x hiddenDim]
}

// Trace keeps what Backward needs from one Encode call
type Trace struct {
	Tokens []int
	Hidden [][]float64 // Hidden[0] is the zero state, Hidden[t+1] follows Tokens[t]
}

// Output returns the final hidden state
func (tr *Trace) Output() []float64 {
	return tr.Hidden[len(tr.Hidden)-1]
}

// NewRNNCell creates a cell with small random weights drawn from rng
func NewRNNCell(vocabSize, inputDim, hiddenDim int, rng *rand.Rand) *RNNCell {
	c := &RNNCell{
		VocabSize: vocabSize,
		InputDim:  inputDim,
		HiddenDim: hiddenDim,
		Embed:     optim.NewParameter("rnn.embed", vocabSize, inputDim),
		Wx:        optim.NewParameter("rnn.wx", hiddenDim, inputDim),
		Wh:        optim.NewParameter("rnn.wh", hiddenDim, hiddenDim),
		B:         optim.NewParameter("rnn.b", 1, hiddenDim),
	}

	scale := 1.0 / math.Sqrt(float64(hiddenDim))
	for _, p := range []*optim.Parameter{c.Wx, c.Wh} {
		for i := range p.Value {
			p.Value[i] = (rng.Float64()*2 - 1) * scale
		}
	}
	// row 0 is padding and stays zero
	for i := inputDim; i < len(c.Embed.Value); i++ {
		c.Embed.Value[i] = (rng.Float64() - 0.5) / float64(inputDim)
	}
	return c
}

// Parameters returns the trainable parameters of the cell
func (c *RNNCell) Parameters() []*optim.Parameter {
	return []*optim.Parameter{c.Embed, c.Wx, c.Wh, c.B}
}

// Encode runs the first length tokens through the cell
func (c *RNNCell) Encode(tokens []int, length int) *Trace {
	if length > len(tokens) {
		length = len(tokens)
	}
	tr := &Trace{
		Tokens: tokens[:length],
		Hidden: make([][]float64, 0, length+1),
	}
	tr.Hidden = append(tr.Hidden, make([]float64, c.HiddenDim))

	for _, tok := range tr.Tokens {
		tr.Hidden = append(tr.Hidden, c.Forward(tr.Output(), c.Embed.Row(tok)))
	}
	return tr
}

// Forward performs one step of the cell
func (c *RNNCell) Forward(hiddenState, input []float64) []float64 {
	newHidden := make([]float64, c.HiddenDim)
	bias := c.B.Row(0)

	for i := 0; i < c.HiddenDim; i++ {
		sum := bias[i]
		sum += Dot(c.Wh.Row(i), hiddenState)
		sum += Dot(c.Wx.Row(i), input)
		newHidden[i] = math.Tanh(sum)
	}
	return newHidden
}

// Backward back-propagates dh, the loss gradient with respect to the final
// hidden state of tr, through time and accumulates parameter gradients.
func (c *RNNCell) Backward(tr *Trace, dh []float64) {
	grad := make([]float64, c.HiddenDim)
	copy(grad, dh)
	da := make([]float64, c.HiddenDim)
	bGrad := c.B.GradRow(0)

	for t := len(tr.Tokens) - 1; t >= 0; t-- {
		h, prev := tr.Hidden[t+1], tr.Hidden[t]
		x := c.Embed.Row(tr.Tokens[t])
		xGrad := c.Embed.GradRow(tr.Tokens[t])

		for i := 0; i < c.HiddenDim; i++ {
			da[i] = grad[i] * (1 - h[i]*h[i])
			bGrad[i] += da[i]
		}

		next := make([]float64, c.HiddenDim)
		for i := 0; i < c.HiddenDim; i++ {
			if da[i] == 0 {
				continue
			}
			whGrad := c.Wh.GradRow(i)
			wh := c.Wh.Row(i)
			for j := 0; j < c.HiddenDim; j++ {
				whGrad[j] += da[i] * prev[j]
				next[j] += da[i] * wh[j]
			}
			wxGrad := c.Wx.GradRow(i)
			wx := c.Wx.Row(i)
			for j := 0; j < c.InputDim; j++ {
				wxGrad[j] += da[i] * x[j]
				xGrad[j] += da[i] * wx[j]
			}
		}
		grad = next
	}
}
