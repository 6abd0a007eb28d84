package rnn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightedLoss(c *RNNCell, tokens []int, w []float64) float64 {
	return Dot(c.Encode(tokens, len(tokens)).Output(), w)
}

func TestEncodeLength(t *testing.T) {
	c := NewRNNCell(6, 4, 3, rand.New(rand.NewSource(1)))
	tr := c.Encode([]int{2, 3, 4, 0, 0}, 3)

	assert.Len(t, tr.Tokens, 3)
	assert.Len(t, tr.Hidden, 4)
	assert.Len(t, tr.Output(), 3)

	empty := c.Encode([]int{0, 0}, 0)
	assert.Equal(t, []float64{0, 0, 0}, empty.Output())
}

func TestEncodeDeterministic(t *testing.T) {
	c := NewRNNCell(6, 4, 3, rand.New(rand.NewSource(1)))
	a := c.Encode([]int{2, 5, 1}, 3).Output()
	b := c.Encode([]int{2, 5, 1}, 3).Output()
	assert.True(t, VectorEqual(a, b))
}

func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	c := NewRNNCell(5, 3, 4, rng)
	tokens := []int{1, 4, 2, 4}
	w := []float64{0.5, -1, 0.25, 2}

	tr := c.Encode(tokens, len(tokens))
	c.Backward(tr, w)

	const eps = 1e-6
	for _, p := range c.Parameters() {
		for i := range p.Value {
			orig := p.Value[i]
			p.Value[i] = orig + eps
			up := weightedLoss(c, tokens, w)
			p.Value[i] = orig - eps
			down := weightedLoss(c, tokens, w)
			p.Value[i] = orig

			numeric := (up - down) / (2 * eps)
			require.InDelta(t, numeric, p.Grad[i], 1e-5, "%s[%d]", p.Name, i)
		}
	}
}

func TestPaddingRowUntouched(t *testing.T) {
	c := NewRNNCell(4, 2, 2, rand.New(rand.NewSource(5)))
	assert.Equal(t, []float64{0, 0}, c.Embed.Row(0))
}

func TestVectorHelpers(t *testing.T) {
	assert.Equal(t, 11.0, Dot([]float64{1, 2}, []float64{3, 4}))
	assert.Equal(t, 6.0, Sum([]float64{1, 2, 3}))
	assert.False(t, VectorEqual([]float64{1}, []float64{1, 2}))
	assert.False(t, VectorEqual([]float64{1}, []float64{2}))
}
