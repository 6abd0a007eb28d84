package siamese

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/ddi/pkg/pairnet"
	"github.com/cnclabs/ddi/pkg/rnn"
)

func charModel(t *testing.T, binary bool) *Siamese {
	m, err := New(Config{Rep: pairnet.RepChars, VocabSize: 6, InputDim: 3, HiddenDim: 4, Binary: binary, Seed: 11}, nil)
	require.NoError(t, err)
	return m
}

func tokens(ts ...int) pairnet.Representation {
	return pairnet.Representation{Tokens: ts}
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Rep: pairnet.RepChars, VocabSize: 6, InputDim: 3}, nil)
	assert.Error(t, err)
	_, err = New(Config{Rep: pairnet.RepFeatures, HiddenDim: 2}, nil)
	assert.Error(t, err)
	_, err = New(Config{Rep: pairnet.RepIdx(2), HiddenDim: 2}, nil)
	assert.ErrorIs(t, err, pairnet.ErrUnsupportedRep)
}

func TestSelfPairIsSymmetric(t *testing.T) {
	m := charModel(t, true)
	m.Eval()
	rep := tokens(2, 3, 5, 1)
	out, err := m.Forward([]pairnet.Representation{rep}, []int{4}, []pairnet.Representation{rep}, []int{4})
	require.NoError(t, err)

	assert.True(t, rnn.VectorEqual(out.LeftEmbed[0], out.RightEmbed[0]))
	assert.Len(t, out.LeftEmbed[0], m.EmbedDim())
	assert.True(t, out.Predictions[0] > 0 && out.Predictions[0] < 1)
}

func TestForwardRejectsMismatchedBatch(t *testing.T) {
	m := charModel(t, false)
	_, err := m.Forward([]pairnet.Representation{tokens(2)}, []int{1}, nil, nil)
	assert.Error(t, err)
}

func TestBackwardRequiresTrainingAndLoss(t *testing.T) {
	m := charModel(t, true)
	reps := []pairnet.Representation{tokens(2, 3)}
	out, err := m.Forward(reps, []int{2}, reps, []int{2})
	require.NoError(t, err)

	assert.ErrorIs(t, m.Backward(), ErrNotTraining)
	m.Train(true)
	assert.ErrorIs(t, m.Backward(), ErrNoLoss)

	_, err = m.Loss(out.Predictions, []float64{1})
	require.NoError(t, err)
	assert.NoError(t, m.Backward())
}

func TestLossRejectsMismatch(t *testing.T) {
	m := charModel(t, true)
	reps := []pairnet.Representation{tokens(2, 3)}
	out, err := m.Forward(reps, []int{2}, reps, []int{2})
	require.NoError(t, err)
	_, err = m.Loss(out.Predictions, []float64{1, 0})
	assert.Error(t, err)
}

func lossOf(t *testing.T, m *Siamese, left, right []pairnet.Representation, ll, rl []int, targets []float64) float64 {
	out, err := m.Forward(left, ll, right, rl)
	require.NoError(t, err)
	loss, err := m.Loss(out.Predictions, targets)
	require.NoError(t, err)
	return loss
}

func checkGradients(t *testing.T, m *Siamese, left, right []pairnet.Representation, ll, rl []int, targets []float64) {
	m.Train(true)
	lossOf(t, m, left, right, ll, rl, targets)
	require.NoError(t, m.Backward())

	const eps = 1e-6
	names, params := m.Parameters()
	for k, p := range params {
		for i := range p.Value {
			orig := p.Value[i]
			p.Value[i] = orig + eps
			up := lossOf(t, m, left, right, ll, rl, targets)
			p.Value[i] = orig - eps
			down := lossOf(t, m, left, right, ll, rl, targets)
			p.Value[i] = orig

			require.InDelta(t, (up-down)/(2*eps), p.Grad[i], 1e-5, "%s[%d]", names[k], i)
		}
	}
}

func TestGradientsBinary(t *testing.T) {
	m := charModel(t, true)
	left := []pairnet.Representation{tokens(2, 3, 4), tokens(5, 1, 0)}
	right := []pairnet.Representation{tokens(4, 4, 2), tokens(3, 0, 0)}
	checkGradients(t, m, left, right, []int{3, 2}, []int{3, 1}, []float64{1, 0})
}

func TestGradientsRegressionFeatures(t *testing.T) {
	m, err := New(Config{Rep: pairnet.RepFeatures, FeatureDim: 3, HiddenDim: 2, Seed: 4}, nil)
	require.NoError(t, err)
	left := []pairnet.Representation{{Features: []float64{0.5, -1, 2}}, {Features: []float64{1, 1, 0}}}
	right := []pairnet.Representation{{Features: []float64{-0.3, 0.2, 1}}, {Features: []float64{0, 2, -1}}}
	checkGradients(t, m, left, right, []int{3, 3}, []int{3, 3}, []float64{0.7, -1.2})
}
