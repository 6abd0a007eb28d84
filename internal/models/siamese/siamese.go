// Package siamese implements a shared-encoder drug pair model: both drugs of
// a pair go through the same encoder and the prediction is a weighted inner
// product of the two embeddings.
package siamese

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/cnclabs/ddi/internal/logging"
	"github.com/cnclabs/ddi/internal/model"
	"github.com/cnclabs/ddi/pkg/optim"
	"github.com/cnclabs/ddi/pkg/pairnet"
	"github.com/cnclabs/ddi/pkg/rnn"
)

var (
	// ErrNotTraining is returned by Backward in eval mode
	ErrNotTraining = errors.New("backward called in eval mode")
	// ErrNoLoss is returned by Backward when Loss was not computed for the latest forward pass
	ErrNoLoss = errors.New("backward called without loss")
)

// Config holds the model settings
type Config struct {
	Rep        pairnet.RepIdx
	VocabSize  int // RepChars only
	FeatureDim int // RepFeatures only
	InputDim   int // character embedding size
	HiddenDim  int // drug embedding size
	Binary     bool
	Seed       int64
}

type encoder interface {
	encode(rep pairnet.Representation, length int) (out []float64, back func(dh []float64))
	parameters() []*optim.Parameter
}

// Siamese is the reference pair model
type Siamese struct {
	cfg      Config
	enc      encoder
	head     *optim.Parameter // [1 x hiddenDim]
	bias     *optim.Parameter // [1 x 1]
	training bool

	// state of the latest forward pass
	left, right [][]float64
	leftBack    []func([]float64)
	rightBack   []func([]float64)
	predictions []float64
	logitGrad   []float64
}

// New creates and initializes a model
func New(cfg Config, sink logging.Sink) (*Siamese, error) {
	if sink == nil {
		sink = logging.Nop
	}
	if cfg.HiddenDim < 1 {
		return nil, errors.Errorf("hidden dim must be positive, got %d", cfg.HiddenDim)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	m := &Siamese{
		cfg:  cfg,
		head: optim.NewParameter("head.w", 1, cfg.HiddenDim),
		bias: optim.NewParameter("head.b", 1, 1),
	}
	switch cfg.Rep {
	case pairnet.RepChars:
		if cfg.VocabSize < 2 || cfg.InputDim < 1 {
			return nil, errors.Errorf("char encoder needs vocab size >= 2 and input dim >= 1, got %d/%d", cfg.VocabSize, cfg.InputDim)
		}
		m.enc = &charEncoder{cell: rnn.NewRNNCell(cfg.VocabSize, cfg.InputDim, cfg.HiddenDim, rng)}
	case pairnet.RepFeatures:
		if cfg.FeatureDim < 1 {
			return nil, errors.Errorf("feature encoder needs feature dim >= 1, got %d", cfg.FeatureDim)
		}
		m.enc = newDense(cfg.FeatureDim, cfg.HiddenDim, rng)
	default:
		return nil, errors.Wrapf(pairnet.ErrUnsupportedRep, "rep_idx %d", cfg.Rep)
	}
	for i := range m.head.Value {
		m.head.Value[i] = 1.0
	}

	sink.Log(logging.Info, "Model Setting:")
	logging.Logf(sink, logging.Info, "\trep_idx:\t\t%d", cfg.Rep)
	logging.Logf(sink, logging.Info, "\tinput_dim:\t\t%d", cfg.InputDim)
	logging.Logf(sink, logging.Info, "\thidden_dim:\t\t%d", cfg.HiddenDim)
	logging.Logf(sink, logging.Info, "\tbinary:\t\t\t%t", cfg.Binary)
	return m, nil
}

// EmbedDim returns the drug embedding size
func (m *Siamese) EmbedDim() int {
	return m.cfg.HiddenDim
}

// Train switches between training and eval mode
func (m *Siamese) Train(on bool) {
	m.training = on
}

// Eval switches to eval mode
func (m *Siamese) Eval() {
	m.training = false
}

// Parameters returns the trainable parameters and their names
func (m *Siamese) Parameters() ([]string, []*optim.Parameter) {
	params := append(m.enc.parameters(), m.head, m.bias)
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names, params
}

// Forward encodes both sides of every pair and scores them
func (m *Siamese) Forward(left []pairnet.Representation, leftLen []int, right []pairnet.Representation, rightLen []int) (*model.Output, error) {
	n := len(left)
	if len(leftLen) != n || len(right) != n || len(rightLen) != n {
		return nil, errors.Errorf("forward: mismatched batch sizes %d/%d/%d/%d", n, len(leftLen), len(right), len(rightLen))
	}

	m.left = make([][]float64, n)
	m.right = make([][]float64, n)
	m.leftBack = make([]func([]float64), n)
	m.rightBack = make([]func([]float64), n)
	m.predictions = make([]float64, n)
	m.logitGrad = nil

	w, b := m.head.Row(0), m.bias.Value[0]
	for i := 0; i < n; i++ {
		m.left[i], m.leftBack[i] = m.enc.encode(left[i], leftLen[i])
		m.right[i], m.rightBack[i] = m.enc.encode(right[i], rightLen[i])

		z := b
		for d := range w {
			z += w[d] * m.left[i][d] * m.right[i][d]
		}
		if m.cfg.Binary {
			z = sigmoid(z)
		}
		m.predictions[i] = z
	}

	out := &model.Output{
		Predictions: append([]float64(nil), m.predictions...),
		LeftEmbed:   m.left,
		RightEmbed:  m.right,
	}
	return out, nil
}

// Loss returns the mean binary cross entropy (binary mode) or mean squared
// error (regression mode) of predictions against targets.
func (m *Siamese) Loss(predictions, targets []float64) (float64, error) {
	n := len(predictions)
	if len(targets) != n {
		return 0, errors.Errorf("loss: %d predictions, %d targets", n, len(targets))
	}
	if n != len(m.predictions) {
		return 0, errors.Errorf("loss: %d predictions, latest forward produced %d", n, len(m.predictions))
	}
	if n == 0 {
		m.logitGrad = []float64{}
		return 0, nil
	}

	const eps = 1e-12
	loss := 0.0
	m.logitGrad = make([]float64, n)
	for i, p := range predictions {
		y := targets[i]
		if m.cfg.Binary {
			q := math.Min(math.Max(p, eps), 1-eps)
			loss -= y*math.Log(q) + (1-y)*math.Log(1-q)
			m.logitGrad[i] = (p - y) / float64(n)
		} else {
			loss += (p - y) * (p - y)
			m.logitGrad[i] = 2 * (p - y) / float64(n)
		}
	}
	return loss / float64(n), nil
}

// Backward accumulates the gradients of the latest loss
func (m *Siamese) Backward() error {
	if !m.training {
		return ErrNotTraining
	}
	if m.logitGrad == nil {
		return ErrNoLoss
	}

	w := m.head.Row(0)
	wGrad := m.head.GradRow(0)
	for i, dz := range m.logitGrad {
		if dz == 0 {
			continue
		}
		e1, e2 := m.left[i], m.right[i]
		d1 := make([]float64, len(w))
		d2 := make([]float64, len(w))
		for d := range w {
			wGrad[d] += dz * e1[d] * e2[d]
			d1[d] = dz * w[d] * e2[d]
			d2[d] = dz * w[d] * e1[d]
		}
		m.bias.Grad[0] += dz
		m.leftBack[i](d1)
		m.rightBack[i](d2)
	}
	m.logitGrad = nil
	return nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
