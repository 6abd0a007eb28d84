// Package model declares the capabilities the experiment driver needs from a
// drug pair model. The network itself lives elsewhere; the runner and the
// exporters only see these interfaces.
package model

import (
	"github.com/cnclabs/ddi/pkg/optim"
	"github.com/cnclabs/ddi/pkg/pairnet"
)

// Output is the result of a forward pass over a batch of N pairs
type Output struct {
	Predictions []float64   // [N]
	LeftEmbed   [][]float64 // [N x dim]
	RightEmbed  [][]float64 // [N x dim]
}

// Forwarder runs a model in inference mode
type Forwarder interface {
	// Eval switches the model to inference mode.
	Eval()
	Forward(left []pairnet.Representation, leftLen []int, right []pairnet.Representation, rightLen []int) (*Output, error)
}

// Trainable is a model the epoch runner can optimize.
//
// Loss must be called on the predictions of the latest Forward; Backward then
// accumulates gradients into the parameters returned by Parameters.
type Trainable interface {
	Forwarder
	Train(on bool)
	Loss(predictions, targets []float64) (float64, error)
	Backward() error
	Parameters() (names []string, params []*optim.Parameter)
}

// ForwardBatch runs m over a collated batch
func ForwardBatch(m Forwarder, b *pairnet.Batch) (*Output, error) {
	return m.Forward(b.Left, b.LeftLen, b.Right, b.RightLen)
}
