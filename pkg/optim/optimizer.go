// Package optim holds trainable parameters, the optimizers that update them
// and global-norm gradient clipping.
package optim

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Parameter is a dense trainable tensor stored row-major with its gradient
type Parameter struct {
	Name  string
	Rows  int
	Cols  int
	Value []float64
	Grad  []float64
}

// NewParameter allocates a zero rows x cols parameter
func NewParameter(name string, rows, cols int) *Parameter {
	return &Parameter{
		Name:  name,
		Rows:  rows,
		Cols:  cols,
		Value: make([]float64, rows*cols),
		Grad:  make([]float64, rows*cols),
	}
}

// Row returns row i of the value
func (p *Parameter) Row(i int) []float64 {
	return p.Value[i*p.Cols : (i+1)*p.Cols]
}

// GradRow returns row i of the gradient
func (p *Parameter) GradRow(i int) []float64 {
	return p.Grad[i*p.Cols : (i+1)*p.Cols]
}

// At returns the value at (i, j)
func (p *Parameter) At(i, j int) float64 {
	return p.Value[i*p.Cols+j]
}

// ZeroGrad clears the gradient
func (p *Parameter) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// Optimizer updates parameters from their accumulated gradients
type Optimizer interface {
	ZeroGrad()
	Step()
}

// SGD is plain stochastic gradient descent
type SGD struct {
	params []*Parameter
	lr     float64
}

// NewSGD creates an SGD optimizer over params
func NewSGD(params []*Parameter, lr float64) *SGD {
	return &SGD{params: params, lr: lr}
}

// ZeroGrad clears every gradient
func (o *SGD) ZeroGrad() {
	for _, p := range o.params {
		p.ZeroGrad()
	}
}

// Step applies value -= lr * grad
func (o *SGD) Step() {
	for _, p := range o.params {
		for i, g := range p.Grad {
			p.Value[i] -= o.lr * g
		}
	}
}

// Adam implements the Adam update with bias correction
type Adam struct {
	params []*Parameter
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	step   int
	m      [][]float64
	v      [][]float64
}

// NewAdam creates an Adam optimizer with the usual betas (0.9, 0.999)
func NewAdam(params []*Parameter, lr float64) *Adam {
	o := &Adam{
		params: params,
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		o.m[i] = make([]float64, len(p.Value))
		o.v[i] = make([]float64, len(p.Value))
	}
	return o
}

// ZeroGrad clears every gradient
func (o *Adam) ZeroGrad() {
	for _, p := range o.params {
		p.ZeroGrad()
	}
}

// Step applies one Adam update
func (o *Adam) Step() {
	o.step++
	c1 := 1 - math.Pow(o.beta1, float64(o.step))
	c2 := 1 - math.Pow(o.beta2, float64(o.step))
	for k, p := range o.params {
		m, v := o.m[k], o.v[k]
		for i, g := range p.Grad {
			m[i] = o.beta1*m[i] + (1-o.beta1)*g
			v[i] = o.beta2*v[i] + (1-o.beta2)*g*g
			p.Value[i] -= o.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + o.eps)
		}
	}
}

// New builds the optimizer named kind ("sgd" or "adam")
func New(kind string, params []*Parameter, lr float64) (Optimizer, error) {
	switch strings.ToLower(kind) {
	case "sgd":
		return NewSGD(params, lr), nil
	case "adam", "":
		return NewAdam(params, lr), nil
	}
	return nil, errors.Errorf("unknown optimizer %q", kind)
}
