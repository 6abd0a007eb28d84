// Package metrics accumulates predictions over an epoch, overall and per
// known/unknown subgroup, and scores the accumulated lists.
package metrics

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/cnclabs/ddi/internal/subgroup"
)

// Epsilon guards the accuracy denominator so an empty series scores 0
const Epsilon = 1e-16

// Mode selects how accumulated lists are scored
type Mode int

const (
	// Regression scores with a correlation-style ScoreFunc
	Regression Mode = iota
	// Binary scores with exact-match accuracy
	Binary
)

// ScoreFunc scores predictions against targets
type ScoreFunc func(targets, predictions []float64) float64

// Pearson returns the Pearson correlation coefficient of targets and
// predictions. Constant inputs score 0; empty or mismatched inputs score NaN.
func Pearson(targets, predictions []float64) float64 {
	r, err := stats.Correlation(stats.Float64Data(targets), stats.Float64Data(predictions))
	if err != nil {
		return math.NaN()
	}
	return r
}

// Accuracy returns the fraction of exact matches, with Epsilon added to the denominator
func Accuracy(targets, predictions []float64) float64 {
	matches := 0
	for i := range targets {
		if i < len(predictions) && targets[i] == predictions[i] {
			matches++
		}
	}
	return float64(matches) / (float64(len(targets)) + Epsilon)
}

// Threshold maps predictions to 1 when above cut and 0 otherwise
func Threshold(predictions []float64, cut float64) []float64 {
	out := make([]float64, len(predictions))
	for i, p := range predictions {
		if p > cut {
			out[i] = 1
		}
	}
	return out
}

// Series is an append-only list of (target, prediction) values. It also
// counts exact matches so accuracy needs no rescan.
type Series struct {
	Targets     []float64
	Predictions []float64
	matches     int
}

// Len returns the number of accumulated values
func (s *Series) Len() int {
	return len(s.Targets)
}

func (s *Series) addAll(targets, predictions []float64) {
	s.Targets = append(s.Targets, targets...)
	s.Predictions = append(s.Predictions, predictions...)
	for i := range targets {
		if targets[i] == predictions[i] {
			s.matches++
		}
	}
}

func (s *Series) addIndices(targets, predictions []float64, idx []int) {
	for _, i := range idx {
		s.Targets = append(s.Targets, targets[i])
		s.Predictions = append(s.Predictions, predictions[i])
		if targets[i] == predictions[i] {
			s.matches++
		}
	}
}

// Aggregator keeps the running series for all pairs and for each subgroup
type Aggregator struct {
	mode   Mode
	score  ScoreFunc
	all    Series
	groups [3]Series
}

// New creates an aggregator. score is used in Regression mode; nil selects Pearson.
func New(mode Mode, score ScoreFunc) *Aggregator {
	if score == nil {
		score = Pearson
	}
	if mode == Binary {
		score = Accuracy
	}
	return &Aggregator{mode: mode, score: score}
}

// Reset drops everything accumulated so far
func (a *Aggregator) Reset() {
	a.all = Series{}
	a.groups = [3]Series{}
}

// Add appends a batch: every pair to the overall series and each partition
// slice to its subgroup.
func (a *Aggregator) Add(targets, predictions []float64, p subgroup.Partition) error {
	if len(targets) != len(predictions) {
		return errors.Errorf("metrics: %d targets, %d predictions", len(targets), len(predictions))
	}
	if p.Total() != len(targets) {
		return errors.Wrapf(subgroup.ErrPartition, "metrics: partition covers %d of %d", p.Total(), len(targets))
	}
	a.all.addAll(targets, predictions)
	for _, g := range subgroup.Groups {
		a.groups[g].addIndices(targets, predictions, p.Indices(g))
	}
	return nil
}

// Overall returns the accumulated series over every pair
func (a *Aggregator) Overall() *Series {
	return &a.all
}

// Group returns the accumulated series of subgroup g
func (a *Aggregator) Group(g subgroup.Group) *Series {
	return &a.groups[g]
}

// Score scores the overall series
func (a *Aggregator) Score() float64 {
	return a.scoreSeries(&a.all)
}

// GroupScore scores subgroup g. ok is false while the subgroup is still
// empty; the returned score is then 0.
func (a *Aggregator) GroupScore(g subgroup.Group) (score float64, ok bool) {
	s := &a.groups[g]
	return a.scoreSeries(s), s.Len() > 0
}

func (a *Aggregator) scoreSeries(s *Series) float64 {
	if s.Len() == 0 {
		return 0
	}
	if a.mode == Binary {
		return float64(s.matches) / (float64(s.Len()) + Epsilon)
	}
	return a.score(s.Targets, s.Predictions)
}

// Running tracks a mean over appended values
type Running struct {
	values []float64
}

// Add appends v
func (r *Running) Add(v float64) {
	r.values = append(r.values, v)
}

// Len returns the number of values
func (r *Running) Len() int {
	return len(r.values)
}

// Mean returns the mean of the values, or 0 when there are none
func (r *Running) Mean() float64 {
	m, err := stats.Mean(stats.Float64Data(r.values))
	if err != nil {
		return 0
	}
	return m
}
