package pairnet

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Batch is a collated group of pairs. Token sequences are padded to the
// longest member of the batch; LeftLen and RightLen keep the true lengths.
type Batch struct {
	LeftIDs  []string
	Left     []Representation
	LeftLen  []int
	RightIDs []string
	Right    []Representation
	RightLen []int
	Scores   []float64
}

// Len returns the number of pairs in the batch
func (b *Batch) Len() int {
	return len(b.LeftIDs)
}

// Collate builds a batch from pairs, looking up each drug in the registry
func (ds *Dataset) Collate(pairs []Pair) (*Batch, error) {
	b := &Batch{
		LeftIDs:  make([]string, 0, len(pairs)),
		Left:     make([]Representation, 0, len(pairs)),
		LeftLen:  make([]int, 0, len(pairs)),
		RightIDs: make([]string, 0, len(pairs)),
		Right:    make([]Representation, 0, len(pairs)),
		RightLen: make([]int, 0, len(pairs)),
		Scores:   make([]float64, 0, len(pairs)),
	}
	for _, p := range pairs {
		left, ok := ds.Drug(p.Left)
		if !ok {
			return nil, errors.Wrap(ErrUnknownDrug, p.Left)
		}
		right, ok := ds.Drug(p.Right)
		if !ok {
			return nil, errors.Wrap(ErrUnknownDrug, p.Right)
		}
		b.LeftIDs = append(b.LeftIDs, left.ID)
		b.Left = append(b.Left, left.Rep)
		b.LeftLen = append(b.LeftLen, left.Rep.Len())
		b.RightIDs = append(b.RightIDs, right.ID)
		b.Right = append(b.Right, right.Rep)
		b.RightLen = append(b.RightLen, right.Rep.Len())
		b.Scores = append(b.Scores, p.Score)
	}
	if ds.Rep == RepChars {
		PadTokens(b.Left, b.LeftLen)
		PadTokens(b.Right, b.RightLen)
	}
	return b, nil
}

// PadTokens extends every token sequence in reps to the longest true length
// in lens, copying so shared registry slices are never modified.
func PadTokens(reps []Representation, lens []int) {
	longest := 0
	for _, l := range lens {
		if l > longest {
			longest = l
		}
	}
	for i := range reps {
		if len(reps[i].Tokens) == longest {
			continue
		}
		tokens := make([]int, longest)
		copy(tokens, reps[i].Tokens)
		reps[i].Tokens = tokens
	}
}

// Shuffle shuffles pairs in place
func Shuffle(pairs []Pair, rng *rand.Rand) {
	rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
}

// Loader iterates over a split in fixed size batches
type Loader struct {
	ds        *Dataset
	pairs     []Pair
	batchSize int
	pos       int
	err       error
}

// Loader returns a loader over pairs. The last batch may be smaller than batchSize.
func (ds *Dataset) Loader(pairs []Pair, batchSize int) *Loader {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Loader{ds: ds, pairs: pairs, batchSize: batchSize}
}

// Next returns the next batch, or false when the split is exhausted or a
// batch failed to collate (see Err).
func (l *Loader) Next() (*Batch, bool) {
	if l.err != nil || l.pos >= len(l.pairs) {
		return nil, false
	}
	end := l.pos + l.batchSize
	if end > len(l.pairs) {
		end = len(l.pairs)
	}
	b, err := l.ds.Collate(l.pairs[l.pos:end])
	if err != nil {
		l.err = err
		return nil, false
	}
	l.pos = end
	return b, true
}

// Err returns the collation error that stopped iteration, if any
func (l *Loader) Err() error {
	return l.err
}

// Length returns the number of pairs in the split
func (l *Loader) Length() int {
	return len(l.pairs)
}

// Reset rewinds the loader to the first batch
func (l *Loader) Reset() {
	l.pos = 0
	l.err = nil
}
