// Package subgroup splits a batch of drug pairs by whether each drug was
// seen during training: both known (KK), one known (KU) or neither (UU).
package subgroup

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cnclabs/ddi/pkg/pairnet"
)

// Group is a pair subgroup tag
type Group int

const (
	KK Group = iota
	KU
	UU
)

// Groups lists the subgroups in reporting order
var Groups = [...]Group{KK, KU, UU}

func (g Group) String() string {
	switch g {
	case KK:
		return "KK"
	case KU:
		return "KU"
	case UU:
		return "UU"
	}
	return fmt.Sprintf("Group(%d)", int(g))
}

// Policy decides how drugs listed in neither the known nor the unknown set are classified
type Policy int

const (
	// TreatAsUnknown classifies unlisted drugs as unknown
	TreatAsUnknown Policy = iota
	// Reject fails classification on unlisted drugs
	Reject
)

// ParsePolicy maps "unknown" and "reject" to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "unknown":
		return TreatAsUnknown, nil
	case "reject":
		return Reject, nil
	}
	return 0, errors.Errorf("unknown unlisted-drug policy %q", s)
}

var (
	// ErrPartition is returned when the subgroup sizes do not add up to the batch size
	ErrPartition = errors.New("subgroup partition does not cover the batch")
	// ErrUnlisted is returned under the Reject policy for drugs in neither set
	ErrUnlisted = errors.New("drug is neither known nor unknown")
	// ErrLength is returned when the left and right sides differ in length
	ErrLength = errors.New("left and right drug lists differ in length")
)

// Partition holds the batch indices of each subgroup
type Partition struct {
	KK []int
	KU []int
	UU []int
}

// Indices returns the indices of group g
func (p Partition) Indices(g Group) []int {
	switch g {
	case KK:
		return p.KK
	case KU:
		return p.KU
	}
	return p.UU
}

// Counts returns the subgroup sizes in KK, KU, UU order
func (p Partition) Counts() [3]int {
	return [3]int{len(p.KK), len(p.KU), len(p.UU)}
}

// Total returns the number of classified pairs
func (p Partition) Total() int {
	return len(p.KK) + len(p.KU) + len(p.UU)
}

// Classifier assigns pairs to subgroups from fixed known/unknown sets
type Classifier struct {
	known   pairnet.DrugSet
	unknown pairnet.DrugSet
	policy  Policy
}

// New creates a classifier. The known and unknown sets must be disjoint.
func New(known, unknown pairnet.DrugSet, policy Policy) (*Classifier, error) {
	if both := known.Intersect(unknown); both.Len() > 0 {
		return nil, errors.Wrapf(pairnet.ErrOverlap, "%d shared drugs, e.g. %s", both.Len(), both.Sorted()[0])
	}
	return &Classifier{known: known, unknown: unknown, policy: policy}, nil
}

// IsKnown reports whether id belongs to the known set
func (c *Classifier) IsKnown(id string) bool {
	return c.known.Has(id)
}

func (c *Classifier) isUnknown(id string) (bool, error) {
	if c.unknown.Has(id) {
		return true, nil
	}
	if c.known.Has(id) {
		return false, nil
	}
	if c.policy == Reject {
		return false, errors.Wrap(ErrUnlisted, id)
	}
	return true, nil
}

// Tag returns the subgroup of the pair (a, b)
func (c *Classifier) Tag(a, b string) (Group, error) {
	ua, err := c.isUnknown(a)
	if err != nil {
		return 0, err
	}
	ub, err := c.isUnknown(b)
	if err != nil {
		return 0, err
	}
	switch {
	case ua && ub:
		return UU, nil
	case ua != ub:
		return KU, nil
	}
	return KK, nil
}

// Classify partitions the pairs (left[i], right[i]) into subgroups
func (c *Classifier) Classify(left, right []string) (Partition, error) {
	if len(left) != len(right) {
		return Partition{}, errors.Wrapf(ErrLength, "%d vs %d", len(left), len(right))
	}

	var p Partition
	for i := range left {
		g, err := c.Tag(left[i], right[i])
		if err != nil {
			return Partition{}, errors.Wrapf(err, "pair %d", i)
		}
		switch g {
		case KK:
			p.KK = append(p.KK, i)
		case KU:
			p.KU = append(p.KU, i)
		case UU:
			p.UU = append(p.UU, i)
		}
	}

	if p.Total() != len(left) {
		return Partition{}, errors.Wrapf(ErrPartition, "%d+%d+%d != %d", len(p.KK), len(p.KU), len(p.UU), len(left))
	}
	return p, nil
}
