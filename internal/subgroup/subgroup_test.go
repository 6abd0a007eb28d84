package subgroup

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/ddi/pkg/pairnet"
)

func newClassifier(t *testing.T, policy Policy) *Classifier {
	c, err := New(pairnet.NewDrugSet("A", "B"), pairnet.NewDrugSet("C", "D"), policy)
	require.NoError(t, err)
	return c
}

func TestClassifyExample(t *testing.T) {
	c := newClassifier(t, Reject)
	p, err := c.Classify([]string{"A", "A", "C"}, []string{"B", "C", "D"})
	require.NoError(t, err)

	assert.Equal(t, []int{0}, p.KK)
	assert.Equal(t, []int{1}, p.KU)
	assert.Equal(t, []int{2}, p.UU)
	assert.Equal(t, [3]int{1, 1, 1}, p.Counts())
}

func TestTag(t *testing.T) {
	c := newClassifier(t, Reject)
	tests := []struct {
		a, b string
		want Group
	}{
		{"A", "B", KK},
		{"B", "B", KK},
		{"A", "D", KU},
		{"D", "A", KU},
		{"C", "D", UU},
	}
	for _, tt := range tests {
		t.Run(tt.a+tt.b, func(t *testing.T) {
			got, err := c.Tag(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnlistedPolicy(t *testing.T) {
	lenient := newClassifier(t, TreatAsUnknown)
	g, err := lenient.Tag("A", "Z")
	require.NoError(t, err)
	assert.Equal(t, KU, g)
	g, err = lenient.Tag("Z", "C")
	require.NoError(t, err)
	assert.Equal(t, UU, g)

	strict := newClassifier(t, Reject)
	_, err = strict.Classify([]string{"A"}, []string{"Z"})
	assert.ErrorIs(t, err, ErrUnlisted)
}

func TestOverlappingSetsRejected(t *testing.T) {
	_, err := New(pairnet.NewDrugSet("A", "B"), pairnet.NewDrugSet("B"), TreatAsUnknown)
	assert.ErrorIs(t, err, pairnet.ErrOverlap)
}

func TestLengthMismatch(t *testing.T) {
	c := newClassifier(t, TreatAsUnknown)
	_, err := c.Classify([]string{"A"}, nil)
	assert.ErrorIs(t, err, ErrLength)
}

func TestPartitionCoversBatch(t *testing.T) {
	c := newClassifier(t, TreatAsUnknown)
	ids := []string{"A", "B", "C", "D", "E"}
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(40)
		left := make([]string, n)
		right := make([]string, n)
		for i := 0; i < n; i++ {
			left[i] = ids[rng.Intn(len(ids))]
			right[i] = ids[rng.Intn(len(ids))]
		}
		p, err := c.Classify(left, right)
		require.NoError(t, err)
		require.Equal(t, n, p.Total())

		seen := make(map[int]Group)
		for _, g := range Groups {
			for _, idx := range p.Indices(g) {
				prev, dup := seen[idx]
				require.False(t, dup, "index %d in %s and %s", idx, prev, g)
				seen[idx] = g
			}
		}
		require.Len(t, seen, n)
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, Reject, p)
	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, TreatAsUnknown, p)
	_, err = ParsePolicy("both")
	assert.Error(t, err)
}

func TestGroupString(t *testing.T) {
	assert.Equal(t, "KU", KU.String())
	assert.Equal(t, "Group(7)", Group(7).String())
}
