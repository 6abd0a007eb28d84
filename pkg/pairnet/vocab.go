package pairnet

import "sort"

const (
	// PadToken occupies index 0 and fills the tail of short sequences in a batch.
	PadToken = "<pad>"
	// UnknownToken occupies index 1 and stands in for characters outside the vocabulary.
	UnknownToken = "<unk>"

	PadIndex     = 0
	UnknownIndex = 1
)

// Vocab maps the characters of drug string representations to indices
type Vocab struct {
	CharHash map[rune]int
	CharKeys []string
}

// NewVocab creates a vocabulary holding only the padding and unknown tokens
func NewVocab() *Vocab {
	return &Vocab{
		CharHash: make(map[rune]int),
		CharKeys: []string{PadToken, UnknownToken},
	}
}

// BuildVocab creates a vocabulary from every character of the given strings.
// Indices are assigned in sorted character order so the same corpus always
// yields the same vocabulary.
func BuildVocab(corpus []string) *Vocab {
	seen := make(map[rune]struct{})
	for _, s := range corpus {
		for _, c := range s {
			seen[c] = struct{}{}
		}
	}
	chars := make([]rune, 0, len(seen))
	for c := range seen {
		chars = append(chars, c)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })

	v := NewVocab()
	for _, c := range chars {
		v.Add(c)
	}
	return v
}

// Add registers c and returns its index
func (v *Vocab) Add(c rune) int {
	if idx, exists := v.CharHash[c]; exists {
		return idx
	}
	idx := len(v.CharKeys)
	v.CharHash[c] = idx
	v.CharKeys = append(v.CharKeys, string(c))
	return idx
}

// Index returns the index of c, or UnknownIndex
func (v *Vocab) Index(c rune) int {
	if idx, exists := v.CharHash[c]; exists {
		return idx
	}
	return UnknownIndex
}

// Encode maps s to token indices. Characters outside the vocabulary map to
// the unknown token.
func (v *Vocab) Encode(s string) []int {
	tokens := make([]int, 0, len(s))
	for _, c := range s {
		tokens = append(tokens, v.Index(c))
	}
	return tokens
}

// Size returns the number of tokens including padding and unknown
func (v *Vocab) Size() int {
	return len(v.CharKeys)
}
