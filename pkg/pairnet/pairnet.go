// Package pairnet holds the drug pair data model: the drug registry, the
// labeled pairs, the known/unknown split and the batch loader.
package pairnet

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cnclabs/ddi/internal/logging"
)

const (
	// Monitor is the number of lines between loader progress messages
	Monitor = 10000
)

// RepIdx selects how a drug's raw representation is encoded for the model
type RepIdx int

const (
	// RepChars encodes the raw string character by character through the vocabulary
	RepChars RepIdx = 0
	// RepFeatures parses the raw string as a space separated real-valued vector
	RepFeatures RepIdx = 3
)

var (
	// ErrUnsupportedRep is returned for representation indices other than RepChars and RepFeatures
	ErrUnsupportedRep = errors.New("unsupported representation index")
	// ErrUnknownDrug is returned when a pair names a drug missing from the registry
	ErrUnknownDrug = errors.New("drug not registered")
	// ErrOverlap is returned when the known and unknown sets share a drug
	ErrOverlap = errors.New("known and unknown drug sets overlap")
)

// Representation is a drug encoded for the model. Tokens is set for RepChars,
// Features for RepFeatures.
type Representation struct {
	Tokens   []int
	Features []float64
}

// Len returns the true sequence length of the representation
func (r Representation) Len() int {
	if r.Features != nil {
		return len(r.Features)
	}
	return len(r.Tokens)
}

// Drug is a registered drug
type Drug struct {
	ID  string
	Raw string
	Rep Representation
}

// Pair is a labeled drug pair
type Pair struct {
	Left  string
	Right string
	Score float64
}

// Dataset is the drug registry together with the known/unknown split
type Dataset struct {
	Rep   RepIdx
	Vocab *Vocab

	// Drug registry
	DrugHash map[string]int
	DrugKeys []string
	Drugs    []Drug

	Known   DrugSet
	Unknown DrugSet

	log logging.Sink
}

// New creates an empty dataset using the given representation scheme
func New(rep RepIdx, sink logging.Sink) (*Dataset, error) {
	if rep != RepChars && rep != RepFeatures {
		return nil, errors.Wrapf(ErrUnsupportedRep, "rep_idx %d", rep)
	}
	if sink == nil {
		sink = logging.Nop
	}
	return &Dataset{
		Rep:      rep,
		Vocab:    NewVocab(),
		DrugHash: make(map[string]int),
		Known:    NewDrugSet(),
		Unknown:  NewDrugSet(),
		log:      sink,
	}, nil
}

// LoadDrugFile loads drugs from a tab separated file of "drug_id<TAB>representation"
func (ds *Dataset) LoadDrugFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open drug file %s", filename)
	}
	defer file.Close()

	logging.Logf(ds.log, logging.Info, "loading drugs from: %s", filename)
	return ds.LoadDrugs(file)
}

// LoadDrugs reads "drug_id<TAB>representation" lines. When the scheme is
// RepChars the vocabulary is rebuilt from every registered representation.
func (ds *Dataset) LoadDrugs(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineCount := 0
	raws := make(map[string]string)
	order := make([]string, 0)

	for scanner.Scan() {
		lineCount++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) < 2 {
			logging.Logf(ds.log, logging.Warn, "drug file: malformed line %d", lineCount)
			continue
		}
		id, raw := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if _, exists := raws[id]; !exists {
			order = append(order, id)
		}
		raws[id] = raw
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "error reading drug file")
	}

	if ds.Rep == RepChars {
		corpus := make([]string, 0, len(ds.Drugs)+len(order))
		for _, d := range ds.Drugs {
			corpus = append(corpus, d.Raw)
		}
		for _, id := range order {
			corpus = append(corpus, raws[id])
		}
		ds.Vocab = BuildVocab(corpus)
		for i := range ds.Drugs {
			ds.Drugs[i].Rep = Representation{Tokens: ds.Vocab.Encode(ds.Drugs[i].Raw)}
		}
	}

	for _, id := range order {
		if err := ds.AddDrug(id, raws[id]); err != nil {
			return err
		}
	}

	logging.Logf(ds.log, logging.Info, "registered %d drugs (vocab size %d)", len(ds.DrugKeys), ds.Vocab.Size())
	return nil
}

// AddDrug registers or replaces a drug
func (ds *Dataset) AddDrug(id, raw string) error {
	rep, err := ds.Encode(raw)
	if err != nil {
		return errors.Wrapf(err, "drug %s", id)
	}
	drug := Drug{ID: id, Raw: raw, Rep: rep}
	if idx, exists := ds.DrugHash[id]; exists {
		ds.Drugs[idx] = drug
		return nil
	}
	ds.DrugHash[id] = len(ds.DrugKeys)
	ds.DrugKeys = append(ds.DrugKeys, id)
	ds.Drugs = append(ds.Drugs, drug)
	return nil
}

// Encode turns a raw representation into model input using the dataset's scheme
func (ds *Dataset) Encode(raw string) (Representation, error) {
	return EncodeRaw(ds.Rep, ds.Vocab, raw)
}

// EncodeRaw encodes raw with the given scheme. Characters outside vocab fall
// back to the unknown token; features are passed through unchanged.
func EncodeRaw(rep RepIdx, vocab *Vocab, raw string) (Representation, error) {
	switch rep {
	case RepChars:
		return Representation{Tokens: vocab.Encode(raw)}, nil
	case RepFeatures:
		fields := strings.Fields(raw)
		features := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Representation{}, errors.Wrapf(err, "feature %d", i)
			}
			features[i] = v
		}
		return Representation{Features: features}, nil
	}
	return Representation{}, errors.Wrapf(ErrUnsupportedRep, "rep_idx %d", rep)
}

// Drug returns the registered drug with the given id
func (ds *Dataset) Drug(id string) (Drug, bool) {
	idx, exists := ds.DrugHash[id]
	if !exists {
		return Drug{}, false
	}
	return ds.Drugs[idx], true
}

// FeatureDim returns the feature vector length of the first registered drug,
// or 0 for character representations.
func (ds *Dataset) FeatureDim() int {
	if ds.Rep != RepFeatures || len(ds.Drugs) == 0 {
		return 0
	}
	return len(ds.Drugs[0].Rep.Features)
}

// LoadPairFile loads labeled pairs from a file of "drug1 drug2 score" lines
func (ds *Dataset) LoadPairFile(filename string) ([]Pair, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open pair file %s", filename)
	}
	defer file.Close()

	logging.Logf(ds.log, logging.Info, "loading pairs from: %s", filename)
	return ds.LoadPairs(file)
}

// LoadPairs reads whitespace separated "drug1 drug2 score" lines. Lines with
// an unparsable score are skipped; pairs naming an unregistered drug are an error.
func (ds *Dataset) LoadPairs(r io.Reader) ([]Pair, error) {
	scanner := bufio.NewScanner(r)
	pairs := make([]Pair, 0)
	lineCount := 0

	for scanner.Scan() {
		lineCount++
		parts := strings.Fields(scanner.Text())
		if len(parts) < 3 {
			continue
		}

		score, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			logging.Logf(ds.log, logging.Warn, "invalid score at line %d", lineCount)
			continue
		}
		for _, id := range parts[:2] {
			if _, exists := ds.DrugHash[id]; !exists {
				return nil, errors.Wrapf(ErrUnknownDrug, "line %d: %s", lineCount, id)
			}
		}
		pairs = append(pairs, Pair{Left: parts[0], Right: parts[1], Score: score})

		if len(pairs)%Monitor == 0 {
			logging.Logf(ds.log, logging.Debug, "# of pairs: %d", len(pairs))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading pair file")
	}

	logging.Logf(ds.log, logging.Info, "# of pairs: %d", len(pairs))
	return pairs, nil
}

// MarkKnown marks every drug appearing in pairs as known and every other
// registered drug as unknown.
func (ds *Dataset) MarkKnown(pairs []Pair) {
	ds.Known = NewDrugSet()
	for _, p := range pairs {
		ds.Known.Add(p.Left)
		ds.Known.Add(p.Right)
	}
	ds.Unknown = NewDrugSet()
	for _, id := range ds.DrugKeys {
		if !ds.Known.Has(id) {
			ds.Unknown.Add(id)
		}
	}
	logging.Logf(ds.log, logging.Info, "known drugs: %d, unknown drugs: %d", ds.Known.Len(), ds.Unknown.Len())
}

// SetKnownUnknown installs explicit known and unknown sets. The sets must be disjoint.
func (ds *Dataset) SetKnownUnknown(known, unknown DrugSet) error {
	if both := known.Intersect(unknown); both.Len() > 0 {
		return errors.Wrapf(ErrOverlap, "%d shared drugs, e.g. %s", both.Len(), both.Sorted()[0])
	}
	ds.Known, ds.Unknown = known, unknown
	return nil
}

// LoadDrugSetFile reads one drug id per line
func LoadDrugSetFile(filename string) (DrugSet, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open drug set file %s", filename)
	}
	defer file.Close()

	set := NewDrugSet()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			set.Add(id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "error reading %s", filename)
	}
	return set, nil
}

// KnownReprs maps the raw representation of every known drug to its id
func (ds *Dataset) KnownReprs() map[string]string {
	out := make(map[string]string, ds.Known.Len())
	for _, d := range ds.Drugs {
		if ds.Known.Has(d.ID) {
			out[d.Raw] = d.ID
		}
	}
	return out
}

// Binarize maps a score to the binary label used in classification mode
func Binarize(score float64) float64 {
	if score > 0 {
		return 1
	}
	return 0
}
