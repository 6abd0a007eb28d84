// Package export runs a model in inference mode to dump drug embeddings and
// pair predictions.
package export

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/cnclabs/ddi/internal/keyvec"
	"github.com/cnclabs/ddi/internal/logging"
	"github.com/cnclabs/ddi/internal/model"
	"github.com/cnclabs/ddi/internal/runner"
	"github.com/cnclabs/ddi/internal/subgroup"
	"github.com/cnclabs/ddi/pkg/pairnet"
	"github.com/cnclabs/ddi/pkg/rnn"
)

// ErrAsymmetric is returned when a self-pair yields different left and right embeddings
var ErrAsymmetric = errors.New("self-pair embeddings differ")

// Entry is a drug to embed
type Entry struct {
	ID    string
	Raw   string
	Label string
}

// LoadEntries reads "id<TAB>representation[<TAB>label]" lines
func LoadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			return nil, errors.Errorf("malformed entry line %q", line)
		}
		e := Entry{ID: parts[0], Raw: parts[1]}
		if len(parts) > 2 {
			e.Label = parts[2]
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading entries")
	}
	return entries, nil
}

// LoadEntryFile reads entries from a file
func LoadEntryFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()
	return LoadEntries(file)
}

// Embeddings runs every entry against itself and stores the resulting
// embedding with the entry's label. The registry is saved to path unless
// path is empty.
func Embeddings(m model.Forwarder, rep pairnet.RepIdx, vocab *pairnet.Vocab, entries []Entry, path string, sink logging.Sink) (*keyvec.Registry, error) {
	if sink == nil {
		sink = logging.Nop
	}
	m.Eval()
	keys := keyvec.New(sink)

	for i, e := range entries {
		r, err := pairnet.EncodeRaw(rep, vocab, e.Raw)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %s", e.ID)
		}
		reps, lens := []pairnet.Representation{r}, []int{r.Len()}
		out, err := m.Forward(reps, lens, reps, lens)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %s", e.ID)
		}
		if !rnn.VectorEqual(out.LeftEmbed[0], out.RightEmbed[0]) {
			return nil, errors.Wrapf(ErrAsymmetric, "entry %s", e.ID)
		}
		keys.Put(e.ID, out.LeftEmbed[0], e.Label)

		if (i+1)%pairnet.Monitor == 0 {
			logging.Logf(sink, logging.Info, "embedded %d/%d", i+1, len(entries))
		}
	}

	if path != "" {
		if err := keys.Save(path); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// PredictionRow is one line of a labeled prediction report
type PredictionRow struct {
	Pert1      string  `csv:"pert1"`
	Pert1Known bool    `csv:"pert1_known"`
	Pert2      string  `csv:"pert2"`
	Pert2Known bool    `csv:"pert2_known"`
	Prediction float64 `csv:"prediction"`
	Target     float64 `csv:"target"`
}

// Predictions runs m over every batch of loader and writes one CSV row per
// pair to w. Targets are binarized when binary is set. It returns the
// number of KK, KU and UU pairs written.
func Predictions(m model.Forwarder, loader runner.Loader, groups *subgroup.Classifier, binary bool, w io.Writer) ([3]int, error) {
	var counts [3]int
	m.Eval()
	rows := make([]*PredictionRow, 0, loader.Length())

	for {
		b, ok := loader.Next()
		if !ok {
			break
		}
		part, err := groups.Classify(b.LeftIDs, b.RightIDs)
		if err != nil {
			return counts, err
		}
		for i, c := range part.Counts() {
			counts[i] += c
		}
		out, err := model.ForwardBatch(m, b)
		if err != nil {
			return counts, err
		}
		for i := 0; i < b.Len(); i++ {
			target := b.Scores[i]
			if binary {
				target = pairnet.Binarize(target)
			}
			rows = append(rows, &PredictionRow{
				Pert1:      b.LeftIDs[i],
				Pert1Known: groups.IsKnown(b.LeftIDs[i]),
				Pert2:      b.RightIDs[i],
				Pert2Known: groups.IsKnown(b.RightIDs[i]),
				Prediction: out.Predictions[i],
				Target:     target,
			})
		}
	}
	if err := loader.Err(); err != nil {
		return counts, errors.Wrap(err, "loader")
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return counts, errors.Wrap(err, "writing predictions")
	}
	return counts, nil
}
