package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/cnclabs/ddi/internal/logging"
	"github.com/cnclabs/ddi/internal/model"
	"github.com/cnclabs/ddi/internal/subgroup"
	"github.com/cnclabs/ddi/pkg/pairnet"
)

// ScoreBatchSize is the number of rows scored per forward pass
const ScoreBatchSize = 128

// ScoreRow is one line of an unlabeled prediction report
type ScoreRow struct {
	Pert1      string  `csv:"pert1"`
	Pert1Known bool    `csv:"pert1_known"`
	Pert2      string  `csv:"pert2"`
	Pert2Known bool    `csv:"pert2_known"`
	Prediction float64 `csv:"prediction"`
}

// FileReport summarizes one scored file
type FileReport struct {
	File   string
	Rows   int
	Counts [3]int // KK, KU, UU
}

// Scorer scores unlabeled pair files. A drug is known when its string
// representation is a key of Known.
type Scorer struct {
	Model model.Forwarder
	Fs    afero.Fs
	Vocab *pairnet.Vocab
	Rep   pairnet.RepIdx
	Known map[string]string
	Log   logging.Sink
}

// ScoreDir scores every .csv and .tsv file under inDir and writes a report
// at the same relative path under outDir.
func (s *Scorer) ScoreDir(inDir, outDir string) ([]FileReport, error) {
	if s.Rep != pairnet.RepChars {
		return nil, errors.Wrapf(pairnet.ErrUnsupportedRep, "file scoring supports only rep_idx %d, got %d", pairnet.RepChars, s.Rep)
	}
	if s.Log == nil {
		s.Log = logging.Nop
	}
	s.Model.Eval()
	if err := s.Fs.MkdirAll(outDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", outDir)
	}
	cleanOut := filepath.Clean(outDir)

	var reports []FileReport
	err := afero.Walk(s.Fs, inDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if filepath.Clean(path) == cleanOut {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".csv" && ext != ".tsv" {
			return nil
		}
		rel, err := filepath.Rel(inDir, path)
		if err != nil {
			return errors.Wrapf(err, "locating %s", path)
		}
		outPath := filepath.Join(outDir, rel)
		if err := s.Fs.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return errors.Wrapf(err, "creating %s", filepath.Dir(outPath))
		}
		report, err := s.ScoreFile(path, outPath)
		if err != nil {
			return err
		}
		reports = append(reports, report)
		return nil
	})
	if err != nil {
		return reports, err
	}
	return reports, nil
}

// inputPair is one unlabeled row of a score file
type inputPair struct {
	Left  string `csv:"pert1"`
	Right string `csv:"pert2"`
}

// pairReader yields the first two trimmed fields of every record that has
// at least two. When rows is set it serves those records instead of r.
type pairReader struct {
	r    *csv.Reader
	rows [][]string
}

func (p *pairReader) Read() ([]string, error) {
	if p.r == nil {
		if len(p.rows) == 0 {
			return nil, io.EOF
		}
		rec := p.rows[0]
		p.rows = p.rows[1:]
		return rec, nil
	}
	for {
		rec, err := p.r.Read()
		if err != nil {
			return nil, err
		}
		if len(rec) >= 2 {
			return []string{strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])}, nil
		}
	}
}

func (p *pairReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := p.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// readPairs decodes the rows of a score file, dropping a leading header row
func readPairs(in io.Reader, tsv bool) ([]*inputPair, error) {
	r := csv.NewReader(in)
	if tsv {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := (&pairReader{r: r}).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && isHeader(records[0][0]) {
		records = records[1:]
	}
	var pairs []*inputPair
	if len(records) == 0 {
		return pairs, nil
	}
	if err := gocsv.UnmarshalCSVWithoutHeaders(&pairReader{rows: records}, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// ScoreFile scores one delimited file of "repr1,repr2" rows into outPath
func (s *Scorer) ScoreFile(inPath, outPath string) (FileReport, error) {
	report := FileReport{File: inPath}

	in, err := s.Fs.Open(inPath)
	if err != nil {
		return report, errors.Wrapf(err, "failed to open %s", inPath)
	}
	defer in.Close()

	pairs, err := readPairs(in, strings.EqualFold(filepath.Ext(inPath), ".tsv"))
	if err != nil {
		return report, errors.Wrapf(err, "reading %s", inPath)
	}

	rows := make([]*ScoreRow, 0, len(pairs))
	for start := 0; start < len(pairs); start += ScoreBatchSize {
		end := start + ScoreBatchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		scored, err := s.scoreBatch(pairs[start:end])
		if err != nil {
			return report, errors.Wrapf(err, "scoring %s", inPath)
		}
		for _, row := range scored {
			report.Counts[tag(row.Pert1Known, row.Pert2Known)]++
		}
		rows = append(rows, scored...)
	}
	report.Rows = len(rows)

	out, err := s.Fs.Create(outPath)
	if err != nil {
		return report, errors.Wrapf(err, "failed to create %s", outPath)
	}
	defer out.Close()
	if err := gocsv.Marshal(&rows, out); err != nil {
		return report, errors.Wrapf(err, "writing %s", outPath)
	}
	if err := out.Close(); err != nil {
		return report, errors.Wrapf(err, "closing %s", outPath)
	}

	logging.Logf(s.Log, logging.Info, "%s: %s rows, KK/KU/UU %s/%s/%s", filepath.Base(inPath),
		humanize.Comma(int64(report.Rows)), humanize.Comma(int64(report.Counts[subgroup.KK])),
		humanize.Comma(int64(report.Counts[subgroup.KU])), humanize.Comma(int64(report.Counts[subgroup.UU])))
	return report, nil
}

func (s *Scorer) scoreBatch(pending []*inputPair) ([]*ScoreRow, error) {
	n := len(pending)
	left := make([]pairnet.Representation, n)
	right := make([]pairnet.Representation, n)
	leftLen := make([]int, n)
	rightLen := make([]int, n)
	for i, p := range pending {
		left[i] = pairnet.Representation{Tokens: s.Vocab.Encode(p.Left)}
		right[i] = pairnet.Representation{Tokens: s.Vocab.Encode(p.Right)}
		leftLen[i], rightLen[i] = left[i].Len(), right[i].Len()
	}
	pairnet.PadTokens(left, leftLen)
	pairnet.PadTokens(right, rightLen)

	out, err := s.Model.Forward(left, leftLen, right, rightLen)
	if err != nil {
		return nil, err
	}
	rows := make([]*ScoreRow, n)
	for i, p := range pending {
		_, k1 := s.Known[p.Left]
		_, k2 := s.Known[p.Right]
		rows[i] = &ScoreRow{
			Pert1:      p.Left,
			Pert1Known: k1,
			Pert2:      p.Right,
			Pert2Known: k2,
			Prediction: out.Predictions[i],
		}
	}
	return rows, nil
}

func tag(known1, known2 bool) subgroup.Group {
	switch {
	case known1 && known2:
		return subgroup.KK
	case known1 != known2:
		return subgroup.KU
	}
	return subgroup.UU
}

func isHeader(field string) bool {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "pert1", "drug1", "smiles1":
		return true
	}
	return false
}
