// Package runner drives one epoch of training or evaluation over a batch
// loader and reports overall and per-subgroup scores.
package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cnclabs/ddi/internal/keyvec"
	"github.com/cnclabs/ddi/internal/logging"
	"github.com/cnclabs/ddi/internal/metrics"
	"github.com/cnclabs/ddi/internal/model"
	"github.com/cnclabs/ddi/internal/subgroup"
	"github.com/cnclabs/ddi/pkg/optim"
	"github.com/cnclabs/ddi/pkg/pairnet"
)

// Config holds the epoch settings
type Config struct {
	BatchSize   int
	PrintStep   int     // log progress every PrintStep batches
	GradMaxNorm float64 // global gradient norm limit, 0 disables clipping
	Binary      bool
	SaveEmbed   bool   // capture embeddings into the key registry
	EmbedPath   string // where captured embeddings are saved at epoch end
}

// Validate checks the settings
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return errors.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.PrintStep < 1 {
		return errors.Errorf("print step must be positive, got %d", c.PrintStep)
	}
	if c.GradMaxNorm < 0 {
		return errors.Errorf("grad max norm must not be negative, got %g", c.GradMaxNorm)
	}
	if c.SaveEmbed && c.EmbedPath == "" {
		return errors.New("save embed requires an embedding path")
	}
	return nil
}

// Loader yields the batches of one epoch
type Loader interface {
	Next() (*pairnet.Batch, bool)
	Err() error
	Length() int
}

// Report summarizes an epoch
type Report struct {
	Steps   int
	Pairs   int
	Loss    float64 // mean batch loss
	Overall float64
	KK      float64
	KU      float64
	UU      float64
	Counts  [3]int // KK, KU, UU pairs seen
	Elapsed time.Duration
}

// Headline returns the known-unknown score, the epoch's generalization signal
func (r Report) Headline() float64 {
	return r.KU
}

// Runner runs epochs of a model
type Runner struct {
	model model.Trainable
	opt   optim.Optimizer
	log   logging.Sink
	cfg   Config
	score metrics.ScoreFunc
	now   func() time.Time
}

// New creates a runner
func New(m model.Trainable, opt optim.Optimizer, sink logging.Sink, cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = logging.Nop
	}
	return &Runner{
		model: m,
		opt:   opt,
		log:   sink,
		cfg:   cfg,
		now:   time.Now,
	}, nil
}

// SetScoreFunc replaces the regression metric (Pearson by default)
func (r *Runner) SetScoreFunc(fn metrics.ScoreFunc) {
	r.score = fn
}

func (r *Runner) mode() metrics.Mode {
	if r.cfg.Binary {
		return metrics.Binary
	}
	return metrics.Regression
}

// stepLog keeps the running score observed at every step, the way the
// progress line reports them
type stepLog struct {
	loss    metrics.Running
	overall metrics.Running
	groups  [3]metrics.Running
}

func (s *stepLog) means() string {
	parts := []string{
		fmt.Sprintf("%.3f", s.loss.Mean()),
		fmt.Sprintf("%.3f", s.overall.Mean()),
	}
	for _, g := range subgroup.Groups {
		parts = append(parts, fmt.Sprintf("%.3f", s.groups[g].Mean()))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// RunEpoch iterates over loader once. With train set the model is put in
// training mode and parameters are updated after every batch; otherwise the
// model runs in eval mode. When the config enables embedding capture, every
// batch's embeddings are registered in keys, no parameter is updated, and
// keys is saved at the end of the epoch.
//
// The returned error is fatal for the run: partition mismatches, model
// failures and loader failures all abort the epoch.
func (r *Runner) RunEpoch(loader Loader, groups *subgroup.Classifier, keys *keyvec.Registry, train bool) (Report, error) {
	start := r.now()
	if train {
		r.model.Train(true)
	} else {
		r.model.Eval()
	}
	if r.cfg.SaveEmbed && keys == nil {
		return Report{}, errors.New("embedding capture needs a key registry")
	}
	update := train && !r.cfg.SaveEmbed
	_, params := r.model.Parameters()

	agg := metrics.New(r.mode(), r.score)
	var steps stepLog
	var counts [3]int
	seen, step := 0, 0

	for {
		batch, ok := loader.Next()
		if !ok {
			break
		}
		step++

		part, err := groups.Classify(batch.LeftIDs, batch.RightIDs)
		if err != nil {
			return Report{}, errors.Wrapf(err, "step %d", step)
		}
		for i, c := range part.Counts() {
			counts[i] += c
		}

		r.opt.ZeroGrad()
		out, err := model.ForwardBatch(r.model, batch)
		if err != nil {
			return Report{}, errors.Wrapf(err, "step %d: forward", step)
		}

		targets := batch.Scores
		if r.cfg.Binary {
			targets = make([]float64, len(batch.Scores))
			for i, s := range batch.Scores {
				targets[i] = pairnet.Binarize(s)
			}
		}
		loss, err := r.model.Loss(out.Predictions, targets)
		if err != nil {
			return Report{}, errors.Wrapf(err, "step %d: loss", step)
		}
		steps.loss.Add(loss)

		if r.cfg.SaveEmbed {
			if err := keys.Register(batch.LeftIDs, out.LeftEmbed); err != nil {
				return Report{}, errors.Wrapf(err, "step %d", step)
			}
			if err := keys.Register(batch.RightIDs, out.RightEmbed); err != nil {
				return Report{}, errors.Wrapf(err, "step %d", step)
			}
		}

		if update {
			if err := r.model.Backward(); err != nil {
				return Report{}, errors.Wrapf(err, "step %d: backward", step)
			}
			optim.ClipGradNorm(params, r.cfg.GradMaxNorm)
			r.opt.Step()
		}

		preds := out.Predictions
		if r.cfg.Binary {
			preds = metrics.Threshold(preds, 0.5)
		}
		if err := agg.Add(targets, preds, part); err != nil {
			return Report{}, errors.Wrapf(err, "step %d", step)
		}
		seen += batch.Len()

		overall := agg.Score()
		steps.overall.Add(overall)
		line := []string{
			fmt.Sprintf("loss %.3f", steps.loss.Mean()),
			fmt.Sprintf("total %.3f", overall),
		}
		for _, g := range subgroup.Groups {
			if score, ok := agg.GroupScore(g); ok {
				steps.groups[g].Add(score)
				line = append(line, fmt.Sprintf("%s %.3f", g, score))
			}
		}

		if step%r.cfg.PrintStep == 0 || seen == loader.Length() {
			logging.Logf(r.log, logging.Info, "%s %d iter | %s | time %s",
				progress(seen, loader.Length()), step, strings.Join(line, " | "), FormatElapsed(r.now().Sub(start)))
		}
	}
	if err := loader.Err(); err != nil {
		return Report{}, errors.Wrap(err, "loader")
	}

	report := Report{
		Steps:   step,
		Pairs:   seen,
		Loss:    steps.loss.Mean(),
		Overall: agg.Score(),
		Counts:  counts,
		Elapsed: r.now().Sub(start),
	}
	report.KK, _ = agg.GroupScore(subgroup.KK)
	report.KU, _ = agg.GroupScore(subgroup.KU)
	report.UU, _ = agg.GroupScore(subgroup.UU)

	metric := "pearson correlation"
	if r.cfg.Binary {
		metric = "accuracy"
	}
	logging.Logf(r.log, logging.Info, "\ttotal metrics (Loss/Total/KK/KU/UU):\t%s", steps.means())
	logging.Logf(r.log, logging.Info, "\t%s: %.3f\t", metric, report.Overall)
	logging.Logf(r.log, logging.Info, "\tKK, KU, UU %s: %.3f/%.3f/%.3f\t(pairs %d/%d/%d)",
		metric, report.KK, report.KU, report.UU, counts[0], counts[1], counts[2])

	if r.cfg.SaveEmbed {
		if err := keys.Save(r.cfg.EmbedPath); err != nil {
			return report, err
		}
	}
	return report, nil
}

// progress renders a fixed width progress bar for done out of total
func progress(done, total int) string {
	const width = 20
	if total <= 0 {
		return "[" + strings.Repeat("-", width) + "]   0.00%"
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %6.2f%%", strings.Repeat("=", filled), strings.Repeat("-", width-filled),
		float64(done)/float64(total)*100)
}

// FormatElapsed renders d as H:MM:SS
func FormatElapsed(d time.Duration) string {
	et := int(d.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", et/3600, et%3600/60, et%60)
}
