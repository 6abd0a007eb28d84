package runner

import (
	"fmt"
	"math"

	"github.com/klauspost/cpuid/v2"

	"github.com/cnclabs/ddi/internal/logging"
	"github.com/cnclabs/ddi/internal/subgroup"
)

// LoaderFunc returns a fresh loader for one epoch, shuffled as needed
type LoaderFunc func() Loader

// Best records the validation epoch with the highest headline score
type Best struct {
	Epoch int
	Score float64
}

// Fit runs epochs training epochs, each followed by a validation epoch when
// valid is not nil. Embedding capture is never active during Fit.
func (r *Runner) Fit(epochs int, train, valid LoaderFunc, groups *subgroup.Classifier) (Best, error) {
	best := Best{Epoch: 0, Score: math.Inf(-1)}
	fitter := r.WithoutCapture()

	for epoch := 1; epoch <= epochs; epoch++ {
		logging.Logf(r.log, logging.Info, "Epoch: %d", epoch)
		report, err := fitter.RunEpoch(train(), groups, nil, true)
		if err != nil {
			return best, err
		}
		logging.Logf(r.log, logging.Info, "\ttrain KU: %.3f\tloss: %.4f", report.Headline(), report.Loss)

		if valid == nil {
			continue
		}
		report, err = fitter.RunEpoch(valid(), groups, nil, false)
		if err != nil {
			return best, err
		}
		if report.Headline() > best.Score {
			best = Best{Epoch: epoch, Score: report.Headline()}
		}
		logging.Logf(r.log, logging.Info, "\tvalid KU: %.3f\tbest: %.3f (epoch %d)", report.Headline(), best.Score, best.Epoch)
	}
	return best, nil
}

// WithoutCapture returns a copy of r with embedding capture disabled
func (r *Runner) WithoutCapture() *Runner {
	c := *r
	c.cfg.SaveEmbed = false
	return &c
}

// DeviceBanner describes the processor the run executes on
func DeviceBanner() string {
	return fmt.Sprintf("device: %s (%d physical / %d logical cores, avx2=%t)",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.Supports(cpuid.AVX2))
}
