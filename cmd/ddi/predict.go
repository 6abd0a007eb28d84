package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cnclabs/ddi/internal/export"
	"github.com/cnclabs/ddi/internal/logging"
)

var predictFlags runFlags

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Train the model, then write per-pair predictions for the test split",
	RunE:  runPredict,
}

func init() {
	predictFlags.register(predictCmd)
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, &predictFlags)
	if err != nil {
		return err
	}
	defer s.close()
	if s.cfg.PredFile == "" || len(s.test) == 0 {
		return configErr(errors.New("pred_file and a non-empty test_file are required"))
	}

	if err := s.fit(); err != nil {
		return err
	}

	out, err := os.Create(s.cfg.PredFile)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", s.cfg.PredFile)
	}
	defer out.Close()

	counts, err := export.Predictions(s.model, s.ds.Loader(s.test, s.cfg.BatchSize), s.groups, s.cfg.Binary, out)
	if err != nil {
		return err
	}
	logging.Logf(s.sink, logging.Info, "wrote %s: KK/KU/UU %s/%s/%s", s.cfg.PredFile,
		humanize.Comma(int64(counts[0])), humanize.Comma(int64(counts[1])), humanize.Comma(int64(counts[2])))
	return out.Close()
}
