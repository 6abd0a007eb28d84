package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cnclabs/ddi/internal/export"
	"github.com/cnclabs/ddi/internal/logging"
	"github.com/cnclabs/ddi/pkg/pairnet"
)

var scoreFlags runFlags

var scoreDirCmd = &cobra.Command{
	Use:   "score-dir",
	Short: "Train the model, then score every unlabeled pair file under score_dir",
	RunE:  runScoreDir,
}

func init() {
	scoreFlags.register(scoreDirCmd)
	rootCmd.AddCommand(scoreDirCmd)
}

func runScoreDir(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, &scoreFlags)
	if err != nil {
		return err
	}
	defer s.close()
	if s.cfg.ScoreDir == "" || s.cfg.ScoreOut == "" {
		return configErr(errors.New("score_dir and score_out are required"))
	}
	if s.cfg.Rep() != pairnet.RepChars {
		return configErr(errors.Wrapf(pairnet.ErrUnsupportedRep, "score-dir needs rep_idx %d, got %d", pairnet.RepChars, s.cfg.RepIdx))
	}

	if err := s.fit(); err != nil {
		return err
	}

	scorer := &export.Scorer{
		Model: s.model,
		Fs:    afero.NewOsFs(),
		Vocab: s.ds.Vocab,
		Rep:   s.cfg.Rep(),
		Known: s.ds.KnownReprs(),
		Log:   s.sink,
	}
	reports, err := scorer.ScoreDir(s.cfg.ScoreDir, s.cfg.ScoreOut)
	if err != nil {
		return err
	}
	logging.Logf(s.sink, logging.Info, "scored %d files into %s", len(reports), s.cfg.ScoreOut)
	return nil
}
