package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cnclabs/ddi/internal/keyvec"
	"github.com/cnclabs/ddi/internal/logging"
)

var trainFlags runFlags

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the model and evaluate it on the test split",
	RunE:  runTrain,
}

func init() {
	trainFlags.register(trainCmd)
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, &trainFlags)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.fit(); err != nil {
		return err
	}

	if len(s.test) > 0 {
		logging.Logf(s.sink, logging.Info, "Test")
		if _, err := s.runner.WithoutCapture().RunEpoch(s.ds.Loader(s.test, s.cfg.BatchSize), s.groups, nil, false); err != nil {
			return err
		}
	}

	if s.cfg.SaveEmbed {
		keys := keyvec.New(s.sink)
		if _, err := s.runner.RunEpoch(s.ds.Loader(s.train, s.cfg.BatchSize), s.groups, keys, true); err != nil {
			return err
		}
		logging.Logf(s.sink, logging.Info, "captured %s embeddings into %s", humanize.Comma(int64(keys.Len())), s.cfg.EmbedPath())
	}
	return nil
}
