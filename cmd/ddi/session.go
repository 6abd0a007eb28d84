package main

import (
	"math/rand"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cnclabs/ddi/internal/config"
	"github.com/cnclabs/ddi/internal/logging"
	"github.com/cnclabs/ddi/internal/models/siamese"
	"github.com/cnclabs/ddi/internal/runner"
	"github.com/cnclabs/ddi/internal/subgroup"
	"github.com/cnclabs/ddi/pkg/optim"
	"github.com/cnclabs/ddi/pkg/pairnet"
)

// session is everything a subcommand needs after the data is loaded
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	sink   *logging.ZapSink

	ds                 *pairnet.Dataset
	train, valid, test []pairnet.Pair
	groups             *subgroup.Classifier

	model  *siamese.Siamese
	runner *runner.Runner
	rng    *rand.Rand
}

// runFlags are the settings that can be overridden on the command line
type runFlags struct {
	epochs        int
	batchSize     int
	checkpointDir string
	saveEmbed     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.epochs, "epochs", 0, "Number of training epochs")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Pairs per batch")
	cmd.Flags().StringVar(&f.checkpointDir, "checkpoint-dir", "", "Directory for saved embeddings")
	cmd.Flags().BoolVar(&f.saveEmbed, "save-embed", false, "Capture training embeddings after fitting")
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("epochs") {
		cfg.Epochs = f.epochs
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = f.batchSize
	}
	if cmd.Flags().Changed("checkpoint-dir") {
		cfg.CheckpointDir = f.checkpointDir
	}
	if cmd.Flags().Changed("save-embed") {
		cfg.SaveEmbed = f.saveEmbed
	}
}

func loadConfig(cmd *cobra.Command, flags *runFlags) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv(config.EnvFile)
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, configErr(err)
		}
	}
	flags.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, configErr(err)
	}
	if cfg.DrugFile == "" || cfg.TrainFile == "" {
		return nil, configErr(errors.New("drug_file and train_file are required"))
	}
	return cfg, nil
}

// newSession loads the config, the drug registry and the splits and builds
// the model, optimizer and runner.
func newSession(cmd *cobra.Command, flags *runFlags) (*session, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(asJSON, verbose)
	s := &session{
		cfg:    cfg,
		logger: logger,
		sink:   logging.NewZapSink(logger),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
	s.sink.Log(logging.Info, runner.DeviceBanner())

	if err := s.loadData(); err != nil {
		return nil, err
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) loadData() error {
	ds, err := pairnet.New(s.cfg.Rep(), s.sink)
	if err != nil {
		return configErr(err)
	}
	if err := ds.LoadDrugFile(s.cfg.DrugFile); err != nil {
		return err
	}
	s.ds = ds

	if s.train, err = ds.LoadPairFile(s.cfg.TrainFile); err != nil {
		return err
	}
	if len(s.train) == 0 {
		return configErr(errors.Errorf("%s has no pairs", s.cfg.TrainFile))
	}
	if s.cfg.ValidFile != "" {
		if s.valid, err = ds.LoadPairFile(s.cfg.ValidFile); err != nil {
			return err
		}
	}
	if s.cfg.TestFile != "" {
		if s.test, err = ds.LoadPairFile(s.cfg.TestFile); err != nil {
			return err
		}
	}

	if s.cfg.KnownFile == "" {
		ds.MarkKnown(s.train)
	} else if err := s.loadDrugSets(); err != nil {
		return err
	}

	s.groups, err = subgroup.New(ds.Known, ds.Unknown, s.cfg.Policy())
	if err != nil {
		return configErr(err)
	}
	logging.Logf(s.sink, logging.Info, "pairs: train %s, valid %s, test %s",
		humanize.Comma(int64(len(s.train))), humanize.Comma(int64(len(s.valid))), humanize.Comma(int64(len(s.test))))
	return nil
}

// loadDrugSets reads the explicit known set and, when given, the unknown
// set. Without an unknown file every other registered drug is unknown.
func (s *session) loadDrugSets() error {
	known, err := pairnet.LoadDrugSetFile(s.cfg.KnownFile)
	if err != nil {
		return err
	}
	unknown := pairnet.NewDrugSet()
	if s.cfg.UnknownFile != "" {
		if unknown, err = pairnet.LoadDrugSetFile(s.cfg.UnknownFile); err != nil {
			return err
		}
	} else {
		for _, id := range s.ds.DrugKeys {
			if !known.Has(id) {
				unknown.Add(id)
			}
		}
	}
	if err := s.ds.SetKnownUnknown(known, unknown); err != nil {
		return configErr(err)
	}
	return nil
}

func (s *session) build() error {
	m, err := siamese.New(siamese.Config{
		Rep:        s.cfg.Rep(),
		VocabSize:  s.ds.Vocab.Size(),
		FeatureDim: s.ds.FeatureDim(),
		InputDim:   s.cfg.EmbedDim,
		HiddenDim:  s.cfg.HiddenDim,
		Binary:     s.cfg.Binary,
		Seed:       s.cfg.Seed,
	}, s.sink)
	if err != nil {
		return configErr(err)
	}
	s.model = m

	_, params := m.Parameters()
	opt, err := optim.New(s.cfg.Optimizer, params, s.cfg.LearningRate)
	if err != nil {
		return configErr(err)
	}
	s.runner, err = runner.New(m, opt, s.sink, s.cfg.RunnerConfig())
	if err != nil {
		return configErr(err)
	}
	return nil
}

func (s *session) loader(pairs []pairnet.Pair, shuffle bool) runner.LoaderFunc {
	if len(pairs) == 0 {
		return nil
	}
	return func() runner.Loader {
		if shuffle {
			pairnet.Shuffle(pairs, s.rng)
		}
		return s.ds.Loader(pairs, s.cfg.BatchSize)
	}
}

// fit trains for the configured number of epochs
func (s *session) fit() error {
	best, err := s.runner.Fit(s.cfg.Epochs, s.loader(s.train, true), s.loader(s.valid, false), s.groups)
	if err != nil {
		return err
	}
	if best.Epoch > 0 {
		logging.Logf(s.sink, logging.Info, "best valid KU %.3f at epoch %d", best.Score, best.Epoch)
	}
	return nil
}

func (s *session) close() {
	_ = s.sink.Sync()
}
