// Command ddi trains a drug pair interaction model and exports its
// embeddings and predictions.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	ExitOK          = 0
	ExitError       = 1
	ExitConfigError = 2
)

var (
	configPath string
	asJSON     bool
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "ddi",
	Short: "Drug-drug interaction model runner",
	Long: `ddi trains a pair model on labeled drug pairs and reports its scores
overall and per subgroup: KK (both drugs seen in training), KU (one seen)
and UU (neither seen).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $DDI_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Log as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return configErr(err)
	})
}

// configError marks failures caused by the user's settings
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func configErr(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}

func exitCode(err error) int {
	var ce *configError
	if errors.As(err, &ce) {
		return ExitConfigError
	}
	return ExitError
}
