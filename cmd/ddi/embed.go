package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cnclabs/ddi/internal/export"
)

var (
	embedFlags runFlags
	embedText  string
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Train the model, then export embeddings for the drugs in embed_entries",
	RunE:  runEmbed,
}

func init() {
	embedFlags.register(embedCmd)
	embedCmd.Flags().StringVar(&embedText, "text", "", "Also write the embeddings as plain text to this path")
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, &embedFlags)
	if err != nil {
		return err
	}
	defer s.close()
	if s.cfg.EmbedEntries == "" {
		return configErr(errors.New("embed_entries is required"))
	}

	if err := s.fit(); err != nil {
		return err
	}

	entries, err := export.LoadEntryFile(s.cfg.EmbedEntries)
	if err != nil {
		return err
	}
	keys, err := export.Embeddings(s.model, s.cfg.Rep(), s.ds.Vocab, entries, s.cfg.EmbedPath(), s.sink)
	if err != nil {
		return err
	}
	if embedText != "" {
		return keys.SaveText(embedText, s.model.EmbedDim())
	}
	return nil
}
