package main

import (
	"context"
	"fmt"

	"github.com/ondyari/FaceForensics/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	modeSingleFolder = "single_folder"
	modeWholeDataset = "whole_dataset"
)

type rootOptions struct {
	logLevel string
	log      *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "dataprep",
		Short: "Prepare FaceForensics videos for training",
		Long: `dataprep extracts images from original/altered/mask video triples,
cropped around the manipulated face, compresses dataset videos with H.264
at fixed quality levels, and builds the original image sequences and their
compressed releases from downloaded videos.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.NewConsole(opts.logLevel)
			if err != nil {
				return err
			}
			opts.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log_level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newExtractCmd(opts), newCompressCmd(opts), newSequencesCmd(opts), newEncodeCmd(opts))
	return cmd
}

func checkMode(mode string) error {
	switch mode {
	case modeSingleFolder, modeWholeDataset:
		return nil
	default:
		return fmt.Errorf("unknown mode %q, want %s or %s", mode, modeSingleFolder, modeWholeDataset)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
