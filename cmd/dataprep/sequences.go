package main

import (
	"fmt"

	"github.com/ondyari/FaceForensics/internal/infra/ffmpeg"
	"github.com/ondyari/FaceForensics/internal/infra/progress"
	"github.com/ondyari/FaceForensics/internal/usecase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	seqModeExtract        = "extract"
	seqModeConversionList = "conversion_list"
	seqModeRename         = "rename"
)

type sequencesFlags struct {
	mode     string
	dataPath string
	target   string
}

func newSequencesCmd(root *rootOptions) *cobra.Command {
	f := &sequencesFlags{}
	cmd := &cobra.Command{
		Use:   "sequences",
		Short: "Build the original image sequences from downloaded videos",
		Long: `sequences works on a dataset root holding downloaded_videos/<id>/ with
<id>.mp4, <id>.json and extracted_sequences/*.json frame lists.

  extract          write original_sequences/raw/images/<id>_<n>/%04d.png
  conversion_list  rename those folders to 000, 001, ... and record the
                   mapping in misc/conversion_dict.json
  rename           rename the entries of --target named <id>_<n> to their
                   short names`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSequences(cmd, root.log, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "mode", "m", seqModeExtract, "extract, conversion_list or rename")
	fl.StringVarP(&f.dataPath, "data_path", "i", "", "dataset root")
	fl.StringVar(&f.target, "target", "", "folder to rename, defaults to the original images")
	_ = cmd.MarkFlagRequired("data_path")
	return cmd
}

func runSequences(cmd *cobra.Command, log *zap.Logger, f *sequencesFlags) error {
	uc := usecase.NewSequencesUseCase(ffmpeg.NewExtractor(0, "png", log), progress.NewBarFactory(cmd.ErrOrStderr()), log)

	switch f.mode {
	case seqModeExtract:
		if _, err := uc.ExtractSequences(commandContext(cmd), f.dataPath); err != nil {
			return fmt.Errorf("extract sequences: %w", err)
		}
	case seqModeConversionList:
		if _, err := uc.CreateConversionList(f.dataPath); err != nil {
			return fmt.Errorf("create conversion list: %w", err)
		}
	case seqModeRename:
		target := f.target
		if target == "" {
			target = usecase.OriginalImagesPath(f.dataPath)
		}
		if _, err := uc.RenameFromConversionList(f.dataPath, target); err != nil {
			return fmt.Errorf("rename from conversion list: %w", err)
		}
	default:
		return fmt.Errorf("unknown mode %q, want %s, %s or %s", f.mode, seqModeExtract, seqModeConversionList, seqModeRename)
	}
	return nil
}
