package main

import (
	"fmt"

	"github.com/ondyari/FaceForensics/internal/infra/ffmpeg"
	"github.com/ondyari/FaceForensics/internal/infra/progress"
	"github.com/ondyari/FaceForensics/internal/usecase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type compressFlags struct {
	mode       string
	dataPath   string
	outputPath string
	crfs       []int
	fps        float64
	preset     string
	container  string
}

func newCompressCmd(root *rootOptions) *cobra.Command {
	f := &compressFlags{}
	cmd := &cobra.Command{
		Use:   "compress",
		Short: "Re-encode videos with H.264 at one or more CRF values",
		Long: `compress writes every video of a folder as <stem>.<container> encoded
with H.264. CRF 0 is lossless and keeps RGB. With several --crf values the
outputs go to c<crf> sub folders. Existing outputs are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkMode(f.mode); err != nil {
				return err
			}
			return runCompress(cmd, root.log, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "mode", "m", modeSingleFolder, "single_folder or whole_dataset")
	fl.StringVarP(&f.dataPath, "data_path", "i", "", "video folder, or dataset root in whole_dataset mode")
	fl.StringVarP(&f.outputPath, "output_path", "o", "", "output folder")
	fl.IntSliceVarP(&f.crfs, "crf", "c", []int{0}, "constant rate factors, 0 (lossless) to 51")
	fl.Float64Var(&f.fps, "fps", 0, "output frame rate, 0 keeps the source rate")
	fl.StringVar(&f.preset, "preset", "slow", "x264 preset")
	fl.StringVar(&f.container, "container", "avi", "output container extension")
	_ = cmd.MarkFlagRequired("data_path")
	_ = cmd.MarkFlagRequired("output_path")
	return cmd
}

func runCompress(cmd *cobra.Command, log *zap.Logger, f *compressFlags) error {
	uc := usecase.NewCompressVideosUseCase(ffmpeg.NewCompressor(log), progress.NewBarFactory(cmd.ErrOrStderr()), log)
	req := usecase.CompressRequest{
		DataPath:   f.dataPath,
		OutputPath: f.outputPath,
		CRFs:       f.crfs,
		FPS:        f.fps,
		Preset:     f.preset,
		Container:  f.container,
	}

	var (
		summary usecase.CompressSummary
		err     error
	)
	if f.mode == modeWholeDataset {
		summary, err = uc.CompressDataset(commandContext(cmd), req)
	} else {
		summary, err = uc.CompressFolder(commandContext(cmd), req)
	}

	log.Info("compression finished",
		zap.Int("compressed", summary.Compressed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	if err != nil {
		return fmt.Errorf("compress videos: %w", err)
	}
	return nil
}
