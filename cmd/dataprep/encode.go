package main

import (
	"fmt"

	"github.com/ondyari/FaceForensics/internal/infra/ffmpeg"
	"github.com/ondyari/FaceForensics/internal/infra/progress"
	"github.com/ondyari/FaceForensics/internal/usecase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const methodAll = "all"

type encodeFlags struct {
	dataPath      string
	method        string
	crfs          []int
	preset        string
	extractImages bool
}

func newEncodeCmd(root *rootOptions) *cobra.Command {
	f := &encodeFlags{}
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode image sequences into the compressed dataset releases",
		Long: `encode turns <method>/raw/images/<folder> into
<method>/c<crf>/videos/<folder>.mp4 at the frame rate of the source video
read through misc/conversion_dict.json. With --extract_images the videos are
decoded again into <method>/c<crf>/images/<folder> and frame counts that
differ from the input are reported.

--method is original, a manipulation method, or all (Face2Face, FaceSwap
and Deepfakes).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEncode(cmd, root.log, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.dataPath, "data_path", "i", "", "dataset root")
	fl.StringVar(&f.method, "method", usecase.MethodOriginal, "original, a method name, or all")
	fl.IntSliceVarP(&f.crfs, "crf", "c", usecase.DefaultEncodeCRFs, "constant rate factors, 0 (lossless) to 51")
	fl.StringVar(&f.preset, "preset", "slow", "x264 preset")
	fl.BoolVar(&f.extractImages, "extract_images", true, "decode the videos again and check frame counts")
	_ = cmd.MarkFlagRequired("data_path")
	return cmd
}

func runEncode(cmd *cobra.Command, log *zap.Logger, f *encodeFlags) error {
	uc := usecase.NewEncodeSequencesUseCase(
		ffmpeg.NewCompressor(log),
		ffmpeg.NewExtractor(0, "png", log),
		progress.NewBarFactory(cmd.ErrOrStderr()),
		log,
	)
	req := usecase.EncodeRequest{
		DataPath:      f.dataPath,
		Method:        f.method,
		CRFs:          f.crfs,
		Preset:        f.preset,
		ExtractImages: f.extractImages,
	}

	var (
		summary usecase.EncodeSummary
		err     error
	)
	if f.method == methodAll {
		summary, err = uc.EncodeMethods(commandContext(cmd), req, usecase.ManipulationMethods)
	} else {
		summary, err = uc.EncodeMethod(commandContext(cmd), req)
	}

	log.Info("encoding finished",
		zap.Int("encoded", summary.Encoded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("verified", summary.Verified),
		zap.Int("mismatched", summary.Mismatched),
	)
	if err != nil {
		return fmt.Errorf("encode sequences: %w", err)
	}
	return nil
}
