package main

import (
	"fmt"
	"os"

	"github.com/ondyari/FaceForensics/internal/domain/crop"
	"github.com/ondyari/FaceForensics/internal/domain/entity"
	"github.com/ondyari/FaceForensics/internal/domain/sampling"
	"github.com/ondyari/FaceForensics/internal/infra/ffmpeg"
	"github.com/ondyari/FaceForensics/internal/infra/imageio"
	"github.com/ondyari/FaceForensics/internal/infra/progress"
	"github.com/ondyari/FaceForensics/internal/usecase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type extractFlags struct {
	mode         string
	dataPath     string
	outputPath   string
	maskDataPath string
	absoluteNum  int
	everyNth     int
	crop         bool
	scale        float64
	returnMasks  bool
	trackFaces   bool
	skipExisting bool
	seed         int64
	tempDir      string
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	f := &extractFlags{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract images from original/altered/mask video triples",
		Long: `extract decodes each triple of a split folder (original/, altered/ and
mask/ sub folders) and writes the sampled frames as PNG images, cropped to
the region marked by the mask unless --crop=false.

Exactly one of --absolute_num and --every_nth must be given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkMode(f.mode); err != nil {
				return err
			}
			opts := usecase.ExtractOptions{
				Plan:         sampling.Plan{AbsoluteNum: f.absoluteNum, EveryNth: f.everyNth},
				Crop:         f.crop,
				Scale:        f.scale,
				ReturnMasks:  f.returnMasks,
				TrackFaces:   f.trackFaces,
				SkipExisting: f.skipExisting,
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			var seed *int64
			if cmd.Flags().Changed("seed") {
				seed = &f.seed
			}
			return runExtract(cmd, root.log, f, opts, seed)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "mode", "m", modeWholeDataset, "single_folder or whole_dataset")
	fl.StringVarP(&f.dataPath, "data_path", "i", "", "split folder, or dataset root in whole_dataset mode")
	fl.StringVarP(&f.outputPath, "output_path", "o", "", "output folder")
	fl.StringVar(&f.maskDataPath, "mask_data_path", "", "alternative root of the mask videos")
	fl.IntVar(&f.absoluteNum, "absolute_num", 0, "number of random frames per video")
	fl.IntVar(&f.everyNth, "every_nth", 0, "take every nth frame")
	fl.BoolVar(&f.crop, "crop", true, "crop frames around the mask region")
	fl.Float64Var(&f.scale, "scale", crop.DefaultScale, "crop size relative to the mask box")
	fl.BoolVar(&f.returnMasks, "return_masks", false, "also write the mask images")
	fl.BoolVar(&f.trackFaces, "track_faces", false, "follow one face when a mask has several regions")
	fl.BoolVar(&f.skipExisting, "skip_existing", false, "skip triples extracted by an earlier run")
	fl.Int64Var(&f.seed, "seed", 0, "seed for absolute_num sampling")
	fl.StringVar(&f.tempDir, "temp_dir", os.TempDir(), "scratch folder for decoded frames")
	_ = cmd.MarkFlagRequired("data_path")
	_ = cmd.MarkFlagRequired("output_path")
	return cmd
}

func runExtract(cmd *cobra.Command, log *zap.Logger, f *extractFlags, opts usecase.ExtractOptions, seed *int64) error {
	triples := usecase.NewTripleExtractor(ffmpeg.NewExtractor(0, "png", log), imageio.NewCodec(), log, f.tempDir)
	uc := usecase.NewExtractImagesUseCase(triples, progress.NewBarFactory(cmd.ErrOrStderr()), log)

	req := usecase.FolderRequest{DataPath: f.dataPath, OutputPath: f.outputPath, MaskDataPath: f.maskDataPath}
	rng := sampling.NewRand(seed)

	var (
		total entity.TripleResult
		err   error
	)
	if f.mode == modeWholeDataset {
		total, err = uc.ExtractDataset(commandContext(cmd), req, opts, rng)
	} else {
		total, err = uc.ExtractFolder(commandContext(cmd), req, opts, rng)
	}

	log.Info("extraction finished",
		zap.Int("frames", total.FrameCount),
		zap.Int("images", total.ImageCount),
		zap.Int("skipped", total.Skipped),
	)
	if err != nil {
		return fmt.Errorf("extract images: %w", err)
	}
	return nil
}
