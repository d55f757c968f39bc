package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bdougie/physeval/internal/config"
	"github.com/bdougie/physeval/internal/extractor"
)

func newSampleCommand(a *app) *cobra.Command {
	var (
		source  string
		output  string
		k       int
		workers int
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample k evenly spaced frames from every video in a folder",
		Long: `Sample k evenly spaced frames from every video (.mp4, .avi, .mov, .mkv) in the
source folder. Frames are written as <output>/<video name>/frame_NNN.png; a
relative --output is placed inside the source folder.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				return fmt.Errorf("%w: --source is required", config.ErrInvalid)
			}
			if k < 1 {
				return fmt.Errorf("%w: --k must be at least 1, got %d", config.ErrInvalid, k)
			}
			if workers < 1 {
				return fmt.Errorf("%w: --workers must be at least 1, got %d", config.ErrInvalid, workers)
			}

			outputDir := output
			if !filepath.IsAbs(outputDir) {
				outputDir = filepath.Join(source, output)
			}

			src := &extractor.FFmpegSource{FFmpegPath: a.cfg.FFmpegPath, FFprobePath: a.cfg.FFprobePath}
			sampler := extractor.NewSampler(src, a.logger, workers)

			results, err := sampler.SampleFolder(cmd.Context(), source, outputDir, k)
			if errors.Is(err, extractor.ErrNoVideos) {
				fmt.Fprintf(cmd.OutOrStdout(), "No video files found in %s\n", source)
				return nil
			}
			if err != nil {
				return err
			}

			incomplete, failed := 0, 0
			for _, res := range results {
				switch {
				case res.Err != nil:
					failed++
				case res.Incomplete():
					incomplete++
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Finished sampling %d frames from each video\n", k)
			if failed > 0 {
				fmt.Fprintf(out, "%d of %d videos could not be sampled\n", failed, len(results))
			}
			if incomplete > 0 {
				fmt.Fprintf(out, "%d of %d videos have fewer than %d frames\n", incomplete, len(results), k)
			}
			fmt.Fprintf(out, "Frames saved to: %s\n", outputDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Folder containing the videos (required)")
	cmd.Flags().IntVar(&k, "k", a.cfg.Frames, "Number of frames to sample from each video")
	cmd.Flags().StringVar(&output, "output", "sampled_frames", "Output folder, relative to --source unless absolute")
	cmd.Flags().IntVar(&workers, "workers", a.cfg.SampleWorkers, "Number of videos sampled concurrently")

	return cmd
}
