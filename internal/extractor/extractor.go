package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bdougie/physeval/internal/metrics"
)

var (
	// ErrSourceUnavailable means the video could not be opened.
	ErrSourceUnavailable = errors.New("video source unavailable")
	// ErrNoVideos means a source folder held no video files.
	ErrNoVideos = errors.New("no video files found")
)

var videoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// VideoSource opens videos for frame-accurate reads.
type VideoSource interface {
	Open(ctx context.Context, path string) (Video, error)
}

// Video is an opened video.
type Video interface {
	FrameCount() int
	// ReadFrame seeks to the zero-based frame index and returns it PNG-encoded.
	ReadFrame(ctx context.Context, index int) ([]byte, error)
	Close() error
}

// SampleResult describes the frames written for one video. Err is set when
// the video was skipped.
type SampleResult struct {
	VideoName string
	Dir       string
	Requested int
	Written   int
	Err       error
}

// Incomplete reports whether fewer frames were written than requested.
func (r SampleResult) Incomplete() bool {
	return r.Written < r.Requested
}

// Sampler extracts evenly spaced frames from videos.
type Sampler struct {
	source  VideoSource
	logger  *slog.Logger
	workers int
}

// NewSampler creates a sampler. workers bounds how many videos of a folder
// are sampled at once; values below 1 mean sequential.
func NewSampler(source VideoSource, logger *slog.Logger, workers int) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Sampler{source: source, logger: logger, workers: workers}
}

// SampleIndices returns the frame indices to sample: every frame when k covers
// the whole video, otherwise floor(i*total/k) for i in [0, k).
func SampleIndices(total, k int) []int {
	if total <= 0 || k <= 0 {
		return nil
	}
	if k >= total {
		indices := make([]int, total)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	indices := make([]int, k)
	for i := range indices {
		indices[i] = i * total / k
	}
	return indices
}

// FrameName is the file name of the 1-based sequence number seq.
func FrameName(seq int) string {
	return fmt.Sprintf("frame_%03d.png", seq)
}

// VideoName derives the per-video directory name from its path.
func VideoName(videoPath string) string {
	return strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
}

// SampleVideo writes min(k, total) frames of videoPath into outputDir/<video name>.
// A frame that cannot be read is skipped; the caller sees it as a short result.
func (s *Sampler) SampleVideo(ctx context.Context, videoPath, outputDir string, k int) (SampleResult, error) {
	if k < 1 {
		return SampleResult{}, fmt.Errorf("frame count must be at least 1, got %d", k)
	}

	videoName := VideoName(videoPath)
	frameDirPath := filepath.Join(outputDir, videoName)
	result := SampleResult{VideoName: videoName, Dir: frameDirPath}

	if err := os.MkdirAll(frameDirPath, 0755); err != nil {
		return result, fmt.Errorf("failed to create frame directory '%s': %w", frameDirPath, err)
	}

	video, err := s.source.Open(ctx, videoPath)
	if err != nil {
		return result, fmt.Errorf("%w: '%s': %v", ErrSourceUnavailable, videoPath, err)
	}
	defer video.Close()

	indices := SampleIndices(video.FrameCount(), k)
	result.Requested = len(indices)

	for i, frameIdx := range indices {
		data, err := video.ReadFrame(ctx, frameIdx)
		if err != nil {
			metrics.FrameReadFailuresTotal.Inc()
			s.logger.Warn("failed to read frame", "video", videoName, "frame", frameIdx, "error", err)
			continue
		}

		framePath := filepath.Join(frameDirPath, FrameName(i+1))
		if err := os.WriteFile(framePath, data, 0644); err != nil {
			metrics.FrameReadFailuresTotal.Inc()
			s.logger.Warn("failed to write frame", "path", framePath, "error", err)
			continue
		}
		result.Written++
		metrics.FramesWrittenTotal.Inc()
	}

	if result.Incomplete() {
		s.logger.Warn("incomplete frame extraction", "video", videoName, "requested", result.Requested, "written", result.Written)
	}
	return result, nil
}

// SampleFolder samples every video in sourceFolder into outputDir. A video
// that fails is logged and recorded in its result; the others still run.
// Only listing the folder, creating outputDir or cancellation stop the batch.
func (s *Sampler) SampleFolder(ctx context.Context, sourceFolder, outputDir string, k int) ([]SampleResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("frame count must be at least 1, got %d", k)
	}
	videos, err := ListVideos(sourceFolder)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoVideos, sourceFolder)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory '%s': %w", outputDir, err)
	}

	s.logger.Info("found video files", "count", len(videos), "source", sourceFolder)

	results := make([]SampleResult, len(videos))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, videoPath := range videos {
		g.Go(func() error {
			res, err := s.SampleVideo(ctx, videoPath, outputDir, k)
			if err != nil {
				res.Err = err
				if errors.Is(err, ErrSourceUnavailable) {
					metrics.VideosSkippedTotal.WithLabelValues("source_unavailable").Inc()
					s.logger.Error("could not open video", "path", videoPath, "error", err)
				} else {
					metrics.VideosSkippedTotal.WithLabelValues("sample_failed").Inc()
					s.logger.Error("failed to sample video", "path", videoPath, "error", err)
				}
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}

	s.logger.Info("finished sampling", "frames_per_video", k, "output", outputDir)
	return results, nil
}

// ListVideos returns the video files directly inside folder, sorted by name.
func ListVideos(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read source folder '%s': %w", folder, err)
	}

	var videos []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range videoExtensions {
			if ext == want {
				videos = append(videos, filepath.Join(folder, entry.Name()))
				break
			}
		}
	}
	sort.Strings(videos)
	return videos, nil
}
