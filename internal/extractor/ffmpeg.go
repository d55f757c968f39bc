package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegSource reads videos through the ffprobe and ffmpeg binaries.
type FFmpegSource struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpegSource uses ffmpeg and ffprobe from PATH.
func NewFFmpegSource() *FFmpegSource {
	return &FFmpegSource{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

// Open probes the video for its frame count.
func (f *FFmpegSource) Open(ctx context.Context, path string) (Video, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("video file does not exist at path: '%s'", path)
	}

	total, err := f.countFrames(ctx, path)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, fmt.Errorf("video '%s' reports no frames", path)
	}
	return &ffmpegVideo{source: f, path: path, frames: total}, nil
}

func (f *FFmpegSource) countFrames(ctx context.Context, path string) (int, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets,nb_frames",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseFrameCount(string(output))
}

// parseFrameCount reads ffprobe key=value output, preferring the packet count
// over the container's nb_frames which some formats leave as N/A.
func parseFrameCount(output string) (int, error) {
	values := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok {
			values[key] = value
		}
	}
	for _, key := range []string{"nb_read_packets", "nb_frames"} {
		if n, err := strconv.Atoi(values[key]); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("parse frame count from ffprobe output %q", strings.TrimSpace(output))
}

type ffmpegVideo struct {
	source *FFmpegSource
	path   string
	frames int
}

func (v *ffmpegVideo) FrameCount() int { return v.frames }

func (v *ffmpegVideo) ReadFrame(ctx context.Context, index int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, v.source.FFmpegPath,
		"-v", "error",
		"-i", v.path,
		"-vf", fmt.Sprintf(`select=eq(n\,%d)`, index),
		"-vsync", "0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, output: %s", err, stderr.String())
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("ffmpeg returned no data for frame %d", index)
	}
	return output, nil
}

func (v *ffmpegVideo) Close() error { return nil }
