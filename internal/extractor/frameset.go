package extractor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bdougie/physeval/internal/models"
)

var (
	// ErrFrameDirMissing means no frame directory exists for a video.
	ErrFrameDirMissing = errors.New("frame directory missing")
	// ErrIncompleteFrameSet means a frame directory does not hold exactly k frames.
	ErrIncompleteFrameSet = errors.New("incomplete frame set")
)

// LoadFrameSet lists the sampled frames of videoID under framesRoot. The set
// is rejected unless it holds exactly k frames.
func LoadFrameSet(framesRoot, videoID string, k int) (models.FrameSet, error) {
	frameDirPath := filepath.Join(framesRoot, videoID)
	set := models.FrameSet{VideoID: videoID, Expected: k}

	files, err := os.ReadDir(frameDirPath)
	if errors.Is(err, os.ErrNotExist) {
		return set, fmt.Errorf("%w: '%s'", ErrFrameDirMissing, frameDirPath)
	}
	if err != nil {
		return set, fmt.Errorf("failed to read frames directory '%s': %w", frameDirPath, err)
	}

	var frames []string
	for _, file := range files {
		name := file.Name()
		if !file.IsDir() && strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".png") {
			frames = append(frames, name)
		}
	}
	sort.Strings(frames)

	for _, name := range frames {
		set.Paths = append(set.Paths, filepath.Join(frameDirPath, name))
	}
	if !set.Complete() {
		return set, fmt.Errorf("%w: expected %d frames in '%s', found %d", ErrIncompleteFrameSet, k, frameDirPath, len(frames))
	}
	return set, nil
}
