package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bdougie/physeval/internal/models"
)

// ResultDir is the directory holding every verdict of one configuration:
// <root>/<model>/frame-<k>/is_two_step_<True|False>.
func ResultDir(root, model string, frames int, twoStep bool) string {
	return filepath.Join(root, model, fmt.Sprintf("frame-%d", frames), TwoStepDirName(twoStep))
}

// TwoStepDirName renders the flag with a capitalised boolean, e.g. is_two_step_False.
func TwoStepDirName(twoStep bool) string {
	if twoStep {
		return "is_two_step_True"
	}
	return "is_two_step_False"
}

// VerdictFileName names the verdict file of one video.
func VerdictFileName(variant models.Variant, videoID string) string {
	return fmt.Sprintf("%s_automatic_result_%s.json", variant.OutputPrefix(), videoID)
}

// FileStore writes each verdict to its own JSON file. It is the
// authoritative record that aggregation reads back.
type FileStore struct {
	mu   sync.Mutex
	root string
}

// NewFileStore returns a store rooted at root (e.g. automatic_results).
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root is the results root directory.
func (s *FileStore) Root() string { return s.root }

// PathFor returns the file a verdict is written to.
func (s *FileStore) PathFor(v *models.Verdict) string {
	return filepath.Join(ResultDir(s.root, v.ModelName, v.Frames, v.IsTwoStep), VerdictFileName(v.PromptType, v.VideoID))
}

// SaveVerdict writes v with 4-space indentation, replacing any earlier file
// for the same video and configuration.
func (s *FileStore) SaveVerdict(_ context.Context, v *models.Verdict) (string, error) {
	if v.VideoID == "" || strings.ContainsAny(v.VideoID, `/\`) {
		return "", fmt.Errorf("invalid video id %q", v.VideoID)
	}
	path := s.PathFor(v)

	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode verdict: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for results: %w", err)
	}

	// Write through a temp file so a reader never sees a half-written verdict.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write results file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write results file: %w", err)
	}
	return path, nil
}

// LoadVerdict reads a verdict file back.
func LoadVerdict(path string) (*models.Verdict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v models.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode verdict '%s': %w", path, err)
	}
	return &v, nil
}
