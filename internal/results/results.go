// Package results computes dataset-level pass rates from persisted verdicts.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bdougie/physeval/internal/models"
	"github.com/bdougie/physeval/internal/parser"
	"github.com/bdougie/physeval/internal/storage"
)

// ErrNoResults means a configuration directory holds no verdict files.
var ErrNoResults = errors.New("no result files found")

// Aggregator scans one configuration directory of verdict files.
type Aggregator struct {
	Logger *slog.Logger
}

// Aggregate is shorthand for an Aggregator with the default logger.
func Aggregate(dir string) (models.AggregateStats, error) {
	return (&Aggregator{}).Aggregate(dir)
}

// Aggregate counts every *.json file in dir. Files that cannot be read, have
// no response, or whose response parses to nothing count as No on every
// predicate.
func (a *Aggregator) Aggregate(dir string) (models.AggregateStats, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stats := models.AggregateStats{Directory: dir}

	files, err := verdictFiles(dir)
	if err != nil {
		return stats, err
	}
	stats.Total = len(files)
	if stats.Total == 0 {
		return stats, fmt.Errorf("%w in '%s'", ErrNoResults, dir)
	}

	for _, path := range files {
		v, err := storage.LoadVerdict(path)
		if err != nil {
			logger.Warn("unreadable result file", "path", path, "error", err)
			continue
		}
		if stats.Model == "" {
			stats.Model, stats.Frames = v.ModelName, v.Frames
		}
		if v.Response == nil {
			logger.Debug("result file has no response", "path", path)
			continue
		}
		labels := parser.Parse(*v.Response)
		if len(labels) == 0 {
			continue
		}

		objectsEvent := ObjectsAndEvent(labels)
		standards := AllStandards(labels)
		if objectsEvent {
			stats.ObjectsEventYes++
		}
		if standards {
			stats.AllStandardsYes++
		}
		if objectsEvent && standards {
			stats.EverythingYes++
		}
	}
	return stats, nil
}

// ObjectsAndEvent is true when both Objects and Event are Yes.
func ObjectsAndEvent(labels map[string]string) bool {
	return labels["Objects"] == "Yes" && labels["Event"] == "Yes"
}

// AllStandards is true when every Standard_* label is Yes. A verdict without
// standard labels passes.
func AllStandards(labels map[string]string) bool {
	for k, v := range labels {
		if strings.HasPrefix(k, "Standard_") && v != "Yes" {
			return false
		}
	}
	return true
}

// Report prints stats in the plain-text layout of the analysis report.
func Report(w io.Writer, stats models.AggregateStats) error {
	_, err := fmt.Fprintf(w, `
Analysis Results for %s with %d frames (Total files: %d):
Percentage of Objects and Events being Yes: %.2f%%
Percentage of All Standards being Yes: %.2f%%
Percentage of Everything being Yes: %.2f%%

Raw Numbers:
Objects and Events Yes: %d
All Standards Yes: %d
Everything Yes: %d
`,
		stats.Model, stats.Frames, stats.Total,
		stats.ObjectsEventPercent(), stats.AllStandardsPercent(), stats.EverythingPercent(),
		stats.ObjectsEventYes, stats.AllStandardsYes, stats.EverythingYes)
	return err
}

type jsonReport struct {
	models.AggregateStats
	ObjectsEventPercent float64 `json:"objects_and_event_percent"`
	AllStandardsPercent float64 `json:"all_standards_percent"`
	EverythingPercent   float64 `json:"everything_percent"`
}

// ReportJSON writes stats and their percentages as one JSON object.
func ReportJSON(w io.Writer, stats models.AggregateStats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		AggregateStats:      stats,
		ObjectsEventPercent: stats.ObjectsEventPercent(),
		AllStandardsPercent: stats.AllStandardsPercent(),
		EverythingPercent:   stats.EverythingPercent(),
	})
}

// verdictFiles lists the .json files directly under dir in name order. The
// directory name is never used as a pattern, so model names like gpt[4o] work.
func verdictFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list '%s': %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
