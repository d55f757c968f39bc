package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bdougie/physeval/internal/models"
)

// ErrLookupMiss means an alias is not present in the index.
var ErrLookupMiss = errors.New("alias not found")

// Collision records an alias that two distinct records claimed. The later
// record wins the lookup.
type Collision struct {
	Alias    string
	Previous *models.PromptRecord
	Current  *models.PromptRecord
}

// Index resolves any alias of a checklist record to that record.
type Index struct {
	byAlias    map[string]*models.PromptRecord
	collisions []Collision
	skipped    int
	logger     *slog.Logger
}

// Load reads a JSON or YAML dataset description and builds its index.
func Load(path string, logger *slog.Logger) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset '%s': %w", path, err)
	}

	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode dataset '%s': %w", path, err)
	}
	return Build(NewSection(doc), logger), nil
}

// Build indexes every record in root under all three of its aliases.
func Build(root Section, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{byAlias: map[string]*models.PromptRecord{}, logger: logger}

	root.Walk(func(node map[string]any) {
		rec, err := decodeRecord(node)
		if err != nil {
			idx.skipped++
			logger.Debug("skipping malformed record", "error", err)
			return
		}
		for _, alias := range rec.Aliases() {
			if alias == "" {
				continue
			}
			if prev, ok := idx.byAlias[alias]; ok && prev != rec {
				idx.collisions = append(idx.collisions, Collision{Alias: alias, Previous: prev, Current: rec})
				logger.Warn("alias claimed by more than one record, keeping the later one",
					"alias", alias, "previous", prev.PromptID, "current", rec.PromptID)
			}
			idx.byAlias[alias] = rec
		}
	})

	logger.Info("prompts loaded", "aliases", len(idx.byAlias), "collisions", len(idx.collisions), "skipped", idx.skipped)
	return idx
}

// Lookup returns the record an alias refers to.
func (idx *Index) Lookup(alias string) (*models.PromptRecord, error) {
	rec, ok := idx.byAlias[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLookupMiss, alias)
	}
	return rec, nil
}

// Len is the number of indexed aliases.
func (idx *Index) Len() int { return len(idx.byAlias) }

// Aliases returns every indexed alias in sorted order.
func (idx *Index) Aliases() []string {
	aliases := make([]string, 0, len(idx.byAlias))
	for alias := range idx.byAlias {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Collisions lists aliases claimed by more than one record.
func (idx *Index) Collisions() []Collision { return idx.collisions }

// Skipped counts record nodes that could not be decoded.
func (idx *Index) Skipped() int { return idx.skipped }

// Filter splits the aliases into those with a frame directory under
// framesRoot and those without. Missing ones are reported.
func (idx *Index) Filter(framesRoot string) (kept, missing []string) {
	for _, alias := range idx.Aliases() {
		folderPath := filepath.Join(framesRoot, alias)
		if info, err := os.Stat(folderPath); err == nil && info.IsDir() {
			kept = append(kept, alias)
			continue
		}
		missing = append(missing, alias)
		idx.logger.Warn("missing folder for prompt", "alias", alias, "path", folderPath)
	}
	idx.logger.Info("prompts after filtering", "kept", len(kept), "missing", len(missing))
	return kept, missing
}
