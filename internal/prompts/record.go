package prompts

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/bdougie/physeval/internal/models"
)

// Alias field spellings. The first set is used by the published dataset,
// the second by hand-written descriptions.
var aliasFieldSets = [][3]string{
	{"Prompt_index", "Physics_index", "Detailed_index"},
	{"prompt_id", "physics_id", "detailed_id"},
}

type recordFields struct {
	PromptIndex   string `mapstructure:"Prompt_index"`
	PhysicsIndex  string `mapstructure:"Physics_index"`
	DetailedIndex string `mapstructure:"Detailed_index"`
	PromptID      string `mapstructure:"prompt_id"`
	PhysicsID     string `mapstructure:"physics_id"`
	DetailedID    string `mapstructure:"detailed_id"`

	BasicStandards struct {
		Objects []string `mapstructure:"Objects"`
		Event   string   `mapstructure:"Event"`
	} `mapstructure:"Basic_Standards"`
	KeyStandards []string `mapstructure:"Key_Standards"`

	Objects   []string `mapstructure:"objects"`
	Object    []string `mapstructure:"object"`
	Event     string   `mapstructure:"event"`
	Standards []string `mapstructure:"standards"`
}

func hasAliases(m map[string]any) bool {
	for _, set := range aliasFieldSets {
		if hasAll(m, set[:]) {
			return true
		}
	}
	return false
}

func hasAll(m map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

// decodeRecord turns a record node into a PromptRecord. Single object names
// become one-element lists and numeric ids become strings.
func decodeRecord(node map[string]any) (*models.PromptRecord, error) {
	var f recordFields
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &f,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(node); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	rec := &models.PromptRecord{
		PromptID:   first(f.PromptIndex, f.PromptID),
		PhysicsID:  first(f.PhysicsIndex, f.PhysicsID),
		DetailedID: first(f.DetailedIndex, f.DetailedID),
		Event:      first(f.BasicStandards.Event, f.Event),
		Raw:        node,
	}
	switch {
	case len(f.BasicStandards.Objects) > 0:
		rec.Objects = f.BasicStandards.Objects
	case len(f.Objects) > 0:
		rec.Objects = f.Objects
	default:
		rec.Objects = f.Object
	}
	if len(f.KeyStandards) > 0 {
		rec.Standards = f.KeyStandards
	} else {
		rec.Standards = f.Standards
	}
	return rec, nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
