package prompts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const datasetJSON = `{
  "Mechanics": {
    "Collision": [
      {
        "Prompt_index": "mech_001",
        "Physics_index": "phys_001",
        "Detailed_index": "det_001",
        "Basic_Standards": {"Objects": ["ball", "wall"], "Event": "the ball bounces off the wall"},
        "Key_Standards": ["ball keeps its shape", "ball reverses direction"]
      },
      {"Prompt_index": "incomplete", "Physics_index": "x"}
    ],
    "Gravity": {
      "Falling": [
        {
          "Prompt_index": "mech_002",
          "Physics_index": 2,
          "Detailed_index": "det_002",
          "Basic_Standards": {"Objects": "apple", "Event": "an apple falls"},
          "Key_Standards": ["apple accelerates downward"]
        }
      ],
      "Broken": "not a list"
    }
  },
  "Optics": [
    {
      "prompt_id": "opt_001",
      "physics_id": "opt_phys_001",
      "detailed_id": "opt_det_001",
      "objects": "prism",
      "event": "light splits into colours",
      "standards": []
    },
    42,
    ["nested", "list"]
  ],
  "Version": 3
}`

func buildFromJSON(t *testing.T, doc string) *Index {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(doc), &v))
	return Build(NewSection(v), nil)
}

func TestBuildResolvesAllAliases(t *testing.T) {
	idx := buildFromJSON(t, datasetJSON)

	assert.Equal(t, 9, idx.Len())

	a, err := idx.Lookup("mech_001")
	require.NoError(t, err)
	b, err := idx.Lookup("phys_001")
	require.NoError(t, err)
	c, err := idx.Lookup("det_001")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Same(t, a, c)

	assert.Equal(t, []string{"ball", "wall"}, a.Objects)
	assert.Equal(t, "the ball bounces off the wall", a.Event)
	assert.Equal(t, []string{"ball keeps its shape", "ball reverses direction"}, a.Standards)
	assert.Equal(t, "mech_001", a.Raw["Prompt_index"])
}

func TestBuildNormalisesShapes(t *testing.T) {
	idx := buildFromJSON(t, datasetJSON)

	apple, err := idx.Lookup("2")
	require.NoError(t, err, "numeric ids are indexed as strings")
	assert.Equal(t, []string{"apple"}, apple.Objects)
	assert.Equal(t, "mech_002", apple.PromptID)

	prism, err := idx.Lookup("opt_det_001")
	require.NoError(t, err)
	assert.Equal(t, []string{"prism"}, prism.Objects)
	assert.Equal(t, "light splits into colours", prism.Event)
	assert.Empty(t, prism.Standards)
}

func TestBuildSkipsIncompleteRecords(t *testing.T) {
	idx := buildFromJSON(t, datasetJSON)

	_, err := idx.Lookup("incomplete")
	assert.ErrorIs(t, err, ErrLookupMiss)
	assert.Empty(t, idx.Collisions())
}

func TestBuildSkipsMalformedRecord(t *testing.T) {
	idx := buildFromJSON(t, `{"S": [
	  {"Prompt_index": "a", "Physics_index": "b", "Detailed_index": "c", "Basic_Standards": "oops"},
	  {"Prompt_index": "d", "Physics_index": "e", "Detailed_index": "f"}
	]}`)

	_, err := idx.Lookup("a")
	assert.ErrorIs(t, err, ErrLookupMiss)
	assert.Equal(t, 1, idx.Skipped())
	_, err = idx.Lookup("f")
	assert.NoError(t, err)
}

func TestBuildFlagsCollisions(t *testing.T) {
	idx := buildFromJSON(t, `{
	  "A": [{"Prompt_index": "shared", "Physics_index": "a1", "Detailed_index": "a2", "Basic_Standards": {"Event": "first"}}],
	  "B": [{"Prompt_index": "shared", "Physics_index": "b1", "Detailed_index": "b2", "Basic_Standards": {"Event": "second"}}]
	}`)

	rec, err := idx.Lookup("shared")
	require.NoError(t, err)
	assert.Equal(t, "second", rec.Event, "later record wins")

	require.Len(t, idx.Collisions(), 1)
	col := idx.Collisions()[0]
	assert.Equal(t, "shared", col.Alias)
	assert.Equal(t, "first", col.Previous.Event)
	assert.Equal(t, "second", col.Current.Event)
}

func TestBuildSelfAliasIsNotCollision(t *testing.T) {
	idx := buildFromJSON(t, `[{"prompt_id": "same", "physics_id": "same", "detailed_id": "other"}]`)
	assert.Equal(t, 2, idx.Len())
	assert.Empty(t, idx.Collisions())
}

func TestNewSectionKinds(t *testing.T) {
	assert.Equal(t, KindEmpty, NewSection("text").Kind)
	assert.Equal(t, KindEmpty, NewSection(nil).Kind)
	assert.Equal(t, KindList, NewSection([]any{}).Kind)
	assert.Equal(t, KindGroup, NewSection(map[string]any{"x": 1}).Kind)
	assert.Equal(t, KindGroup, NewSection(map[any]any{1: "x"}).Kind)
	assert.Equal(t, KindRecord, NewSection(map[string]any{
		"Prompt_index": "a", "Physics_index": "b", "Detailed_index": "c",
	}).Kind)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
Fluids:
  Pouring:
    - Prompt_index: fl_001
      Physics_index: fl_phys_001
      Detailed_index: fl_det_001
      Basic_Standards:
        Objects: [cup, water]
        Event: water is poured into a cup
      Key_Standards:
        - water level rises
`), 0644))

	idx, err := Load(path, nil)
	require.NoError(t, err)
	rec, err := idx.Lookup("fl_phys_001")
	require.NoError(t, err)
	assert.Equal(t, []string{"cup", "water"}, rec.Objects)
	assert.Equal(t, []string{"water level rises"}, rec.Standards)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	_, err = Load(bad, nil)
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	idx := buildFromJSON(t, datasetJSON)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "phys_001"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "opt_001"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "det_001"), nil, 0644))

	kept, missing := idx.Filter(root)
	assert.Equal(t, []string{"opt_001", "phys_001"}, kept)
	assert.Len(t, missing, idx.Len()-2)
	assert.Contains(t, missing, "det_001", "a plain file is not a frame folder")
}
