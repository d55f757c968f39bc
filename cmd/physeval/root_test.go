package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/physeval/internal/config"
	"github.com/bdougie/physeval/internal/models"
	"github.com/bdougie/physeval/internal/storage"
)

func runCommand(t *testing.T, environ map[string]string, args ...string) (string, error) {
	t.Helper()
	cfg, err := config.LoadFrom(environ)
	require.NoError(t, err)

	a := newApp(cfg)
	t.Cleanup(func() { a.close(context.Background()) })

	cmd := newRootCommand(a)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)
	cmd := newRootCommand(newApp(cfg))

	for _, name := range []string{"sample", "evaluate", "analyze", "runs"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"debug", "log-level", "metrics-addr"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestUnknownFlagIsConfigError(t *testing.T) {
	_, err := runCommand(t, nil, "analyze", "--no-such-flag")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestBadLogLevelIsConfigError(t *testing.T) {
	_, err := runCommand(t, nil, "--log-level", "loud", "analyze", "--results-root", t.TempDir())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestSampleRequiresSource(t *testing.T) {
	_, err := runCommand(t, nil, "sample", "--k", "4")
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = runCommand(t, nil, "sample", "--source", t.TempDir(), "--k", "0")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestSampleEmptyFolder(t *testing.T) {
	source := t.TempDir()
	out, err := runCommand(t, nil, "sample", "--source", source, "--k", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "No video files found in "+source)
}

func TestEvaluateValidatesConfig(t *testing.T) {
	_, err := runCommand(t, nil, "evaluate")
	assert.ErrorIs(t, err, config.ErrInvalid, "azure backend without an endpoint")

	_, err = runCommand(t, map[string]string{"AZURE_OPENAI_ENDPOINT": "https://example.openai.azure.com"},
		"evaluate", "--variant", "two_step_no_standard_last")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestAnalyzeReportsStoredVerdicts(t *testing.T) {
	root := t.TempDir()
	store := storage.NewFileStore(root)
	for id, response := range map[string]string{
		"a": `{"Objects": "Yes", "Event": "Yes", "Standard_1": "Yes"}`,
		"b": `{"Objects": "Yes", "Event": "No", "Standard_1": "Yes"}`,
	} {
		_, err := store.SaveVerdict(context.Background(), &models.Verdict{
			VideoID:    id,
			ModelName:  "gpt-4o",
			PromptType: models.VariantOneStep,
			Frames:     8,
			Response:   &response,
			CreatedAt:  time.Now(),
		})
		require.NoError(t, err)
	}

	out, err := runCommand(t, nil, "analyze", "--model", "gpt-4o", "--frames", "8", "--results-root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Analysis Results for gpt-4o with 8 frames (Total files: 2):")
	assert.Contains(t, out, "Percentage of Objects and Events being Yes: 50.00%")
	assert.Contains(t, out, "Percentage of All Standards being Yes: 100.00%")

	out, err = runCommand(t, nil, "analyze", "--frames", "8", "--results-root", root, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_files": 2`)
}

func TestAnalyzeWithoutResults(t *testing.T) {
	out, err := runCommand(t, nil, "analyze", "--results-root", t.TempDir(), "--variant-dir", "is_two_step_True")
	require.NoError(t, err)
	assert.Contains(t, out, "No result files found")

	_, err = runCommand(t, nil, "analyze", "--variant-dir", "two_step")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

const evaluateDataset = `{
  "Mechanics": [
    {
      "Prompt_index": "mech_001",
      "Physics_index": "phys_001",
      "Detailed_index": "det_001",
      "Basic_Standards": {"Objects": ["ball"], "Event": "the ball bounces"},
      "Key_Standards": ["ball keeps its shape"]
    }
  ]
}`

// The endpoint refuses connections, so every video ends with the
// no-response sentinel after a single attempt.
func TestEvaluateRecordsUnreachableJudge(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(dataset, []byte(evaluateDataset), 0644))

	framesRoot := filepath.Join(dir, "frames")
	require.NoError(t, os.MkdirAll(filepath.Join(framesRoot, "det_001"), 0755))
	for _, name := range []string{"frame_001.png", "frame_002.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(framesRoot, "det_001", name), []byte("png"), 0644))
	}
	resultsRoot := filepath.Join(dir, "results")

	environ := map[string]string{
		"AZURE_OPENAI_ENDPOINT": "https://127.0.0.1:1",
		"AZURE_OPENAI_API_KEY":  "test-key",
		"PHYSEVAL_RETRY_DELAY":  "0s",
		"PHYSEVAL_LEDGER":       filepath.Join(dir, "runs.db"),
	}
	out, err := runCommand(t, environ, "evaluate",
		"--frames", "2", "--debug-model",
		"--dataset", dataset, "--frames-root", framesRoot, "--results-root", resultsRoot)
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 1 videos: 1 saved, 0 skipped, 0 failed")

	v, err := storage.LoadVerdict(filepath.Join(storage.ResultDir(resultsRoot, "gpt-4o", 2, false),
		"one_step_automatic_result_det_001.json"))
	require.NoError(t, err)
	assert.Equal(t, models.NoResponseSentinel, v.ResponseText())

	out, err = runCommand(t, environ, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4o")
	assert.Contains(t, out, "one_step")
}

func TestRunsWithoutLedger(t *testing.T) {
	out, err := runCommand(t, map[string]string{"PHYSEVAL_LEDGER": filepath.Join(t.TempDir(), "missing.db")}, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")
}
