package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/physeval/internal/models"
	"github.com/bdougie/physeval/internal/prompts"
	"github.com/bdougie/physeval/internal/storage"
)

type memoryStore struct {
	mu       sync.Mutex
	verdicts map[string]*models.Verdict
	fail     bool
}

func (s *memoryStore) SaveVerdict(_ context.Context, v *models.Verdict) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("disk full")
	}
	if s.verdicts == nil {
		s.verdicts = map[string]*models.Verdict{}
	}
	s.verdicts[v.VideoID] = v
	return "mem://" + v.VideoID, nil
}

// echoBackend answers every call with a fixed verdict, or fails every call.
type echoBackend struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (b *echoBackend) Name() string { return "echo" }

func (b *echoBackend) Complete(_ context.Context, _ string, images []string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.fail {
		return "", errors.New("unavailable")
	}
	return fmt.Sprintf(`{"Objects": "Yes", "Event": "Yes", "Frames": "%d"}`, len(images)), nil
}

func testIndex(t *testing.T, n int) *prompts.Index {
	t.Helper()
	var items []any
	for i := 1; i <= n; i++ {
		items = append(items, map[string]any{
			"Prompt_index":   fmt.Sprintf("vid_%02d", i),
			"Physics_index":  fmt.Sprintf("phys_%02d", i),
			"Detailed_index": fmt.Sprintf("det_%02d", i),
			"Basic_Standards": map[string]any{
				"Objects": []any{"ball"},
				"Event":   "ball falls",
			},
			"Key_Standards": []any{"ball accelerates"},
		})
	}
	return prompts.Build(prompts.NewSection(map[string]any{"Mechanics": map[string]any{"Gravity": items}}), nil)
}

func writeFrames(t *testing.T, root, id string, k int) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for i := 1; i <= k; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)), []byte("png"), 0644))
	}
}

func newTestProcessor(t *testing.T, backend Backend, store VerdictStore, parallel bool) *Processor {
	return &Processor{
		Index:      testIndex(t, 12),
		Invoker:    newTestInvoker(backend, 3),
		Store:      store,
		FramesRoot: t.TempDir(),
		Frames:     4,
		Variant:    models.VariantOneStep,
		Model:      "gpt-4o",
		Parallel:   parallel,
		MaxWorkers: 100,
	}
}

func TestProcessorRunSequential(t *testing.T) {
	store := &memoryStore{}
	backend := &echoBackend{}
	p := newTestProcessor(t, backend, store, false)
	writeFrames(t, p.FramesRoot, "vid_01", 4)
	writeFrames(t, p.FramesRoot, "phys_02", 4)
	writeFrames(t, p.FramesRoot, "det_03", 3)

	summary := p.Run(context.Background(), []string{"vid_01", "phys_02", "det_03", "unknown"})

	assert.Equal(t, RunSummary{Processed: 4, Saved: 2, Skipped: 2}, summary)
	assert.Equal(t, 2, backend.calls, "incomplete frame sets never reach the model")

	v := store.verdicts["phys_02"]
	require.NotNil(t, v)
	assert.Equal(t, "gpt-4o", v.ModelName)
	assert.False(t, v.IsTwoStep)
	assert.Equal(t, models.VariantOneStep, v.PromptType)
	assert.Equal(t, 4, v.Frames)
	assert.Equal(t, 1, v.Attempts)
	assert.Equal(t, `{"Objects": "Yes", "Event": "Yes", "Frames": "4"}`, v.ResponseText())
	assert.Equal(t, "vid_02", v.Data["Prompt_index"])
	assert.Contains(t, v.Prompt, `"ball"`)
	assert.False(t, v.CreatedAt.IsZero())
}

func TestProcessorPersistsSentinelWhenExhausted(t *testing.T) {
	store := &memoryStore{}
	backend := &echoBackend{fail: true}
	p := newTestProcessor(t, backend, store, false)
	writeFrames(t, p.FramesRoot, "vid_01", 4)

	summary := p.Run(context.Background(), []string{"vid_01"})

	assert.Equal(t, 1, summary.Saved)
	assert.Equal(t, 3, backend.calls)
	v := store.verdicts["vid_01"]
	require.NotNil(t, v)
	assert.Equal(t, models.NoResponseSentinel, v.ResponseText())
	assert.Equal(t, 3, v.Attempts)
}

func TestProcessorContainsStoreFailures(t *testing.T) {
	p := newTestProcessor(t, &echoBackend{}, &memoryStore{fail: true}, false)
	writeFrames(t, p.FramesRoot, "vid_01", 4)
	writeFrames(t, p.FramesRoot, "vid_02", 4)

	summary := p.Run(context.Background(), []string{"vid_01", "vid_02"})
	assert.Equal(t, RunSummary{Processed: 2, Failed: 2}, summary)
}

func TestProcessorMirrorFailureDoesNotFailVideo(t *testing.T) {
	primary := &memoryStore{}
	p := newTestProcessor(t, &echoBackend{}, primary, false)
	p.Mirrors = []VerdictStore{&memoryStore{fail: true}}
	writeFrames(t, p.FramesRoot, "vid_01", 4)

	summary := p.Run(context.Background(), []string{"vid_01"})
	assert.Equal(t, 1, summary.Saved)
	assert.Len(t, primary.verdicts, 1)
}

func TestProcessorRunParallel(t *testing.T) {
	store := &memoryStore{}
	p := newTestProcessor(t, &echoBackend{}, store, true)

	var ids []string
	for i := 1; i <= 12; i++ {
		id := fmt.Sprintf("vid_%02d", i)
		writeFrames(t, p.FramesRoot, id, 4)
		ids = append(ids, id)
	}

	summary := p.Run(context.Background(), ids)
	assert.Equal(t, RunSummary{Processed: 12, Saved: 12}, summary)

	var saved []string
	for id := range store.verdicts {
		saved = append(saved, id)
	}
	sort.Strings(saved)
	assert.Equal(t, ids, saved)
}

func TestProcessorUnsupportedVariantFails(t *testing.T) {
	p := newTestProcessor(t, &echoBackend{}, &memoryStore{}, false)
	p.Variant = models.VariantTwoStepNoStandardLast
	writeFrames(t, p.FramesRoot, "vid_01", 4)

	summary := p.Run(context.Background(), []string{"vid_01"})
	assert.Equal(t, RunSummary{Processed: 1, Failed: 1}, summary)
}

func TestProcessorWorkers(t *testing.T) {
	p := &Processor{}
	assert.Equal(t, 1, p.workers(50))

	p.Parallel = true
	assert.Equal(t, 7, p.workers(7))
	assert.Equal(t, MaxWorkers, p.workers(500))

	p.MaxWorkers = 8
	assert.Equal(t, 8, p.workers(500))
}

func TestProcessorEmptyBatch(t *testing.T) {
	p := newTestProcessor(t, &echoBackend{}, &memoryStore{}, true)
	assert.Equal(t, RunSummary{}, p.Run(context.Background(), nil))
}

func TestProcessorCanceledRunKeepsEarlierVerdicts(t *testing.T) {
	store := storage.NewFileStore(t.TempDir())
	backend := &echoBackend{}
	p := newTestProcessor(t, backend, store, false)
	ids := []string{"vid_01", "vid_02"}
	for _, id := range ids {
		writeFrames(t, p.FramesRoot, id, 4)
	}

	first := p.Run(context.Background(), ids)
	require.Equal(t, 2, first.Saved)

	dir := storage.ResultDir(store.Root(), "gpt-4o", 4, false)
	before := map[string][]byte{}
	for _, id := range ids {
		data, err := os.ReadFile(filepath.Join(dir, storage.VerdictFileName(models.VariantOneStep, id)))
		require.NoError(t, err)
		before[id] = data
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	backend.fail = true
	summary := p.Run(ctx, ids)

	assert.Equal(t, RunSummary{Canceled: 2}, summary)
	assert.Equal(t, 2, backend.calls, "no judge call after cancellation")
	for _, id := range ids {
		data, err := os.ReadFile(filepath.Join(dir, storage.VerdictFileName(models.VariantOneStep, id)))
		require.NoError(t, err)
		assert.Equal(t, before[id], data, id)
	}
}

func TestProcessorStopsWhenCanceledMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &memoryStore{}
	backend := &cancelingBackend{cancel: cancel}
	p := newTestProcessor(t, backend, store, false)
	ids := []string{"vid_01", "vid_02", "vid_03"}
	for _, id := range ids {
		writeFrames(t, p.FramesRoot, id, 4)
	}

	summary := p.Run(ctx, ids)

	assert.Equal(t, RunSummary{Canceled: 3}, summary)
	assert.Equal(t, 1, backend.calls)
	assert.Empty(t, store.verdicts, "a canceled call never persists the no-response verdict")
}
