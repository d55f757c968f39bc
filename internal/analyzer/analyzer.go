package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bdougie/physeval/internal/extractor"
	"github.com/bdougie/physeval/internal/metrics"
	"github.com/bdougie/physeval/internal/models"
	"github.com/bdougie/physeval/internal/prompts"
)

// MaxWorkers caps the pool size in parallel mode.
const MaxWorkers = 100

// RecordLookup resolves a video identifier to its checklist record.
type RecordLookup interface {
	Lookup(alias string) (*models.PromptRecord, error)
}

// VerdictStore persists a verdict and returns where it went.
type VerdictStore interface {
	SaveVerdict(ctx context.Context, v *models.Verdict) (string, error)
}

// RunSummary counts what happened to each video of a batch. Canceled counts
// the videos left untouched because the context ended.
type RunSummary struct {
	Processed int
	Saved     int
	Skipped   int
	Failed    int
	Canceled  int
}

// Processor evaluates a batch of videos: resolve the record, load the
// frames, build the prompt, invoke the judge and persist the verdict.
type Processor struct {
	Index   RecordLookup
	Invoker *Invoker
	Store   VerdictStore
	// Mirrors receive a copy of every saved verdict. Their failures are logged only.
	Mirrors []VerdictStore

	FramesRoot string
	Frames     int
	Variant    models.Variant
	Model      string

	Parallel   bool
	MaxWorkers int

	Logger *slog.Logger
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Processor) workers(n int) int {
	if !p.Parallel {
		return 1
	}
	limit := p.MaxWorkers
	if limit <= 0 || limit > MaxWorkers {
		limit = MaxWorkers
	}
	return min(limit, n)
}

// Run processes every id. A failing video never stops the batch.
func (p *Processor) Run(ctx context.Context, ids []string) RunSummary {
	logger := p.logger()
	if len(ids) == 0 {
		logger.Warn("no prompts to process")
		return RunSummary{}
	}
	logger.Info("starting evaluation",
		"videos", len(ids), "model", p.Model, "frames", p.Frames, "variant", p.Variant, "workers", p.workers(len(ids)))

	var processed, saved, skipped, failed atomic.Int64
	remaining := atomic.Int64{}
	remaining.Store(int64(len(ids)))

	workChan := make(chan string, len(ids))
	var wg sync.WaitGroup

	for i := 0; i < p.workers(len(ids)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range workChan {
				if ctx.Err() != nil {
					continue
				}
				metrics.ActiveWorkers.Inc()
				path, err := p.processOne(ctx, id)
				metrics.ActiveWorkers.Dec()

				if isCanceled(err) {
					logger.Warn("evaluation canceled", "video", id, "error", err)
					continue
				}
				processed.Add(1)
				switch {
				case err == nil:
					saved.Add(1)
					logger.Info("saved result", "video", id, "path", path)
				case isSkip(err):
					skipped.Add(1)
					metrics.VideosSkippedTotal.WithLabelValues(skipReason(err)).Inc()
					logger.Warn("skipping video", "video", id, "error", err)
				default:
					failed.Add(1)
					logger.Error("error processing a prompt", "video", id, "error", err)
				}

				left := remaining.Add(-1)
				logger.Debug("progress", "remaining", left, "total", len(ids))
			}
		}()
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		workChan <- id
	}
	close(workChan)
	wg.Wait()

	summary := RunSummary{
		Processed: int(processed.Load()),
		Saved:     int(saved.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	summary.Canceled = len(ids) - summary.Processed
	if summary.Canceled > 0 {
		logger.Warn("evaluation interrupted", "canceled", summary.Canceled, "error", ctx.Err())
	}
	logger.Info("evaluation finished",
		"processed", summary.Processed, "saved", summary.Saved, "skipped", summary.Skipped,
		"failed", summary.Failed, "canceled", summary.Canceled)
	return summary
}

func (p *Processor) processOne(ctx context.Context, id string) (string, error) {
	ctx, span := otel.Tracer("analyzer").Start(ctx, "Processor.processOne")
	defer span.End()
	span.SetAttributes(attribute.String("video.id", id))

	if err := ctx.Err(); err != nil {
		return "", err
	}

	rec, err := p.Index.Lookup(id)
	if err != nil {
		return "", err
	}

	prompt, err := BuildPrompt(p.Variant, rec)
	if err != nil {
		return "", err
	}

	frames, err := extractor.LoadFrameSet(p.FramesRoot, id, p.Frames)
	if err != nil {
		return "", err
	}

	res := p.Invoker.Invoke(ctx, prompt, frames.Paths)
	if res.Canceled {
		return "", fmt.Errorf("judge call for '%s' canceled: %w", id, res.Err)
	}
	response := res.Content
	if res.Exhausted {
		p.logger().Warn("no response received", "video", id, "attempts", res.Attempts)
		response = models.NoResponseSentinel
	}

	v := &models.Verdict{
		VideoID:    id,
		Data:       rec.Raw,
		ModelName:  p.Model,
		IsTwoStep:  p.Variant.IsTwoStep(),
		PromptType: p.Variant,
		Frames:     p.Frames,
		Response:   &response,
		Prompt:     prompt,
		Attempts:   res.Attempts,
		CreatedAt:  time.Now().UTC(),
	}

	path, err := p.Store.SaveVerdict(ctx, v)
	if err != nil {
		return "", fmt.Errorf("failed to save verdict: %w", err)
	}
	metrics.VerdictsSavedTotal.Inc()

	for _, m := range p.Mirrors {
		if _, err := m.SaveVerdict(ctx, v); err != nil {
			p.logger().Warn("failed to mirror verdict", "video", id, "error", err)
		}
	}
	return path, nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isSkip(err error) bool {
	return skipReason(err) != ""
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, prompts.ErrLookupMiss):
		return "lookup_miss"
	case errors.Is(err, extractor.ErrFrameDirMissing):
		return "frames_missing"
	case errors.Is(err, extractor.ErrIncompleteFrameSet):
		return "incomplete_frames"
	default:
		return ""
	}
}
