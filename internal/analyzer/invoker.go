package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bdougie/physeval/internal/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
)

// Result is the outcome of one invocation. Exhausted is set when every
// attempt failed; Err then holds the last failure. Canceled is set instead
// when the caller's context ended first.
type Result struct {
	Content   string
	Attempts  int
	Exhausted bool
	Canceled  bool
	Err       error
}

// Empty reports a successful call that returned no text.
func (r Result) Empty() bool {
	return !r.Exhausted && !r.Canceled && r.Content == ""
}

// Invoker calls a Backend with bounded, fixed-delay retries.
type Invoker struct {
	Backend     Backend
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// NewInvoker returns an Invoker with the default attempt count and delay.
func NewInvoker(backend Backend, logger *slog.Logger) *Invoker {
	return &Invoker{
		Backend:     backend,
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
		Logger:      logger,
	}
}

func (inv *Invoker) backoff() retry.Backoff {
	attempts := inv.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := inv.RetryDelay
	constant := retry.BackoffFunc(func() (time.Duration, bool) {
		return delay, false
	})
	return retry.WithMaxRetries(uint64(attempts-1), constant)
}

// Invoke sends prompt and images to the backend. Transport failures are never
// returned as errors; they surface as an exhausted Result, or a canceled one
// once ctx has ended.
func (inv *Invoker) Invoke(ctx context.Context, prompt string, images []string) Result {
	logger := inv.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, span := otel.Tracer("analyzer").Start(ctx, "Invoker.Invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("judge.backend", inv.Backend.Name()),
		attribute.Int("judge.images", len(images)),
	)

	start := time.Now()
	var res Result
	content, err := retry.DoValue(ctx, inv.backoff(), func(ctx context.Context) (string, error) {
		res.Attempts++
		metrics.InvocationAttemptsTotal.Inc()

		content, err := inv.Backend.Complete(ctx, prompt, images)
		if err != nil {
			logger.Warn("judge call failed", "attempt", res.Attempts, "error", err)
			return "", retry.RetryableError(err)
		}
		return content, nil
	})
	metrics.InvocationDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("judge.attempts", res.Attempts))

	if err != nil && ctx.Err() != nil {
		if !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		logger.Warn("judge call canceled", "attempts", res.Attempts, "error", err)
		metrics.InvocationsTotal.WithLabelValues("canceled").Inc()
		span.SetStatus(codes.Error, err.Error())
		res.Canceled = true
		res.Err = err
		return res
	}
	if err != nil {
		logger.Error("max retries reached, giving up", "attempts", res.Attempts, "error", err)
		metrics.InvocationsTotal.WithLabelValues("exhausted").Inc()
		span.SetStatus(codes.Error, err.Error())
		res.Exhausted = true
		res.Err = err
		return res
	}

	res.Content = content
	if content == "" {
		logger.Warn("empty response content received", "attempt", res.Attempts)
		metrics.InvocationsTotal.WithLabelValues("empty").Inc()
		return res
	}
	metrics.InvocationsTotal.WithLabelValues("success").Inc()
	return res
}
