package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "physeval_frames_written_total",
		Help: "Total number of sampled frames written to disk",
	})

	FrameReadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "physeval_frame_read_failures_total",
		Help: "Total number of frames that could not be read or written",
	})

	VideosSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "physeval_videos_skipped_total",
		Help: "Videos excluded from a batch, by reason",
	}, []string{"reason"})

	InvocationAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "physeval_invocation_attempts_total",
		Help: "Total number of calls made to the judge model, retries included",
	})

	InvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "physeval_invocations_total",
		Help: "Judge invocations by outcome (success, empty, exhausted, canceled)",
	}, []string{"outcome"})

	InvocationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "physeval_invocation_duration_seconds",
		Help:    "Duration of a judge invocation including retries",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})

	VerdictsSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "physeval_verdicts_saved_total",
		Help: "Total number of verdict files written",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "physeval_active_workers",
		Help: "Number of evaluation workers currently processing a video",
	})
)
