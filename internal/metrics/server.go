package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves /metrics and /healthz.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// StartServer serves Handler on addr until Shutdown is called.
func StartServer(ctx context.Context, addr string, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: Handler(),
	}

	go func() {
		logger.InfoContext(ctx, "metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "metrics server error", "error", err)
		}
	}()

	return srv
}
