// Package metrics exposes the batch engine's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Metrics struct {
	UsersScored      prometheus.Counter
	UsersFailed      prometheus.Counter
	JobsDisqualified prometheus.Counter
	FallbackScores   prometheus.Counter
	ModelScores      prometheus.Counter
	UserScoreTime    prometheus.Histogram
	RunsTotal        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		UsersScored: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobdigest_users_scored_total",
			Help: "Users scored and selected successfully.",
		}),
		UsersFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobdigest_users_failed_total",
			Help: "Users skipped after per-user errors.",
		}),
		JobsDisqualified: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobdigest_jobs_disqualified_total",
			Help: "Candidate jobs excluded by the basic-stage hard filter.",
		}),
		FallbackScores: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobdigest_personalization_fallback_total",
			Help: "Personalization scores produced by the fallback path.",
		}),
		ModelScores: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobdigest_personalization_model_total",
			Help: "Personalization scores produced by the trained model.",
		}),
		UserScoreTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobdigest_user_scoring_seconds",
			Help:    "End-to-end scoring and selection time per user.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobdigest_runs_total",
			Help: "Batch runs by terminal state.",
		}, []string{"state"}),
	}
}

// Serve exposes /metrics until the context-free server fails; callers run it
// in a goroutine and treat errors as non-fatal.
func Serve(addr string, gatherer prometheus.Gatherer, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}
