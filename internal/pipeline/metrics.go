package pipeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the driver's Prometheus collectors
type Metrics struct {
	EntitiesTotal       *prometheus.CounterVec
	StageFailuresTotal  *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	CheckpointSaveFails prometheus.Counter
}

// NewMetrics creates collectors registered on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntitiesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scimap_entities_total",
			Help: "Entities processed, by outcome",
		}, []string{"outcome"}),
		StageFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scimap_stage_failures_total",
			Help: "Stage failures, by stage",
		}, []string{"stage"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scimap_stage_duration_seconds",
			Help:    "Stage latency",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		CheckpointSaveFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "scimap_checkpoint_save_failures_total",
			Help: "Checkpoint saves that failed",
		}),
	}
}

func (m *Metrics) observe(stage string, started time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (m *Metrics) stageFailed(stage string) {
	m.StageFailuresTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) entity(outcome string) {
	m.EntitiesTotal.WithLabelValues(outcome).Inc()
}

// ServeMetrics exposes g on addr at /metrics until ctx is done
func ServeMetrics(ctx context.Context, addr string, g prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		zap.L().Info("serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
