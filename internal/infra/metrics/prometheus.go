package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_sessions_total",
		Help: "Total number of pipeline sessions, by terminal status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scene_stage_duration_seconds",
		Help:    "Duration of pipeline and worker stages",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_frames_extracted_total",
		Help: "Total number of frames extracted across all sessions",
	})

	ReconstructionFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_reconstruction_fallbacks_total",
		Help: "Number of sessions that fell back to synthetic poses",
	})

	PointsSeededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_points_seeded_total",
		Help: "Total number of seed points written",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_active_sessions",
		Help: "Number of sessions currently running",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_retry_total",
		Help: "Total number of job retries",
	}, []string{"attempt"})
)
