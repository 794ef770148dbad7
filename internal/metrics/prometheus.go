package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proctor_frames_evaluated_total",
			Help: "Frames evaluated, by verdict",
		},
		[]string{"verdict"},
	)

	FlaggedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proctor_flagged_events_total",
			Help: "Flagged events appended, by reason",
		},
		[]string{"reason"},
	)

	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "proctor_frame_evaluation_seconds",
			Help:    "Per-frame evaluation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	EnrollmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proctor_enrollments_total",
			Help: "Enrollment attempts, by status",
		},
		[]string{"status"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "proctor_active_sessions",
			Help: "Sessions currently capturing",
		},
	)

	ClipsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "proctor_clips_extracted_total",
			Help: "Highlight clips extracted from session videos",
		},
	)

	AudioPeak = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "proctor_audio_peak_amplitude",
			Help: "Peak absolute audio amplitude of the last analyzed session",
		},
	)

	RecognitionErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "proctor_recognition_errors_total",
			Help: "Frame evaluations degraded by adapter or runtime errors",
		},
	)
)

func Init() {
	prometheus.MustRegister(FramesEvaluated)
	prometheus.MustRegister(FlaggedEvents)
	prometheus.MustRegister(EvaluationDuration)
	prometheus.MustRegister(EnrollmentsTotal)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(ClipsExtracted)
	prometheus.MustRegister(AudioPeak)
	prometheus.MustRegister(RecognitionErrors)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
