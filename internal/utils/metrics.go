// internal/utils/metrics.go
package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 生成服务调用指标
// action 取值: analyze / cast / sets / scenes / prompts / preview / video
var (
	GenerationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinescript",
		Name:      "generation_requests_total",
		Help:      "Total generation calls issued to the generative backend.",
	}, []string{"action"})

	GenerationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinescript",
		Name:      "generation_failures_total",
		Help:      "Generation calls that ended in an error.",
	}, []string{"action"})

	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cinescript",
		Name:      "generation_duration_seconds",
		Help:      "Wall time of generation calls.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"action"})

	VideoJobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cinescript",
		Name:      "video_jobs_active",
		Help:      "Video jobs currently in the generating state.",
	})

	ProjectSaves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cinescript",
		Name:      "project_saves_total",
		Help:      "Synchronous project document persists.",
	})
)
