package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	stageExtract = "extract"
	stageFind    = "find"
	stageDetails = "details"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipebot_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	detailFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipebot_detail_fetch_failures_total",
			Help: "Total number of recipe detail lookups dropped after a failure",
		},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipebot_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
)

func observeStage(stage string, start time.Time) {
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
