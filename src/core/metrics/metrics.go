package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// UpstreamAttemptsTotal 上游调用次数，按结果分类
	UpstreamAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indicator",
		Subsystem: "analysis",
		Name:      "upstream_attempts_total",
		Help:      "Upstream generation attempts, labeled by provider and outcome (ok, transient, timeout, fatal, canceled).",
	}, []string{"provider", "outcome"})

	// UpstreamDurationSeconds 单次上游调用耗时
	UpstreamDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indicator",
		Subsystem: "analysis",
		Name:      "upstream_duration_seconds",
		Help:      "Duration of a single upstream generation attempt.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 120},
	}, []string{"provider"})

	// RetriesTotal 重试次数
	RetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indicator",
		Subsystem: "analysis",
		Name:      "retries_total",
		Help:      "Retries scheduled after a retryable upstream failure.",
	}, []string{"provider"})

	// PipelineResultsTotal 流水线最终结果，按终态和错误类型分类
	PipelineResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indicator",
		Subsystem: "analysis",
		Name:      "pipeline_results_total",
		Help:      "Finished pipeline invocations, labeled by terminal state and error kind.",
	}, []string{"state", "kind"})

	// NormalizedImagesTotal 归一化图片数量，resized 表示是否缩放
	NormalizedImagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indicator",
		Subsystem: "image",
		Name:      "normalized_total",
		Help:      "Images normalized before upload, labeled by whether they were downscaled.",
	}, []string{"resized"})

	// LanguageMismatchTotal 点评语言与请求语言不一致的次数
	LanguageMismatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indicator",
		Subsystem: "analysis",
		Name:      "language_mismatch_total",
		Help:      "Results whose comment language did not match the requested language.",
	}, []string{"requested", "detected"})

	// ResponseAdjustmentsTotal 后处理对上游结果做出的修正
	ResponseAdjustmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indicator",
		Subsystem: "analysis",
		Name:      "response_adjustments_total",
		Help:      "Post-processing adjustments applied to upstream payloads (rating_clamped, keywords_truncated, tags_truncated, dimensions_truncated, dimension_clamped).",
	}, []string{"adjustment"})
)

// Register 注册到默认的Prometheus registry，可重复调用
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			UpstreamAttemptsTotal,
			UpstreamDurationSeconds,
			RetriesTotal,
			PipelineResultsTotal,
			NormalizedImagesTotal,
			LanguageMismatchTotal,
			ResponseAdjustmentsTotal,
		)
	})
}
