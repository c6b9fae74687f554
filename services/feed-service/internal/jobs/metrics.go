package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики очередей для Prometheus
var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_jobs_total",
		Help: "Количество задач по очередям и статусам",
	}, []string{"queue", "status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_job_duration_seconds",
		Help:    "Длительность выполнения задач",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"queue"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feed_queue_depth",
		Help: "Количество задач, ожидающих выполнения",
	}, []string{"queue"})

	jobProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feed_job_progress_percent",
		Help: "Прогресс текущей задачи очереди",
	}, []string{"queue"})
)
