package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PollCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poll_cycles_total",
		Help: "Количество циклов опроса провайдера по результату",
	}, []string{"result"})

	PollCycleSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "poll_cycle_seconds",
		Help:    "Длительность цикла опроса провайдера",
		Buckets: prometheus.DefBuckets,
	})

	FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_errors_total",
		Help: "Ошибки выгрузки категорий по типу",
	}, []string{"kind"})

	PoolStories = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pool_stories",
		Help: "Размер канонического пула новостей после последнего цикла",
	})

	UsersRefreshed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "users_refreshed_total",
		Help: "Количество обновлений фильтров пользователей по результату",
	}, []string{"result"})

	SharedStoriesReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shared_stories_reaped_total",
		Help: "Количество удалённых устаревших расшаренных новостей",
	})

	RefreshJobsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refresh_jobs_received_total",
		Help: "Количество принятых сообщений REFRESH_STORIES",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PollCycles,
		PollCycleSeconds,
		FetchErrors,
		PoolStories,
		UsersRefreshed,
		SharedStoriesReaped,
		RefreshJobsReceived,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
