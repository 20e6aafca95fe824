// metrics.go — Prometheus метрики бота.
// HTTP-метрики ops-сервера: fk_http_requests_total,
// fk_http_request_duration_seconds. Бизнес-метрики (fk_ingests_total,
// fk_events_total, fk_catalog_*) экспортируются для обновления
// из сервисного слоя и транспорта.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов к ops-серверу.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fk_http_requests_total",
			Help: "Общее количество HTTP-запросов к ops-серверу",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fk_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к ops-серверу в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// IngestsTotal — количество приёмов файлов по результату
	// (success, duplicate, transport_error, write_error, catalog_error).
	IngestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fk_ingests_total",
			Help: "Общее количество приёмов файлов",
		},
		[]string{"result"},
	)

	// EventsTotal — количество обработанных входящих событий по виду.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fk_events_total",
			Help: "Общее количество входящих событий транспорта",
		},
		[]string{"kind"},
	)

	// CatalogUsers — текущее количество зарегистрированных пользователей.
	CatalogUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fk_catalog_users",
			Help: "Количество зарегистрированных пользователей в каталоге",
		},
	)

	// CatalogFiles — текущее количество записей о файлах по категориям.
	CatalogFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fk_catalog_files",
			Help: "Количество записей о файлах в каталоге",
		},
		[]string{"category"},
	)
)

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (mw *metricsResponseWriter) WriteHeader(code int) {
	mw.statusCode = code
	mw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ
// к оригинальному ResponseWriter.
func (mw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mw.ResponseWriter
}

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus
// метрик: количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			httpRequestsTotal.WithLabelValues(
				r.Method,
				r.URL.Path,
				strconv.Itoa(wrapped.statusCode),
			).Inc()
			httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).
				Observe(time.Since(start).Seconds())
		})
	}
}
