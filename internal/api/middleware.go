package rewards

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_http_requests_total",
			Help: "Запросы к API наград по маршруту, методу и статусу",
		},
		[]string{"route", "method", "code"},
	)

	httpFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_http_failures_total",
			Help: "Ответы API наград со статусом 4xx и 5xx",
		},
		[]string{"route", "code"},
	)

	httpLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewards_http_latency_seconds",
			Help:    "Время обработки запроса",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"route", "method"},
	)
)

// запоминаем статус ответа
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// шаблон маршрута вместо пути: id аккаунтов не попадают в метки
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Метрики и журнал запросов. Все ответы API в JSON
func MiddlewareLog(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			w.Header().Set("Content-Type", "application/json")
			rec := &statusRecorder{w, http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			route := routeTemplate(r)
			code := strconv.Itoa(rec.status)
			httpRequests.WithLabelValues(route, r.Method, code).Inc()
			httpLatency.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
			if rec.status >= http.StatusBadRequest {
				httpFailures.WithLabelValues(route, code).Inc()
			}
			if rec.status >= http.StatusInternalServerError {
				logger.Warn("request failed",
					zap.String("method", r.Method),
					zap.String("route", route),
					zap.Int("status", rec.status),
					zap.Duration("elapsed", elapsed),
				)
			}
		})
	}
}
