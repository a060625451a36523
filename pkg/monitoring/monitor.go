package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// ModelCallCounter 每次模型调用尝试，按结果分类
	ModelCallCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_call_attempts_total",
			Help: "Total number of model call attempts by outcome",
		},
		[]string{"model", "outcome"},
	)

	ModelCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_call_duration_seconds",
			Help:    "Duration of a model invocation including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	ExchangeCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simulator_exchanges_total",
			Help: "Total number of question/answer exchanges appended",
		},
	)

	HistoryWriteErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simulator_history_write_errors_total",
			Help: "Total number of failed history file appends",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ModelCallCounter)
	prometheus.MustRegister(ModelCallDuration)
	prometheus.MustRegister(ExchangeCounter)
	prometheus.MustRegister(HistoryWriteErrors)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
