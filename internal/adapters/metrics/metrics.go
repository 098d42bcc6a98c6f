package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketwin"

// Metrics holds the Prometheus collectors for metered usage and the HTTP API.
type Metrics struct {
	Usage              *prometheus.CounterVec
	Denials            *prometheus.CounterVec
	AccountingFailures *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

var _ ports.Metrics = (*Metrics)(nil)

// New registers every collector on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Usage: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_recorded_total",
				Help:      "Metered feature units recorded in the usage ledger",
			},
			[]string{"plan", "feature"},
		),
		Denials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entitlement_denials_total",
				Help:      "Feature requests refused by the entitlement evaluator",
			},
			[]string{"feature", "code"},
		),
		AccountingFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_accounting_failures_total",
				Help:      "Executed features whose usage could not be recorded",
			},
			[]string{"feature"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		gatherer: reg,
	}
}

func (m *Metrics) UsageRecorded(plan domain.PlanID, feature domain.Feature) {
	m.Usage.WithLabelValues(string(plan), string(feature)).Inc()
}

func (m *Metrics) Denied(feature domain.Feature, code domain.DenialCode) {
	m.Denials.WithLabelValues(string(feature), string(code)).Inc()
}

func (m *Metrics) AccountingFailed(feature domain.Feature) {
	m.AccountingFailures.WithLabelValues(string(feature)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			path := c.Path()

			m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())

			return nil
		}
	}
}
