// Package metrics exposes the console's grc_* counters in the Prometheus
// text format.
package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/grc-console/pkg/application"
)

const DefaultPath = "/debug/prometheus"

type Option func(*PrometheusController)

// WithRegistry serves reg instead of the process-wide default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *PrometheusController) {
		c.gatherer = reg
		c.registerer = reg
	}
}

type PrometheusController struct {
	path       string
	gatherer   prometheus.Gatherer
	registerer prometheus.Registerer
}

func NewPrometheusController(path string, opts ...Option) application.Controller {
	if path == "" {
		path = DefaultPath
	}
	c := &PrometheusController{
		path:       path,
		gatherer:   prometheus.DefaultGatherer,
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PrometheusController) Key() string {
	return c.path
}

// Register serves the scrape endpoint. A collector that fails to gather is
// logged and skipped so the remaining metrics are still served.
func (c *PrometheusController) Register(r *mux.Router) {
	h := promhttp.InstrumentMetricHandler(c.registerer, promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{
		ErrorLog:          logrus.WithField("component", "metrics"),
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
	r.Handle(c.path, h).Methods(http.MethodGet)
}
