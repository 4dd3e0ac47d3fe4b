package server

import (
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/grc-console/modules"
	"github.com/jacksonlee411/grc-console/modules/core"
	"github.com/jacksonlee411/grc-console/modules/core/infrastructure/objects"
	"github.com/jacksonlee411/grc-console/pkg/application"
	"github.com/jacksonlee411/grc-console/pkg/configuration"
	"github.com/jacksonlee411/grc-console/pkg/eventbus"
	"github.com/jacksonlee411/grc-console/pkg/intl"
	"github.com/jacksonlee411/grc-console/pkg/metrics"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
	"github.com/jacksonlee411/grc-console/pkg/server"
)

// Offline builds the full console server against upstreamURL without reading
// the environment. Route gates and smoke checks use it.
func Offline(conf *configuration.Configuration, upstreamURL string) (*server.HTTPServer, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	upstream := objects.NewClient(objects.ClientOptions{BaseURL: upstreamURL, Logger: logger})
	app := application.New(&application.ApplicationOptions{
		Bundle:   intl.LoadBundle(),
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	coreModule := core.NewModule(&core.ModuleOptions{
		Objects:  objects.NewStore(objects.StoreOptions{API: upstream, Logger: logger}),
		Query:    queryapi.NewHTTPClient(queryapi.HTTPClientOptions{BaseURL: upstreamURL, Logger: logger}),
		Upstream: upstream,
	})
	if err := modules.Load(app, append([]application.Module{coreModule}, modules.FeatureModules(conf)...)...); err != nil {
		return nil, err
	}
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}
	return Default(&DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Entrypoint:    "server",
	})
}
