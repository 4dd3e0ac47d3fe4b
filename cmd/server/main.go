package main

import (
	"context"
	"log"
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	internalserver "github.com/jacksonlee411/grc-console/internal/server"
	"github.com/jacksonlee411/grc-console/modules"
	"github.com/jacksonlee411/grc-console/modules/core"
	"github.com/jacksonlee411/grc-console/modules/core/infrastructure/objects"
	"github.com/jacksonlee411/grc-console/pkg/application"
	"github.com/jacksonlee411/grc-console/pkg/configuration"
	"github.com/jacksonlee411/grc-console/pkg/eventbus"
	"github.com/jacksonlee411/grc-console/pkg/intl"
	"github.com/jacksonlee411/grc-console/pkg/logging"
	"github.com/jacksonlee411/grc-console/pkg/metrics"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	upstream := objects.NewClient(objects.ClientOptions{
		BaseURL:   conf.Upstream.BaseURL,
		APIPrefix: conf.Upstream.APIPrefix,
		Timeout:   conf.Upstream.Timeout,
		AuthToken: conf.Upstream.AuthToken,
		Logger:    logger,
	})
	cache := objectCache(conf, logger)
	var backend objects.Backend
	if cache != nil {
		backend = cache
	}
	query := queryapi.NewHTTPClient(queryapi.HTTPClientOptions{
		BaseURL:   conf.Upstream.BaseURL,
		QueryPath: conf.Upstream.QueryPath,
		Timeout:   conf.Upstream.Timeout,
		AuthToken: conf.Upstream.AuthToken,
		Logger:    logger,
	})

	app := application.New(&application.ApplicationOptions{
		Bundle:   intl.LoadBundle(),
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	coreModule := core.NewModule(&core.ModuleOptions{
		Objects: objects.NewStore(objects.StoreOptions{
			API:     upstream,
			Backend: backend,
			Logger:  logger,
			Size:    conf.ObjectCache.Size,
			TTL:     conf.ObjectCache.TTL,
		}),
		Query:    query,
		Upstream: upstream,
		Cache:    cache,
	})
	if err := modules.Load(app, append([]application.Module{coreModule}, modules.FeatureModules(conf)...)...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	serverInstance, err := internalserver.Default(&internalserver.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Entrypoint:    "server",
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	log.Printf("Listening on: %s\n", conf.Origin)
	if err := serverInstance.Start(conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// objectCache returns the shared redis cache, or nil when the in-process
// identity map is the only cache.
func objectCache(conf *configuration.Configuration, logger *logrus.Logger) *objects.RedisBackend {
	if conf.ObjectCache.Storage != "redis" {
		return nil
	}
	cache, err := objects.NewRedisBackendFromURL(conf.ObjectCache.RedisURL, conf.ObjectCache.TTL)
	if err != nil {
		logger.WithError(err).Warn("Failed to create Redis object cache, falling back to memory")
		return nil
	}
	return cache
}
