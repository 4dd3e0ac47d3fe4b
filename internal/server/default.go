package server

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/jacksonlee411/grc-console/modules/core/presentation/controllers"
	"github.com/jacksonlee411/grc-console/pkg/application"
	"github.com/jacksonlee411/grc-console/pkg/configuration"
	"github.com/jacksonlee411/grc-console/pkg/middleware"
	"github.com/jacksonlee411/grc-console/pkg/routing"
	"github.com/jacksonlee411/grc-console/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Entrypoint    string
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	allowlistPath := routing.DefaultAllowlistPath()
	rules, err := routing.LoadAllowlist(allowlistPath, options.Entrypoint)
	if err != nil {
		options.Logger.WithError(err).Warn("route allowlist unavailable, classifying by path prefix")
		rules = nil
	}

	loggerOpts := middleware.DefaultLoggerOptions()
	loggerOpts.Entrypoint = options.Entrypoint
	loggerOpts.AllowlistPath = allowlistPath
	if conf.RealIPHeader != "" {
		loggerOpts.RealIPHeader = conf.RealIPHeader
	}

	guarded := []string{controllers.HealthPath}
	if conf.Prometheus.Enabled {
		guarded = append(guarded, conf.Prometheus.Path)
	}
	guardOpts, err := middleware.NewOpsGuardOptions(conf, rules, guarded...)
	if err != nil {
		return nil, err
	}

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger, loggerOpts),
		middleware.TracedMiddleware("opsGuard"),
		middleware.OpsGuard(guardOpts),
	}

	if conf.RateLimit.Enabled {
		var store limiter.Store
		switch conf.RateLimit.Storage {
		case "redis":
			store, err = middleware.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
				store = middleware.NewMemoryStore()
			}
		default:
			store = middleware.NewMemoryStore()
		}
		middlewares = append(middlewares,
			middleware.TracedMiddleware("rateLimit"),
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: conf.RateLimit.GlobalRPS,
				Store:             store,
				RealIPHeader:      conf.RealIPHeader,
			}),
		)
	}

	middlewares = append(middlewares,
		middleware.TracedMiddleware("localizer"),
		middleware.ProvideLocalizer(app),
	)
	if conf.Upstream.ForwardAuth {
		middlewares = append(middlewares,
			middleware.TracedMiddleware("forwardAuth"),
			middleware.ForwardAuth(),
		)
	}
	app.RegisterMiddleware(middlewares...)

	handlerOpts := controllers.ErrorHandlersOptions{
		Entrypoint:    options.Entrypoint,
		AllowlistPath: allowlistPath,
	}
	serverInstance := server.NewHTTPServer(
		app,
		controllers.NotFound(handlerOpts),
		controllers.MethodNotAllowed(handlerOpts),
	)
	serverInstance.AllowedOrigins = conf.CORSOrigins()
	return serverInstance, nil
}
