package core

import (
	"embed"

	"github.com/jacksonlee411/grc-console/modules/core/infrastructure/objects"
	"github.com/jacksonlee411/grc-console/modules/core/presentation/controllers"
	"github.com/jacksonlee411/grc-console/pkg/application"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
)

//go:embed presentation/locales/*.json
var LocaleFiles embed.FS

// ModuleOptions carries the shared infrastructure the other modules resolve
// through app.Service.
type ModuleOptions struct {
	Objects *objects.Store
	Query   *queryapi.HTTPClient
	// Upstream is pinged by /health; a failure marks the console down.
	Upstream *objects.Client
	// Cache is pinged by /health when set; a failure only degrades it.
	Cache *objects.RedisBackend
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{
		options: opts,
	}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	app.RegisterLocaleFiles(&LocaleFiles)

	if m.options.Objects != nil {
		app.RegisterServices(m.options.Objects)
	}
	if m.options.Query != nil {
		app.RegisterServices(m.options.Query)
	}

	var checks []controllers.HealthCheck
	if m.options.Upstream != nil {
		checks = append(checks, controllers.HealthCheck{
			Name:     "upstream",
			Critical: true,
			Ping:     m.options.Upstream.Ping,
		})
	}
	if m.options.Cache != nil {
		checks = append(checks, controllers.HealthCheck{
			Name: "cache",
			Ping: m.options.Cache.Ping,
		})
	}

	app.RegisterControllers(
		controllers.NewHealthController(checks...),
	)
	return nil
}

func (m *Module) Name() string {
	return "core"
}
