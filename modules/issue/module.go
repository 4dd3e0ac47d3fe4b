package issue

import (
	"github.com/jacksonlee411/grc-console/modules/core/infrastructure/objects"
	"github.com/jacksonlee411/grc-console/modules/issue/presentation/controllers"
	"github.com/jacksonlee411/grc-console/modules/issue/presentation/locales"
	"github.com/jacksonlee411/grc-console/modules/issue/services"
	"github.com/jacksonlee411/grc-console/pkg/application"
)

type ModuleOptions struct {
	// PageSizes are the page size choices of the related objects list.
	PageSizes []int
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

// Register expects the core module to have registered the object store and
// the query client.
func (m *Module) Register(app application.Application) error {
	app.RegisterLocaleFiles(&locales.FS)

	store := app.Service(objects.Store{}).(*objects.Store)
	app.RegisterServices(
		services.NewUnmapService(store, app.Logger()),
	)

	app.RegisterControllers(
		controllers.NewUnmapController(app, m.options.PageSizes...),
	)
	return nil
}

func (m *Module) Name() string {
	return "issue"
}
