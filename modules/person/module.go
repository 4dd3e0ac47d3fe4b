package person

import (
	"embed"

	"github.com/jacksonlee411/grc-console/modules/person/presentation/controllers"
	"github.com/jacksonlee411/grc-console/modules/person/services"
	"github.com/jacksonlee411/grc-console/pkg/application"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
)

//go:embed presentation/locales/*.json
var localeFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.RegisterLocaleFiles(&localeFiles)

	query := app.Service(queryapi.HTTPClient{}).(*queryapi.HTTPClient)
	app.RegisterServices(
		services.NewPersonService(query, app.Logger()),
	)

	app.RegisterControllers(
		controllers.NewPersonAPIController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "person"
}
