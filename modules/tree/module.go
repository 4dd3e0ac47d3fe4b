package tree

import (
	"github.com/jacksonlee411/grc-console/modules/tree/presentation/controllers"
	"github.com/jacksonlee411/grc-console/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.RegisterControllers(
		controllers.NewTreeController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "tree"
}
