package modules

import (
	"github.com/jacksonlee411/grc-console/modules/issue"
	"github.com/jacksonlee411/grc-console/modules/person"
	"github.com/jacksonlee411/grc-console/modules/tree"
	"github.com/jacksonlee411/grc-console/pkg/application"
	"github.com/jacksonlee411/grc-console/pkg/configuration"
)

// FeatureModules depend on the services the core module registers, so core
// must be loaded ahead of them.
func FeatureModules(conf *configuration.Configuration) []application.Module {
	return []application.Module{
		issue.NewModule(&issue.ModuleOptions{PageSizes: conf.Unmap.PageSizes}),
		tree.NewModule(),
		person.NewModule(),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
