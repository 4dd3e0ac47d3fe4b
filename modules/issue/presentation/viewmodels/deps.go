package viewmodels

import (
	"context"

	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/pkg/eventbus"
	"github.com/jacksonlee411/grc-console/pkg/flash"
	"github.com/jacksonlee411/grc-console/pkg/pagination"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
)

// ObjectStore reifies stubs from the local cache and refreshes them from the server.
type ObjectStore interface {
	Reify(ctx context.Context, stub instance.Stub) *instance.Instance
	Refresh(ctx context.Context, inst *instance.Instance) (*instance.Instance, error)
}

// Unmapper removes the relationship between an issue and its target.
type Unmapper interface {
	Unmap(ctx context.Context, issue, target *instance.Instance) error
}

type Navigator interface {
	Navigate(url string)
}

type NavigatorFunc func(url string)

func (f NavigatorFunc) Navigate(url string) { f(url) }

// PageInstanceProvider reports the object the current page is about.
type PageInstanceProvider interface {
	PageInstance() *instance.Instance
}

type PageInstanceFunc func() *instance.Instance

func (f PageInstanceFunc) PageInstance() *instance.Instance { return f() }

// Deps are the collaborators shared by the unmap view-models. Notifier,
// Navigator, PageInstance, Events, Localizer and Logger are optional.
type Deps struct {
	Query        queryapi.Client
	Store        ObjectStore
	Unmapper     Unmapper
	Notifier     flash.Notifier
	Navigator    Navigator
	PageInstance PageInstanceProvider
	Events       eventbus.EventBus
	Localizer    *i18n.Localizer
	Logger       *logrus.Logger

	// Paging seeds the initial page; PageSizeSelect defaults to UnmapPageSizeSelect.
	Paging pagination.Options
}

// ModalClosed is published when the unmap modal goes from open to closed.
type ModalClosed struct {
	Issue  *instance.Instance
	Target *instance.Instance
}

// UnmapIssue asks the host to unmap the issue without the snapshot workflow.
type UnmapIssue struct {
	Issue  *instance.Instance
	Target *instance.Instance
}

type ModalState struct {
	Open  bool   `json:"open"`
	Title string `json:"title"`
}
