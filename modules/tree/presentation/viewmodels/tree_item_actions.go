package viewmodels

import (
	"slices"
	"sync"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/pkg/eventbus"
)

var (
	forbiddenEditTypes = []string{instance.TypeCycle, instance.TypeCycleTaskGroup}
	forbiddenMapTypes  = []string{instance.TypeWorkflow}

	reducedIconPages = []string{instance.TypeWorkflow}
	reducedIconTypes = []string{
		instance.TypeCycle,
		instance.TypeCycleTaskGroup,
		instance.TypeCycleTaskGroupObjectTask,
	}
)

// Preview asks the page to open the instance in the info pane.
type Preview struct {
	Instance *instance.Instance
}

// Expand asks the tree to load and show the children of the instance.
type Expand struct {
	Instance *instance.Instance
}

// ChildTreeTypes asks the tree to let the user pick the child model types.
type ChildTreeTypes struct {
	Instance *instance.Instance
}

// TreeItemActions backs the action menu shown on every tree row.
type TreeItemActions struct {
	instance *instance.Instance
	events   eventbus.EventBus

	mu        sync.RWMutex
	deepLimit int
	canExpand bool
	expanded  bool
	activated bool
}

func NewTreeItemActions(inst *instance.Instance, deepLimit int, events eventbus.EventBus) *TreeItemActions {
	return &TreeItemActions{
		instance:  inst,
		events:    events,
		deepLimit: deepLimit,
	}
}

func (a *TreeItemActions) Instance() *instance.Instance {
	return a.instance
}

func (a *TreeItemActions) DeepLimit() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.deepLimit
}

func (a *TreeItemActions) CanExpand() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.canExpand
}

func (a *TreeItemActions) Expanded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.expanded
}

func (a *TreeItemActions) SetExpanded(v bool) {
	a.mu.Lock()
	a.expanded = v
	a.mu.Unlock()
}

func (a *TreeItemActions) Activated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activated
}

func (a *TreeItemActions) ExpandIcon() string {
	if a.Expanded() {
		return "compress"
	}
	return "expand"
}

func (a *TreeItemActions) ExpanderTitle() string {
	if a.Expanded() {
		return "Collapse tree"
	}
	return "Expand tree"
}

func (a *TreeItemActions) IsSnapshot() bool {
	return a.instance.IsSnapshot()
}

// IsAllowedToEdit is false for snapshots, archived objects and cycle objects.
func (a *TreeItemActions) IsAllowedToEdit() bool {
	if a.instance == nil {
		return false
	}
	return !(a.IsSnapshot() || slices.Contains(forbiddenEditTypes, a.instance.Type) || a.instance.Archived)
}

func (a *TreeItemActions) IsAllowedToMap() bool {
	return a.IsAllowedToEdit() && !slices.Contains(forbiddenMapTypes, a.instance.Type)
}

// ShowReducedIcon reports whether the row shows the reduced action icon: cycle
// objects listed on a workflow page.
func (a *TreeItemActions) ShowReducedIcon(pageType string) bool {
	if a.instance == nil {
		return false
	}
	return slices.Contains(reducedIconPages, pageType) && slices.Contains(reducedIconTypes, a.instance.Type)
}

// Inserted places the row under parentDepth nested sub-trees.
func (a *TreeItemActions) Inserted(parentDepth int) {
	a.mu.Lock()
	a.canExpand = parentDepth < a.deepLimit
	a.mu.Unlock()
}

// Activate renders the menu content on first hover; later calls do nothing.
func (a *TreeItemActions) Activate() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activated {
		return false
	}
	a.activated = true
	return true
}

func (a *TreeItemActions) MaximizeObject() {
	a.publish(&Preview{Instance: a.instance})
}

func (a *TreeItemActions) Expand() {
	a.publish(&Expand{Instance: a.instance})
}

func (a *TreeItemActions) SubTreeTypes() {
	a.publish(&ChildTreeTypes{Instance: a.instance})
}

func (a *TreeItemActions) publish(event interface{}) {
	if a.events != nil {
		a.events.Publish(event)
	}
}

type TreeItemActionsState struct {
	DeepLimit       int    `json:"deepLimit"`
	CanExpand       bool   `json:"canExpand"`
	Expanded        bool   `json:"expanded"`
	Activated       bool   `json:"activated"`
	ExpandIcon      string `json:"expandIcon"`
	ExpanderTitle   string `json:"expanderTitle"`
	IsSnapshot      bool   `json:"isSnapshot"`
	IsAllowedToEdit bool   `json:"isAllowedToEdit"`
	IsAllowedToMap  bool   `json:"isAllowedToMap"`
	ShowReducedIcon bool   `json:"showReducedIcon"`
}

func (a *TreeItemActions) State(pageType string) TreeItemActionsState {
	return TreeItemActionsState{
		DeepLimit:       a.DeepLimit(),
		CanExpand:       a.CanExpand(),
		Expanded:        a.Expanded(),
		Activated:       a.Activated(),
		ExpandIcon:      a.ExpandIcon(),
		ExpanderTitle:   a.ExpanderTitle(),
		IsSnapshot:      a.IsSnapshot(),
		IsAllowedToEdit: a.IsAllowedToEdit(),
		IsAllowedToMap:  a.IsAllowedToMap(),
		ShowReducedIcon: a.ShowReducedIcon(pageType),
	}
}
