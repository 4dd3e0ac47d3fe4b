package viewmodels

import (
	"slices"
	"sync"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
)

// TreeItem backs one row of an object tree.
type TreeItem struct {
	instance *instance.Instance

	mu              sync.RWMutex
	selectedColumns []string
	mandatory       []string
	expanded        bool
	childModels     []string
}

func NewTreeItem(inst *instance.Instance, selectedColumns, mandatory []string) *TreeItem {
	return &TreeItem{
		instance:        inst,
		selectedColumns: slices.Clone(selectedColumns),
		mandatory:       slices.Clone(mandatory),
	}
}

func (t *TreeItem) Instance() *instance.Instance {
	return t.instance
}

func (t *TreeItem) SelectedColumns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.selectedColumns)
}

func (t *TreeItem) SetSelectedColumns(columns []string) {
	t.mu.Lock()
	t.selectedColumns = slices.Clone(columns)
	t.mu.Unlock()
}

func (t *TreeItem) Mandatory() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.mandatory)
}

func (t *TreeItem) Expanded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.expanded
}

func (t *TreeItem) SetExpanded(v bool) {
	t.mu.Lock()
	t.expanded = v
	t.mu.Unlock()
}

// SelectableSize is the width class of the row's select column:
// 1 for fewer than 4 columns, 2 for fewer than 7, 3 otherwise.
func (t *TreeItem) SelectableSize() int {
	n := len(t.SelectedColumns())
	switch {
	case n < 4:
		return 1
	case n < 7:
		return 2
	default:
		return 3
	}
}

func (t *TreeItem) ChildModels() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.childModels)
}

// SetChildModels records the model types picked for the row's sub-tree.
func (t *TreeItem) SetChildModels(models []string) {
	t.mu.Lock()
	t.childModels = slices.Clone(models)
	t.mu.Unlock()
}

type TreeItemState struct {
	Type            string   `json:"type"`
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	IsSnapshot      bool     `json:"isSnapshot"`
	WorkflowState   string   `json:"workflowState,omitempty"`
	SelectedColumns []string `json:"selectedColumns"`
	Mandatory       []string `json:"mandatory"`
	Expanded        bool     `json:"expanded"`
	SelectableSize  int      `json:"selectableSize"`
	ChildModels     []string `json:"childModels"`
}

func (t *TreeItem) State() TreeItemState {
	s := TreeItemState{
		SelectedColumns: t.SelectedColumns(),
		Mandatory:       t.Mandatory(),
		Expanded:        t.Expanded(),
		SelectableSize:  t.SelectableSize(),
		ChildModels:     t.ChildModels(),
	}
	if t.instance != nil {
		s.Type = t.instance.Type
		s.ID = t.instance.ID
		s.Title = t.instance.DisplayName()
		s.IsSnapshot = t.instance.IsSnapshot()
		s.WorkflowState = t.instance.WorkflowState
	}
	if s.SelectedColumns == nil {
		s.SelectedColumns = []string{}
	}
	if s.Mandatory == nil {
		s.Mandatory = []string{}
	}
	if s.ChildModels == nil {
		s.ChildModels = []string{}
	}
	return s
}
