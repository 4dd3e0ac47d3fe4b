package instance

import (
	"fmt"
	"slices"
	"strings"
)

const (
	TypeSnapshot   = "Snapshot"
	TypeAudit      = "Audit"
	TypeIssue      = "Issue"
	TypeAssessment = "Assessment"
	TypePerson     = "Person"
	TypeWorkflow   = "Workflow"

	TypeRelationship = "Relationship"

	TypeCycle                    = "Cycle"
	TypeCycleTaskGroup           = "CycleTaskGroup"
	TypeCycleTaskGroupObjectTask = "CycleTaskGroupObjectTask"
)

// Stub is a lightweight reference to an object that may not be loaded yet.
type Stub struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Href string `json:"href,omitempty"`
}

func (s Stub) Key() string {
	return Key(s.Type, s.ID)
}

// Instance is a domain object as served by the GGRC object API. Components
// hold *Instance references owned by the page; pointer identity is meaningful.
type Instance struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	ViewLink string `json:"viewLink,omitempty"`
	SelfLink string `json:"selfLink,omitempty"`

	Archived      bool   `json:"archived,omitempty"`
	IsRevision    bool   `json:"isRevision,omitempty"`
	Snapshot      *Stub  `json:"snapshot,omitempty"`
	WorkflowState string `json:"workflow_state,omitempty"`

	ChildType string `json:"child_type,omitempty"`
	ChildID   int64  `json:"child_id,omitempty"`

	Audit               *Stub  `json:"audit,omitempty"`
	RelatedSources      []Stub `json:"related_sources,omitempty"`
	RelatedDestinations []Stub `json:"related_destinations,omitempty"`

	AllowUnmapFromAudit bool `json:"allow_unmap_from_audit,omitempty"`
}

func Key(typ string, id int64) string {
	return fmt.Sprintf("%s:%d", typ, id)
}

func (i *Instance) Key() string {
	return Key(i.Type, i.ID)
}

func (i *Instance) Stub() Stub {
	return Stub{ID: i.ID, Type: i.Type, Href: i.SelfLink}
}

// Clone returns a deep copy that shares no slices or stubs with i.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	out := *i
	out.Snapshot = cloneStub(i.Snapshot)
	out.Audit = cloneStub(i.Audit)
	out.RelatedSources = slices.Clone(i.RelatedSources)
	out.RelatedDestinations = slices.Clone(i.RelatedDestinations)
	return &out
}

func cloneStub(s *Stub) *Stub {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// IsSnapshot reports whether the instance is, or wraps, a snapshot.
func (i *Instance) IsSnapshot() bool {
	if i == nil {
		return false
	}
	return i.Type == TypeSnapshot || i.Snapshot != nil || i.IsRevision
}

// RelatedIDs returns the relationship ids of sources followed by
// destinations, without duplicates, in first-seen order.
func (i *Instance) RelatedIDs() []int64 {
	if i == nil {
		return nil
	}
	seen := make(map[int64]struct{}, len(i.RelatedSources)+len(i.RelatedDestinations))
	out := make([]int64, 0, len(i.RelatedSources)+len(i.RelatedDestinations))
	for _, list := range [][]Stub{i.RelatedSources, i.RelatedDestinations} {
		for _, s := range list {
			if _, ok := seen[s.ID]; ok {
				continue
			}
			seen[s.ID] = struct{}{}
			out = append(out, s.ID)
		}
	}
	return out
}

// SharedRelationshipIDs intersects the related ids of a and b, keeping a's order.
func SharedRelationshipIDs(a, b *Instance) []int64 {
	other := make(map[int64]struct{})
	for _, id := range b.RelatedIDs() {
		other[id] = struct{}{}
	}
	out := make([]int64, 0, 1)
	for _, id := range a.RelatedIDs() {
		if _, ok := other[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// DisplayName returns the best available label.
func (i *Instance) DisplayName() string {
	switch {
	case i.Title != "":
		return i.Title
	case i.Name != "":
		return i.Name
	case i.Email != "":
		return i.Email
	default:
		return Key(i.Type, i.ID)
	}
}

var rootCollections = map[string]string{
	"AccessGroup":                "access_groups",
	TypeAssessment:               "assessments",
	"AssessmentTemplate":         "assessment_templates",
	TypeAudit:                    "audits",
	"Contract":                   "contracts",
	"Control":                    "controls",
	TypeCycle:                    "cycles",
	TypeCycleTaskGroup:           "cycle_task_groups",
	TypeCycleTaskGroupObjectTask: "cycle_task_group_object_tasks",
	"DataAsset":                  "data_assets",
	"Facility":                   "facilities",
	TypeIssue:                    "issues",
	"Market":                     "markets",
	"Objective":                  "objectives",
	"OrgGroup":                   "org_groups",
	TypePerson:                   "people",
	"Policy":                     "policies",
	"Process":                    "processes",
	"Product":                    "products",
	"Program":                    "programs",
	"Project":                    "projects",
	"Regulation":                 "regulations",
	TypeRelationship:             "relationships",
	"Risk":                       "risks",
	"Section":                    "sections",
	TypeSnapshot:                 "snapshots",
	"Standard":                   "standards",
	"System":                     "systems",
	"Threat":                     "threats",
	"Vendor":                     "vendors",
	TypeWorkflow:                 "workflows",
}

// RootCollection returns the URL collection segment of a model type.
func RootCollection(typ string) string {
	if c, ok := rootCollections[typ]; ok {
		return c
	}
	var b strings.Builder
	for i, r := range typ {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	name := strings.ToLower(b.String())
	switch {
	case strings.HasSuffix(name, "y"):
		return strings.TrimSuffix(name, "y") + "ies"
	case strings.HasSuffix(name, "s"):
		return name + "es"
	default:
		return name + "s"
	}
}

// URL returns the page of the object; snapshots open their child object.
func (i *Instance) URL() string {
	typ, id := i.Type, i.ID
	if i.Type == TypeSnapshot && i.ChildType != "" {
		typ, id = i.ChildType, i.ChildID
	}
	return fmt.Sprintf("/%s/%d", RootCollection(typ), id)
}
