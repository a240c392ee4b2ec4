package entity

import "github.com/nimbusvm/clusterconf/pkg/confutil"

// NodeGroup partitions the cluster's nodes into failure/administrative
// domains, each with its own ndparams/ipolicy override layered on top of
// the cluster's defaults.
type NodeGroup struct {
	TimestampedObject
	Taggable

	UUID string `json:"uuid"`
	Name string `json:"name"`

	NDParams map[string]string `json:"ndparams,omitempty"`
	IPolicy  Dict               `json:"ipolicy,omitempty"`
	HVParams map[string]map[string]string `json:"hvparams,omitempty"`
	DiskParams map[string]map[string]string `json:"diskparams,omitempty"`

	AllocPolicy string `json:"alloc_policy,omitempty"`

	// Members lists node UUIDs belonging to this group. It is NOT part of
	// the persisted dict — it is rebuilt from Node.Group on every load by
	// the graph assembler, matching the original's members_uuid being a
	// derived, not stored, relationship.
	Members []string `json:"-"`
}

// GetUUID returns the node group's UUID.
func (g *NodeGroup) GetUUID() string { return g.UUID }

// ToDict serializes the node group to its canonical dict form.
func (g *NodeGroup) ToDict() (Dict, error) { return toDict(g) }

// FromDict populates the node group from its canonical dict form.
func (g *NodeGroup) FromDict(d Dict) error { return fromDict(d, g) }

// NewNodeGroup constructs a NodeGroup with a freshly minted UUID.
func NewNodeGroup(name string, now float64) *NodeGroup {
	g := &NodeGroup{
		UUID:        confutil.NewUUID(),
		Name:        name,
		AllocPolicy: "preferred",
	}
	g.initTimestamps(now)
	g.Tags = NewStringSet()
	return g
}

// UpgradeConfig fills defaults introduced after this record's version.
func (g *NodeGroup) UpgradeConfig() {
	if g.AllocPolicy == "" {
		g.AllocPolicy = "preferred"
	}
	if g.Tags == nil {
		g.Tags = NewStringSet()
	}
}
