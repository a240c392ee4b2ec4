package entity

import "github.com/nimbusvm/clusterconf/pkg/confutil"

// Node is a single hypervisor host participating in the cluster.
type Node struct {
	TimestampedObject
	Taggable

	UUID string `json:"uuid"`
	Name string `json:"name"`

	PrimaryIP   string `json:"primary_ip"`
	SecondaryIP string `json:"secondary_ip,omitempty"`

	MasterCandidate bool `json:"master_candidate"`
	Drained         bool `json:"drained"`
	Offline         bool `json:"offline"`
	MasterCapable   bool `json:"master_capable"`
	VMCapable       bool `json:"vm_capable"`

	Group string `json:"group"`

	NDParams map[string]string `json:"ndparams,omitempty"`

	PowerParams map[string]string `json:"powered_params,omitempty"`
	Powered     bool              `json:"powered"`

	MasterCandidateGroup string `json:"master_candidate_group,omitempty"`
}

// GetUUID returns the node's UUID.
func (n *Node) GetUUID() string { return n.UUID }

// ToDict serializes the node to its canonical dict form.
func (n *Node) ToDict() (Dict, error) { return toDict(n) }

// FromDict populates the node from its canonical dict form.
func (n *Node) FromDict(d Dict) error { return fromDict(d, n) }

// NewNode constructs a Node with the capability defaults a freshly added
// node gets before node-info-driven detection fills in the rest.
func NewNode(name, primaryIP, group string, now float64) *Node {
	n := &Node{
		UUID:          confutil.NewUUID(),
		Name:          name,
		PrimaryIP:     primaryIP,
		Group:         group,
		MasterCapable: true,
		VMCapable:     true,
	}
	n.initTimestamps(now)
	n.Tags = NewStringSet()
	return n
}

// UpgradeConfig fills defaults introduced after this record's version.
func (n *Node) UpgradeConfig() {
	if n.Tags == nil {
		n.Tags = NewStringSet()
	}
	if n.NDParams == nil {
		n.NDParams = map[string]string{}
	}
}

// CandidateEligible reports whether the node can be promoted into the
// master-candidate pool: not offline, not drained, and capable of
// becoming master.
func (n *Node) CandidateEligible() bool {
	return !n.Offline && !n.Drained && n.MasterCapable
}
