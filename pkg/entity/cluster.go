package entity

import "github.com/nimbusvm/clusterconf/pkg/confutil"

// Cluster is the singleton root of the configuration graph: cluster-wide
// identity, networking defaults, and the parameter templates (hvparams,
// beparams, nicparams, ndparams, diskparams) that nodes, instances, and
// NICs inherit from unless they override a key themselves.
type Cluster struct {
	TimestampedObject
	Taggable

	UUID string `json:"uuid"`

	ClusterName     string `json:"cluster_name"`
	MasterNode      string `json:"master_node"`
	MasterIP        string `json:"master_ip"`
	MasterNetdev    string `json:"master_netdev"`
	MasterNetmask   int    `json:"master_netmask"`
	PrimaryIPFamily int    `json:"primary_ip_family"`
	UseExternalMipScript bool `json:"use_external_mip_script"`

	MACPrefix string `json:"mac_prefix"`

	HighestUsedPort int    `json:"highest_used_port"`
	TCPUDPPortPool  IntSet `json:"tcpudp_port_pool"`

	VolumeGroupName       string `json:"volume_group_name,omitempty"`
	FileStorageDir        string `json:"file_storage_dir,omitempty"`
	SharedFileStorageDir  string `json:"shared_file_storage_dir,omitempty"`
	GlusterStorageDir     string `json:"gluster_storage_dir,omitempty"`

	EnabledHypervisors []string                     `json:"enabled_hypervisors"`
	HVParams           map[string]map[string]string `json:"hvparams"`
	BEParams           map[string]map[string]string `json:"beparams"`
	NICParams          map[string]map[string]string `json:"nicparams"`
	NDParams           map[string]string             `json:"ndparams"`
	DiskParams         map[string]map[string]string `json:"diskparams"`

	IPolicy Dict `json:"ipolicy"`

	EnabledDiskTemplates StringSet `json:"enabled_disk_templates"`
	CandidatePoolSize    int       `json:"candidate_pool_size"`
	CandidateCerts       map[string]string `json:"candidate_certs,omitempty"`

	CompressionTools []string `json:"compression_tools,omitempty"`
	InstallImage     string   `json:"install_image,omitempty"`
	ZeroingImage     string   `json:"zeroing_image,omitempty"`

	InstanceCommunicationNetwork string `json:"instance_communication_network,omitempty"`

	DefaultIAllocator       string `json:"default_iallocator,omitempty"`
	DefaultIAllocatorParams map[string]string `json:"default_iallocator_params,omitempty"`

	DRBDUsermodeHelper string `json:"drbd_usermode_helper,omitempty"`

	UIDPool []UIDRange `json:"uid_pool,omitempty"`

	MaintainNodeHealth  bool `json:"maintain_node_health"`
	EnabledUserShutdown bool `json:"enabled_user_shutdown"`

	RsaHostKeyPub string `json:"rsahostkeypub,omitempty"`
	DsaHostKeyPub string `json:"dsahostkeypub,omitempty"`
}

// UIDRange is an inclusive range of user IDs reserved for the cluster's
// UID pool, used to hand out dedicated UIDs to instance processes.
type UIDRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether uid falls within the range.
func (r UIDRange) Contains(uid int) bool {
	return uid >= r.Start && uid <= r.End
}

// NewCluster builds a Cluster with the defaults the bootstrap path
// (InitConfig) assigns to a freshly created cluster.
func NewCluster(name, masterNode, masterIP string, now float64) *Cluster {
	c := &Cluster{
		UUID:                confutil.NewUUID(),
		ClusterName:         name,
		MasterNode:          masterNode,
		MasterIP:            masterIP,
		PrimaryIPFamily:     4,
		HighestUsedPort:     LastDRBDPort,
		TCPUDPPortPool:      NewIntSet(),
		EnabledHypervisors:  []string{"kvm"},
		HVParams:            map[string]map[string]string{},
		BEParams:            map[string]map[string]string{},
		NICParams:           map[string]map[string]string{},
		NDParams:            map[string]string{},
		DiskParams:          map[string]map[string]string{},
		IPolicy:             Dict{},
		EnabledDiskTemplates: NewStringSet(string(DiskTemplatePlain), string(DiskTemplateDRBD8)),
		CandidatePoolSize:   3,
		MaintainNodeHealth:  true,
	}
	c.initTimestamps(now)
	c.Tags = NewStringSet()
	return c
}

// GetUUID returns the cluster's UUID.
func (c *Cluster) GetUUID() string { return c.UUID }

// ToDict serializes the cluster to its canonical dict form.
func (c *Cluster) ToDict() (Dict, error) { return toDict(c) }

// FromDict populates the cluster from its canonical dict form.
func (c *Cluster) FromDict(d Dict) error { return fromDict(d, c) }

// AllocatePort draws the next free TCP/UDP port: one from the pool if it
// has entries, otherwise the next port above HighestUsedPort. Mirrors
// AllocatePort/AddTcpUdpPort in the original, including the fact that a
// pool hit never advances HighestUsedPort.
func (c *Cluster) AllocatePort() int {
	if c.TCPUDPPortPool == nil {
		c.TCPUDPPortPool = NewIntSet()
	}
	if port, ok := c.TCPUDPPortPool.Pop(); ok {
		return port
	}
	c.HighestUsedPort++
	return c.HighestUsedPort
}

// AddTCPUDPPort returns port to the free pool for reuse by a later
// AllocatePort call.
func (c *Cluster) AddTCPUDPPort(port int) {
	if c.TCPUDPPortPool == nil {
		c.TCPUDPPortPool = NewIntSet()
	}
	c.TCPUDPPortPool.Add(port)
}

// GetHVParams returns the effective hypervisor parameters for hvType:
// the cluster-wide template, unmodified (callers overlay per-instance
// overrides on top).
func (c *Cluster) GetHVParams(hvType string) map[string]string {
	if p, ok := c.HVParams[hvType]; ok {
		return p
	}
	return map[string]string{}
}

// FillBEParams overlays override on top of the cluster BEParams default
// group, returning a new map that leaves both inputs untouched.
func (c *Cluster) FillBEParams(override map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range c.BEParams["default"] {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// UpgradeConfig brings an older Cluster record up to CurrentConfigVersion,
// filling in fields introduced by later format revisions.
func (c *Cluster) UpgradeConfig() {
	if c.TCPUDPPortPool == nil {
		c.TCPUDPPortPool = NewIntSet()
	}
	if c.HVParams == nil {
		c.HVParams = map[string]map[string]string{}
	}
	if c.BEParams == nil {
		c.BEParams = map[string]map[string]string{}
	}
	if c.NICParams == nil {
		c.NICParams = map[string]map[string]string{}
	}
	if c.NDParams == nil {
		c.NDParams = map[string]string{}
	}
	if c.DiskParams == nil {
		c.DiskParams = map[string]map[string]string{}
	}
	if c.IPolicy == nil {
		c.IPolicy = Dict{}
	}
	if c.EnabledDiskTemplates == nil {
		c.EnabledDiskTemplates = NewStringSet(string(DiskTemplatePlain))
	}
	if c.Tags == nil {
		c.Tags = NewStringSet()
	}
	if c.CandidatePoolSize == 0 {
		c.CandidatePoolSize = 3
	}
}
