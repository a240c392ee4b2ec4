package entity

import "github.com/nimbusvm/clusterconf/pkg/confutil"

// LogicalID is the tagged-union identity of a disk's backing storage. Only
// the fields relevant to Template are populated; the rest stay zero. This
// mirrors the original's plain Python tuple logical_id, whose shape varies
// by disk template.
type LogicalID struct {
	// plain, file, shared_file, gluster
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
	VG     string `json:"vg,omitempty"`
	LV     string `json:"lv,omitempty"`

	// drbd8
	NodeA   string `json:"node_a,omitempty"`
	NodeB   string `json:"node_b,omitempty"`
	Port    int    `json:"port,omitempty"`
	MinorA  int    `json:"minor_a,omitempty"`
	MinorB  int    `json:"minor_b,omitempty"`
	Secret  string `json:"secret,omitempty"`

	// rbd, ext, blockdev
	Name string `json:"name,omitempty"`
}

// Tuple renders the logical ID as a positional tuple the way
// ComputeDRBDMap and friends consume it, for templates where field order
// has domain meaning (chiefly drbd8).
func (l LogicalID) Tuple() []interface{} {
	return []interface{}{l.NodeA, l.NodeB, l.Port, l.MinorA, l.MinorB, l.Secret}
}

// Disk is a single virtual block device attached to an instance. Disks
// that are part of a mirrored template may contain Children disks (e.g. a
// drbd8 disk's two plain children).
type Disk struct {
	TimestampedObject
	Taggable

	UUID     string       `json:"uuid"`
	Template DiskTemplate `json:"dev_type"`
	LogicalID LogicalID   `json:"logical_id"`
	Size     int64        `json:"size"`
	Mode     string       `json:"mode"`

	Children []*Disk `json:"children,omitempty"`

	IVName string `json:"iv_name,omitempty"`

	// Instance is the owning instance UUID, or empty if unattached. It is
	// not persisted; Instance.AttachDisk and DetachDisk keep it in step
	// with Instance.Disks. AttachDisk still scans every instance to reject
	// a disk that is already attached elsewhere.
	Instance string `json:"-"`
}

// GetUUID returns the disk's UUID.
func (d *Disk) GetUUID() string { return d.UUID }

// ToDict serializes the disk to its canonical dict form.
func (d *Disk) ToDict() (Dict, error) { return toDict(d) }

// FromDict populates the disk from its canonical dict form.
func (d *Disk) FromDict(dict Dict) error { return fromDict(dict, d) }

// NewDisk constructs a Disk of the given template with a fresh UUID.
func NewDisk(template DiskTemplate, size int64, now float64) *Disk {
	d := &Disk{
		UUID:     confutil.NewUUID(),
		Template: template,
		Size:     size,
		Mode:     "rw",
	}
	d.initTimestamps(now)
	d.Tags = NewStringSet()
	return d
}

// AllNodes returns every node UUID/name this disk (or its children) is
// physically present on, derived from LogicalID rather than stored,
// mirroring ComputeAllNodes in the original.
func (d *Disk) AllNodes() []string {
	var nodes []string
	switch d.Template {
	case DiskTemplateDRBD8:
		if d.LogicalID.NodeA != "" {
			nodes = append(nodes, d.LogicalID.NodeA)
		}
		if d.LogicalID.NodeB != "" {
			nodes = append(nodes, d.LogicalID.NodeB)
		}
	}
	for _, c := range d.Children {
		nodes = append(nodes, c.AllNodes()...)
	}
	return confutil.NiceSort(nodes)
}

// UpgradeConfig fills defaults introduced after this record's version.
func (d *Disk) UpgradeConfig() {
	if d.Mode == "" {
		d.Mode = "rw"
	}
	if d.Tags == nil {
		d.Tags = NewStringSet()
	}
	for _, c := range d.Children {
		c.UpgradeConfig()
	}
}
