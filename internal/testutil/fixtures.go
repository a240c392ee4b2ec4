//go:build integration || e2e

package testutil

import (
	"testing"

	"github.com/nimbusvm/clusterconf/pkg/entity"
	"github.com/nimbusvm/clusterconf/pkg/lockd"
	"github.com/nimbusvm/clusterconf/pkg/session"
	"github.com/nimbusvm/clusterconf/pkg/store"
)

// GraphBuilder assembles an entity.ConfigData fluently, for tests that
// need a populated graph without hand-wiring every UUID cross-reference
// themselves.
type GraphBuilder struct {
	now   float64
	graph *entity.ConfigData
}

// NewGraphBuilder starts from a fresh cluster named name, mastered on
// masterNode/masterIP.
func NewGraphBuilder(name, masterNode, masterIP string) *GraphBuilder {
	now := 1700000000.0
	return &GraphBuilder{
		now:   now,
		graph: entity.NewConfigData(entity.NewCluster(name, masterNode, masterIP, now)),
	}
}

// WithNodeGroup adds a node group and returns its UUID, so later With*
// calls can place nodes into it.
func (b *GraphBuilder) WithNodeGroup(name string) (*GraphBuilder, string) {
	g := entity.NewNodeGroup(name, b.now)
	b.graph.NodeGroups[g.UUID] = g
	return b, g.UUID
}

// WithNode adds a node to the given group and returns its UUID.
func (b *GraphBuilder) WithNode(name, primaryIP, groupUUID string) (*GraphBuilder, string) {
	n := entity.NewNode(name, primaryIP, groupUUID, b.now)
	b.graph.Nodes[n.UUID] = n
	return b, n.UUID
}

// WithInstance adds a stopped instance on primaryNodeUUID and returns its
// UUID.
func (b *GraphBuilder) WithInstance(name, primaryNodeUUID, os, hypervisor string, template entity.DiskTemplate) (*GraphBuilder, string) {
	i := entity.NewInstance(name, primaryNodeUUID, os, hypervisor, template, b.now)
	b.graph.Instances[i.UUID] = i
	return b, i.UUID
}

// WithDisk adds a disk of the given template/size, attaches it to
// instanceUUID, and returns the disk's UUID.
func (b *GraphBuilder) WithDisk(instanceUUID string, template entity.DiskTemplate, size int64) (*GraphBuilder, string) {
	d := entity.NewDisk(template, size, b.now)
	d.Instance = instanceUUID
	b.graph.Disks[d.UUID] = d
	if inst, ok := b.graph.Instances[instanceUUID]; ok {
		inst.Disks = append(inst.Disks, d.UUID)
	}
	return b, d.UUID
}

// WithNetwork adds an address pool over cidr and returns its UUID.
func (b *GraphBuilder) WithNetwork(t *testing.T, name, cidr string) (*GraphBuilder, string) {
	t.Helper()
	n, err := entity.NewNetwork(name, cidr, b.now)
	if err != nil {
		t.Fatalf("building test network %s: %v", cidr, err)
	}
	b.graph.Networks[n.UUID] = n
	return b, n.UUID
}

// Build finalizes the graph, rebuilding derived state (node group
// membership) the way a real load path would.
func (b *GraphBuilder) Build() *entity.ConfigData {
	b.graph.RebuildGroupMembers()
	return b.graph
}

// ConnectedStore builds a Store wired against the test Redis instance in
// online mode, with graph seeded as the starting state. The Store and its
// LockD client are closed automatically via t.Cleanup.
func ConnectedStore(t *testing.T, graph *entity.ConfigData) (*store.Store, *lockd.Client) {
	t.Helper()
	RequireRedis(t)

	addr := RedisAddr()
	const db = 15

	FlushDB(t, addr, db)
	if graph != nil {
		SeedConfig(t, addr, db, graph)
	}

	client := lockd.NewClient(addr, db)
	t.Cleanup(func() { client.Close() })

	s := store.New(store.Options{
		Session: session.Config{
			Online:   true,
			LockD:    client,
			CallerID: "testutil",
			PID:      1,
		},
		LockD: client,
	})
	return s, client
}

// LockedStore returns exactly what ConnectedStore returns. It opens no
// session of its own and returns no closer; every store call still takes
// its own lock.
func LockedStore(t *testing.T, graph *entity.ConfigData) (*store.Store, *lockd.Client) {
	t.Helper()
	return ConnectedStore(t, graph)
}

// AssertNoError fails the test with msg if err is non-nil.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError fails the test with msg if err is nil.
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected an error, got nil", msg)
	}
}

// Must returns val if err is nil, otherwise fails the test immediately.
func Must[T any](t *testing.T, val T, err error) T {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return val
}
