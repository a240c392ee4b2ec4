// Package session implements the reentrant shared/exclusive session that
// gates every access to the configuration graph, online (via LockD) or
// offline (direct file I/O), mirroring the original's ConfigManager
// context and the teacher's own Lock/Unlock-then-Execute pattern in
// pkg/newtron/node.go (there: lock → fn → commit → save → unlock; here:
// open → mutate → close, with the equivalent commit/save/unlock folded
// into Close).
package session

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
	"github.com/nimbusvm/clusterconf/pkg/lockd"
	"github.com/nimbusvm/clusterconf/pkg/persist"
	"github.com/nimbusvm/clusterconf/pkg/reservation"
	"github.com/nimbusvm/clusterconf/pkg/verify"
)

const upgradeECID = "config-upgrade"

// Config carries everything a Manager needs to bootstrap, fixed for the
// lifetime of the store (one Manager per execution context, per spec's
// concurrency contract: lock_count is not mutex-protected because a
// single process is never expected to share one Manager across
// concurrent callers).
type Config struct {
	Online bool

	// Online fields.
	LockD      *lockd.Client
	CallerID   string
	Livelock   string
	PID        int

	// Offline fields.
	Path          string
	GroupResolver persist.GroupResolver
	MyHostname    string
	AcceptForeign bool
}

// Manager is the per-store session: reentrant Open/Close around a single
// in-memory graph, matching spec's "State per store instance" field list
// verbatim (lock_count, lock_current_shared, lock_forced, cached_graph,
// cached_fileID, wconfd_context, offline, my_hostname, accept_foreign).
type Manager struct {
	cfg Config

	lockCount         int
	lockCurrentShared bool
	lockForced        bool

	graph        *entity.ConfigData
	cachedFileID persist.FileID

	uuids *reservation.UUIDGenerator
}

// NewManager builds a Manager from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, uuids: reservation.NewUUIDGenerator()}
}

// IsOffline reports whether this store operates without LockD.
func (m *Manager) IsOffline() bool { return !m.cfg.Online }

// Graph returns the currently held graph. Valid only between Open and
// Close; callers outside an open session get nil.
func (m *Manager) Graph() *entity.ConfigData { return m.graph }

func (m *Manager) wconfdContext() lockd.WConfdContext {
	return lockd.WConfdContext{CallerID: m.cfg.CallerID, LivelockPath: m.cfg.Livelock, PID: m.cfg.PID}
}

// Open acquires the session, shared or exclusive. A reentrant Open from
// within an already-open session just bumps lock_count, unless the outer
// frame is shared and the inner wants exclusive without force — that
// combination is rejected exactly as spec requires.
func (m *Manager) Open(ctx context.Context, shared, force bool) error {
	if m.lockCount >= 1 {
		if m.lockCurrentShared && !shared && !force {
			return confutil.NewProgrammerErrorf(
				"cannot open an exclusive session while a shared session is already held without force")
		}
		m.lockCount++
		return nil
	}

	m.lockCurrentShared = shared
	m.lockForced = force

	var err error
	if m.cfg.Online {
		err = m.openOnline(ctx, shared)
	} else {
		err = m.openOffline(ctx)
	}
	if err != nil {
		return err
	}
	m.lockCount = 1
	return nil
}

func (m *Manager) openOnline(ctx context.Context, shared bool) error {
	cachedSerial := 0
	if m.graph != nil {
		cachedSerial = m.graph.Version
	}
	graph, err := m.cfg.LockD.LockConfig(ctx, m.wconfdContext(), shared, cachedSerial)
	if err != nil {
		return err
	}
	if graph != nil {
		m.graph = graph
	}
	return nil
}

func (m *Manager) openOffline(ctx context.Context) error {
	graph, fileID, err := persist.Load(m.cfg.Path)
	if err != nil {
		return err
	}
	if err := m.validateOfflineBootstrap(graph); err != nil {
		return err
	}

	changed := m.upgradeOnLoad(graph)

	m.graph = graph
	m.cachedFileID = fileID

	if changed {
		newFileID, err := persist.Save(m.cfg.Path, m.cachedFileID, graph, m.cfg.GroupResolver)
		if err != nil {
			return err
		}
		m.cachedFileID = newFileID
		m.uuids.DropECReservations(upgradeECID)
	}
	return nil
}

// validateOfflineBootstrap enforces the invariants an offline store must
// hold before it will serve any request: the cluster's host key is
// present, the recorded master node exists, and — unless accept_foreign
// is set — that node's name matches this process's own hostname.
func (m *Manager) validateOfflineBootstrap(graph *entity.ConfigData) error {
	if graph.Cluster.RsaHostKeyPub == "" {
		return confutil.NewConfigurationErrorf("cluster has no rsahostkeypub set")
	}
	master, ok := graph.Nodes[graph.Cluster.MasterNode]
	if !ok {
		return confutil.NewConfigurationErrorf("master node %q not found in the node list", graph.Cluster.MasterNode)
	}
	if !m.cfg.AcceptForeign && master.Name != m.cfg.MyHostname {
		return confutil.NewConfigurationErrorf(
			"this host (%s) is not the configured master (%s); refusing to serve a foreign configuration",
			m.cfg.MyHostname, master.Name)
	}
	return nil
}

// upgradeOnLoad assigns fresh UUIDs to any entity missing one (tracked
// under a dedicated upgrade execution context so the reservations are
// dropped once they have been committed to the saved file) and runs the
// cascading per-entity UpgradeConfig, reporting whether anything changed.
func (m *Manager) upgradeOnLoad(graph *entity.ConfigData) bool {
	before, _ := json.Marshal(graph)

	existing := map[string]bool{}
	for _, e := range graph.AllEntities() {
		if e.GetUUID() != "" {
			existing[e.GetUUID()] = true
		}
	}
	assignMissingUUID := func(get func() string, set func(string)) {
		if get() != "" {
			return
		}
		uuid, err := m.uuids.Generate(existing, confutil.NewUUID, upgradeECID)
		if err != nil {
			return
		}
		existing[uuid] = true
		set(uuid)
	}
	for _, n := range graph.Nodes {
		assignMissingUUID(func() string { return n.UUID }, func(u string) { n.UUID = u })
	}
	for _, g := range graph.NodeGroups {
		assignMissingUUID(func() string { return g.UUID }, func(u string) { g.UUID = u })
	}
	for _, i := range graph.Instances {
		assignMissingUUID(func() string { return i.UUID }, func(u string) { i.UUID = u })
	}
	for _, d := range graph.Disks {
		assignMissingUUID(func() string { return d.UUID }, func(u string) { d.UUID = u })
	}
	for _, n := range graph.Networks {
		assignMissingUUID(func() string { return n.UUID }, func(u string) { n.UUID = u })
	}

	graph.UpgradeConfig()

	after, _ := json.Marshal(graph)
	return !bytes.Equal(before, after)
}

// Close releases one level of reentrancy. At lock_count == 0 it commits
// (clean exclusive close), discards (exclusive close with a pending
// error), or simply unlocks (shared close). execErr, when non-nil,
// indicates the caller's operation failed and any in-memory mutations
// must be thrown away rather than persisted.
func (m *Manager) Close(ctx context.Context, execErr error) error {
	if m.lockCount == 0 {
		return confutil.NewProgrammerErrorf("Close called without a matching Open")
	}
	m.lockCount--
	if m.lockCount > 0 {
		return nil
	}

	defer func() { m.lockForced = false }()

	exclusive := !m.lockCurrentShared
	if exclusive {
		if execErr != nil {
			m.graph = nil
			if m.cfg.Online {
				return m.cfg.LockD.UnlockConfig(ctx, m.wconfdContext())
			}
			return nil
		}
		return m.commitExclusive(ctx)
	}

	if m.lockForced {
		return nil
	}
	if m.cfg.Online {
		return m.cfg.LockD.UnlockConfig(ctx, m.wconfdContext())
	}
	return nil
}

func (m *Manager) commitExclusive(ctx context.Context) error {
	m.verifyAndLog()

	if m.cfg.Online {
		return m.cfg.LockD.WriteConfigAndUnlock(ctx, m.wconfdContext(), m.graph)
	}
	newFileID, err := persist.Save(m.cfg.Path, m.cachedFileID, m.graph, m.cfg.GroupResolver)
	if err != nil {
		return err
	}
	m.cachedFileID = newFileID
	return nil
}

// verifyAndLog runs every graph invariant against the about-to-be-committed
// graph and logs whatever it finds; it never blocks or fails the commit,
// the same way pkg/verify's own package doc describes this call site.
func (m *Manager) verifyAndLog() {
	problems := verify.Graph(m.graph)
	for _, p := range problems {
		confutil.Logger.Errorf("config invariant violation at commit: %s", p)
	}
}
