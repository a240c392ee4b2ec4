// Package store implements ConfigStore: the single façade every caller
// uses to read and mutate the cluster configuration graph. It wires
// together pkg/session (locking/persistence lifecycle), pkg/reservation
// (scarce-name uniqueness), and pkg/entity (the graph itself) into the
// accessor/mutator catalog, the same role pkg/newtron.Network/Node play
// for the teacher's device graph.
package store

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
	"github.com/nimbusvm/clusterconf/pkg/lockd"
	"github.com/nimbusvm/clusterconf/pkg/reservation"
	"github.com/nimbusvm/clusterconf/pkg/session"
)

// IsCluster reports whether a config file exists at path, the
// construction-free test callers use to decide whether this host has
// ever been initialized as (or joined) a cluster before building a Store
// at all.
func IsCluster(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Store is the configuration core's public façade.
type Store struct {
	sessions     *session.Manager
	reservations reservation.Manager
	lockd        *lockd.Client // nil when offline; used for FlushConfig/VerifyConfig only
	now          func() float64
}

// Options configures a new Store.
type Options struct {
	Session      session.Config
	Reservations reservation.Manager // defaults to reservation.OfflineManager{} when Session.Online is false
	LockD        *lockd.Client
}

// New builds a Store. When Options.Session.Online is true and
// Options.Reservations is nil, Options.Session.LockD doubles as the
// reservation manager, since *lockd.Client already implements the full
// reservation.Manager interface.
func New(opts Options) *Store {
	reservations := opts.Reservations
	if reservations == nil {
		if opts.Session.Online {
			reservations = opts.Session.LockD
		} else {
			reservations = reservation.OfflineManager{}
		}
	}
	return &Store{
		sessions:     session.NewManager(opts.Session),
		reservations: reservations,
		lockd:        opts.Session.LockD,
		now:          func() float64 { return float64(time.Now().Unix()) },
	}
}

func (s *Store) withShared(ctx context.Context, fn func(g *entity.ConfigData) error) error {
	if err := s.sessions.Open(ctx, true, false); err != nil {
		return err
	}
	fnErr := fn(s.sessions.Graph())
	closeErr := s.sessions.Close(ctx, fnErr)
	if fnErr != nil {
		return fnErr
	}
	return closeErr
}

// bumpSerials bumps serial_no/mtime on every entity that changed in this
// exclusive session, plus the cluster's own serial_no — the one counter
// every mutation anywhere in the graph advances, per spec.md §3. Passing
// g.Cluster itself (a cluster-settings change) is safe: it is recognized
// and not bumped twice.
func bumpSerials(g *entity.ConfigData, now float64, changed ...entity.Entity) {
	bumpedCluster := false
	for _, e := range changed {
		if e == nil {
			continue
		}
		e.BumpSerial(now)
		if c, ok := e.(*entity.Cluster); ok && c == g.Cluster {
			bumpedCluster = true
		}
	}
	if !bumpedCluster {
		g.Cluster.BumpSerial(now)
	}
}

func (s *Store) withExclusive(ctx context.Context, ecID string, fn func(g *entity.ConfigData) error) error {
	if err := s.sessions.Open(ctx, false, false); err != nil {
		return err
	}
	fnErr := fn(s.sessions.Graph())
	closeErr := s.sessions.Close(ctx, fnErr)
	if fnErr != nil {
		if ecID != "" {
			s.reservations.DropAllReservations(ctx, ecID)
		}
		return fnErr
	}
	return closeErr
}

// Update commits target as the new authoritative copy of the entity it
// represents, enforcing optimistic concurrency: target.GetSerialNo() must
// equal the stored entity's current serial number. On success the serial
// is bumped, mtime updated, and (for Node, Instance and Disk targets) the
// cluster-wide side effects spec.md §4.5 calls out are applied.
func Update[T entity.Entity](ctx context.Context, s *Store, target T) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		current, err := lookupEntity(g, target)
		if err != nil {
			return err
		}
		if current.GetSerialNo() != target.GetSerialNo() {
			return confutil.NewOpPrereqErrorf(confutil.ECodeState,
				"stale write: target serial %d does not match current serial %d", target.GetSerialNo(), current.GetSerialNo())
		}

		bumpCluster := false
		switch t := any(target).(type) {
		case *entity.Node:
			g.Nodes[t.UUID] = t
			bumpCluster = true
		case *entity.Instance:
			for _, diskUUID := range t.Disks {
				s.reservations.ReleaseDRBDMinors(ctx, t.PrimaryNode, diskUUID)
			}
			if err := commitPendingIPs(g, t); err != nil {
				return err
			}
			g.Instances[t.UUID] = t
			bumpCluster = true
		case *entity.NodeGroup:
			g.NodeGroups[t.UUID] = t
		case *entity.Disk:
			g.Disks[t.UUID] = t
			bumpCluster = true
		case *entity.Network:
			g.Networks[t.UUID] = t
		case *entity.Cluster:
			g.Cluster = t
		default:
			return confutil.NewProgrammerErrorf("Update called with unsupported entity type %T", target)
		}
		if bumpCluster {
			bumpSerials(g, s.now(), target)
		} else {
			target.BumpSerial(s.now())
		}
		return nil
	})
}

// commitPendingIPs promotes every NIC IP inst carries that is not yet
// reflected in its owning network's address pool — the
// _CommitTemporaryIps-equivalent step spec.md §4.6 requires on every
// exclusive commit, since online NIC IPs are reserved ephemerally against
// LockD before the instance mutation that finally attaches them commits.
func commitPendingIPs(g *entity.ConfigData, inst *entity.Instance) error {
	for _, nic := range inst.NICs {
		if nic.Network == "" || nic.IP == "" {
			continue
		}
		network, ok := g.Networks[nic.Network]
		if !ok {
			continue
		}
		pool, err := network.Pool()
		if err != nil {
			continue
		}
		if pool.IsReserved(nic.IP) {
			continue
		}
		if err := pool.Reserve(nic.IP); err != nil {
			return err
		}
	}
	return nil
}

func lookupEntity(g *entity.ConfigData, target entity.Entity) (entity.Entity, error) {
	uuid := target.GetUUID()
	switch any(target).(type) {
	case *entity.Node:
		if n, ok := g.Nodes[uuid]; ok {
			return n, nil
		}
	case *entity.Instance:
		if i, ok := g.Instances[uuid]; ok {
			return i, nil
		}
	case *entity.NodeGroup:
		if ng, ok := g.NodeGroups[uuid]; ok {
			return ng, nil
		}
	case *entity.Disk:
		if d, ok := g.Disks[uuid]; ok {
			return d, nil
		}
	case *entity.Network:
		if nw, ok := g.Networks[uuid]; ok {
			return nw, nil
		}
	case *entity.Cluster:
		return g.Cluster, nil
	}
	return nil, confutil.NewProgrammerErrorf("Update target %T %q not found in the graph", target, uuid)
}

// FlushConfig forces the next reader (online) to re-fetch rather than
// reuse any cached copy. Offline stores have no cache to flush.
func (s *Store) FlushConfig(ctx context.Context) error {
	if s.lockd == nil {
		return nil
	}
	return s.lockd.FlushConfig(ctx)
}

// GetDetachedConfig returns a deep copy of the current graph, a snapshot
// callers can inspect without holding any session open. Mutating the
// returned graph has no effect on the store. The copy is not marked
// read-only: an entity taken from it and passed to Update is checked by
// UUID and serial number like any other target, and is committed when
// its serial still matches.
func (s *Store) GetDetachedConfig(ctx context.Context) (*entity.ConfigData, error) {
	var snapshot entity.ConfigData
	err := s.withShared(ctx, func(g *entity.ConfigData) error {
		data, err := json.Marshal(g)
		if err != nil {
			return confutil.NewConfigurationErrorf("snapshotting config graph: %v", err)
		}
		return json.Unmarshal(data, &snapshot)
	})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
