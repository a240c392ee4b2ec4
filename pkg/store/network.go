package store

import (
	"context"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

// AddTcpUdpPort returns port to the cluster's free TCP/UDP port pool.
func (s *Store) AddTcpUdpPort(ctx context.Context, port int) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		g.Cluster.AddTCPUDPPort(port)
		bumpSerials(g, s.now())
		return nil
	})
}

// AllocatePort draws the next free TCP/UDP port, pool-first, else
// highest_used_port+1, failing once that would reach LastDRBDPort.
func (s *Store) AllocatePort(ctx context.Context) (int, error) {
	var port int
	err := s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		if len(g.Cluster.TCPUDPPortPool.List()) == 0 && g.Cluster.HighestUsedPort+1 >= entity.LastDRBDPort {
			return confutil.NewOpExecError("port range exhausted: reached LastDRBDPort")
		}
		port = g.Cluster.AllocatePort()
		bumpSerials(g, s.now())
		return nil
	})
	return port, err
}

// AddNetwork registers net, rejecting a duplicate name or UUID.
func (s *Store) AddNetwork(ctx context.Context, net *entity.Network) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		if _, ok := g.Networks[net.UUID]; ok {
			return confutil.NewConfigurationErrorf("network uuid %s already exists", net.UUID)
		}
		for _, existing := range g.Networks {
			if existing.Name == net.Name {
				return confutil.NewConfigurationErrorf("network named %q already exists", net.Name)
			}
		}
		g.Networks[net.UUID] = net
		bumpSerials(g, s.now(), net)
		return nil
	})
}

// RemoveNetwork deletes network uuid, failing if any NIC still uses it.
func (s *Store) RemoveNetwork(ctx context.Context, uuid string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		net, ok := g.Networks[uuid]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "network %s not found", uuid)
		}
		for _, inst := range g.Instances {
			for _, nic := range inst.NICs {
				if nic.Network == uuid {
					return confutil.NewOpPrereqErrorf(confutil.ECodeInval,
						"network %s still in use by instance %s", net.Name, inst.Name)
				}
			}
		}
		delete(g.Networks, uuid)
		bumpSerials(g, s.now())
		return nil
	})
}

// GenerateIP draws a free address from network's pool, reserving it
// against ecID so it survives until either committed (via a later
// Update of the owning instance, which promotes it into the network's
// persisted AddressPool) or released by DropAllReservations on
// failure. Offline, there is no other process to race against, so the
// address is reserved directly against the graph's own pool.
func (s *Store) GenerateIP(ctx context.Context, ecID, networkUUID string) (string, error) {
	var ip string
	err := s.withExclusive(ctx, ecID, func(g *entity.ConfigData) error {
		net, ok := g.Networks[networkUUID]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "network %s not found", networkUUID)
		}
		pool, err := net.Pool()
		if err != nil {
			return err
		}
		if s.sessions.IsOffline() {
			ip, err = pool.GenerateFree()
			if err != nil {
				return err
			}
			if err := pool.Reserve(ip); err != nil {
				return err
			}
			bumpSerials(g, s.now(), net)
			return nil
		}
		ip, err = s.reservations.GenerateIP(ctx, ecID, networkUUID, pool)
		return err
	})
	return ip, err
}

// ReserveIP reserves a caller-chosen address from network's pool under
// ecID, the same ephemeral-then-committed lifecycle GenerateIP follows.
func (s *Store) ReserveIP(ctx context.Context, ecID, networkUUID, ip string) error {
	return s.withExclusive(ctx, ecID, func(g *entity.ConfigData) error {
		net, ok := g.Networks[networkUUID]
		if !ok {
			return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "network %s not found", networkUUID)
		}
		if s.sessions.IsOffline() {
			pool, err := net.Pool()
			if err != nil {
				return err
			}
			if err := pool.Reserve(ip); err != nil {
				return err
			}
			bumpSerials(g, s.now(), net)
			return nil
		}
		return s.reservations.ReserveIP(ctx, ecID, networkUUID, ip)
	})
}
