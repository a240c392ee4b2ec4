package store

import (
	"context"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

// SetVGName changes the cluster's default LVM volume group name.
func (s *Store) SetVGName(ctx context.Context, name string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		g.Cluster.VolumeGroupName = name
		bumpSerials(g, s.now())
		return nil
	})
}

// SetDRBDHelper changes the cluster's DRBD usermode helper path.
func (s *Store) SetDRBDHelper(ctx context.Context, helper string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		g.Cluster.DRBDUsermodeHelper = helper
		bumpSerials(g, s.now())
		return nil
	})
}

// SetInstallImage changes the cluster's default OS install image path.
func (s *Store) SetInstallImage(ctx context.Context, image string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		g.Cluster.InstallImage = image
		bumpSerials(g, s.now())
		return nil
	})
}

// SetCompressionTools changes the ordered list of compression tools
// permitted for instance image transfer.
func (s *Store) SetCompressionTools(ctx context.Context, tools []string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		g.Cluster.CompressionTools = tools
		bumpSerials(g, s.now())
		return nil
	})
}

// SetInstanceCommunicationNetwork changes the network UUID used for the
// guest<->host instance communication channel.
func (s *Store) SetInstanceCommunicationNetwork(ctx context.Context, networkUUID string) error {
	return s.withExclusive(ctx, "", func(g *entity.ConfigData) error {
		if networkUUID != "" {
			if _, ok := g.Networks[networkUUID]; !ok {
				return confutil.NewOpPrereqErrorf(confutil.ECodeNoEnt, "network %s not found", networkUUID)
			}
		}
		g.Cluster.InstanceCommunicationNetwork = networkUUID
		bumpSerials(g, s.now())
		return nil
	})
}
