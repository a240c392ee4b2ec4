package lockd

import (
	"context"
	"fmt"

	"github.com/nimbusvm/clusterconf/pkg/entity"
)

// verifyDRBDMapAgainstLockD cross-checks every drbd8 disk's node/minor
// pair in graph against LockD's centrally allocated map, the one
// consistency fact the local, pure Verifier cannot check on its own since
// minor numbers are handed out by LockD, not recorded per-disk.
func verifyDRBDMapAgainstLockD(ctx context.Context, c *Client, graph *entity.ConfigData) ([]string, error) {
	lockdMap, err := c.ComputeDRBDMap(ctx)
	if err != nil {
		return nil, err
	}
	byDiskNode := make(map[string]int, len(lockdMap))
	for _, e := range lockdMap {
		byDiskNode[e.DiskUUID+"|"+e.Node] = e.Minor
	}

	var problems []string
	for _, disk := range graph.Disks {
		if disk.Template != entity.DiskTemplateDRBD8 {
			continue
		}
		for _, node := range []string{disk.LogicalID.NodeA, disk.LogicalID.NodeB} {
			if node == "" {
				continue
			}
			minor, ok := byDiskNode[disk.UUID+"|"+node]
			if !ok {
				problems = append(problems, fmt.Sprintf("disk %s has no drbd minor allocated on node %s in LockD", disk.UUID, node))
				continue
			}
			var wantMinor int
			if node == disk.LogicalID.NodeA {
				wantMinor = disk.LogicalID.MinorA
			} else {
				wantMinor = disk.LogicalID.MinorB
			}
			if minor != wantMinor {
				problems = append(problems, fmt.Sprintf("disk %s minor mismatch on node %s: config has %d, LockD has %d",
					disk.UUID, node, wantMinor, minor))
			}
		}
	}
	return problems, nil
}
