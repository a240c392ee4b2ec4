// Package reservation implements the two reservation tiers used by a
// session: an in-process UUID generator that never leaves the local
// process, and a LockD-bridged manager for every other scarce resource
// (MACs, IPs, DRBD minors/secrets, LV names) that must stay unique across
// the whole cluster, not just within one caller.
package reservation

import (
	"fmt"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
)

const maxUUIDAttempts = 64

// UUIDGenerator draws fresh UUIDs that collide with neither an existing
// entity nor another reservation currently held under a different
// execution context, mirroring the original's in-process
// _TemporaryReservationManager used solely for UUIDs.
type UUIDGenerator struct {
	reserved map[string]string // uuid -> ec_id
}

// NewUUIDGenerator builds an empty generator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{reserved: map[string]string{}}
}

// Generate draws UUIDs from randFn until one is in neither existingSet
// nor currently reserved by another execution context, records it under
// ecID, and returns it.
func (g *UUIDGenerator) Generate(existingSet map[string]bool, randFn func() string, ecID string) (string, error) {
	for attempt := 0; attempt < maxUUIDAttempts; attempt++ {
		candidate := randFn()
		if existingSet[candidate] {
			continue
		}
		if owner, ok := g.reserved[candidate]; ok && owner != ecID {
			continue
		}
		g.reserved[candidate] = ecID
		return candidate, nil
	}
	return "", confutil.NewOpExecError(fmt.Sprintf("could not generate a free uuid after %d attempts", maxUUIDAttempts))
}

// Reserve records a caller-supplied UUID as held by ecID, failing if it
// collides with an existing entity or another context's reservation.
func (g *UUIDGenerator) Reserve(existingSet map[string]bool, uuid, ecID string) error {
	if existingSet[uuid] {
		return confutil.NewReservationError("uuid", uuid)
	}
	if owner, ok := g.reserved[uuid]; ok && owner != ecID {
		return confutil.NewReservationError("uuid", uuid)
	}
	g.reserved[uuid] = ecID
	return nil
}

// DropECReservations releases every UUID reserved under ecID.
func (g *UUIDGenerator) DropECReservations(ecID string) {
	for uuid, owner := range g.reserved {
		if owner == ecID {
			delete(g.reserved, uuid)
		}
	}
}
