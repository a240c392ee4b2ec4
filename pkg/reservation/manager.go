package reservation

import (
	"context"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

// Manager is the scarce-resource reservation interface a session uses for
// everything except UUIDs: MAC addresses, IP addresses, DRBD minors and
// secrets, and LV names. Two implementations exist — a LockD-backed one
// for online sessions, and an OfflineManager that rejects every call,
// matching the original's rule that these reservation RPCs simply do not
// exist without a running coordination daemon.
type Manager interface {
	GenerateMAC(ctx context.Context, ecID, macPrefix string) (string, error)
	ReserveMAC(ctx context.Context, ecID, mac string) error

	GenerateIP(ctx context.Context, ecID, network string, pool AddressPool) (string, error)
	ReserveIP(ctx context.Context, ecID, network, ip string) error
	ReleaseIP(ctx context.Context, network, ip string) error
	ListReservedIPs(ctx context.Context, network string) ([]string, error)

	ReserveLV(ctx context.Context, ecID, vgName, lvName string) error

	GenerateDRBDSecret(ctx context.Context, ecID string) (string, error)
	AllocateDRBDMinor(ctx context.Context, ecID, node, diskUUID string) (int, error)
	ReleaseDRBDMinors(ctx context.Context, node, diskUUID string) error

	AddInstance(ctx context.Context, ecID, instanceName, instanceUUID string, macs []string) error
	DropAllReservations(ctx context.Context, ecID string) error
}

// AddressPool is the subset of entity.AddressPool a Manager needs to hand
// out a free address, kept as an interface here so pkg/reservation never
// imports the Manager's concrete caller back into entity.
type AddressPool interface {
	GenerateFree() (string, error)
}

var _ AddressPool = (*entity.AddressPool)(nil)

// OfflineManager rejects every reservation RPC with a ProgrammerError,
// matching spec's "offline mode disallows the LockD-backed [managers];
// callers that must operate offline use only UUID reservation."
type OfflineManager struct{}

func (OfflineManager) reject() error {
	return confutil.NewProgrammerErrorf("reservation RPC called while offline: LockD is unavailable")
}

func (o OfflineManager) GenerateMAC(context.Context, string, string) (string, error) { return "", o.reject() }
func (o OfflineManager) ReserveMAC(context.Context, string, string) error            { return o.reject() }

func (o OfflineManager) GenerateIP(context.Context, string, string, AddressPool) (string, error) {
	return "", o.reject()
}
func (o OfflineManager) ReserveIP(context.Context, string, string, string) error { return o.reject() }
func (o OfflineManager) ReleaseIP(context.Context, string, string) error         { return o.reject() }
func (o OfflineManager) ListReservedIPs(context.Context, string) ([]string, error) {
	return nil, o.reject()
}

func (o OfflineManager) ReserveLV(context.Context, string, string, string) error { return o.reject() }

func (o OfflineManager) GenerateDRBDSecret(context.Context, string) (string, error) {
	return "", o.reject()
}
func (o OfflineManager) AllocateDRBDMinor(context.Context, string, string, string) (int, error) {
	return 0, o.reject()
}
func (o OfflineManager) ReleaseDRBDMinors(context.Context, string, string) error { return o.reject() }

func (o OfflineManager) AddInstance(context.Context, string, string, string, []string) error {
	return o.reject()
}
func (o OfflineManager) DropAllReservations(context.Context, string) error { return o.reject() }
