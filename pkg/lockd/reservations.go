package lockd

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/go-redis/redis/v8"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
)

// reserveScript atomically claims name in the space's committed set
// (SADD ... NX semantics via SISMEMBER+SADD) and records its owning
// execution context in an ec-scoped set, so DropAllReservations can later
// undo every reservation a given caller made without touching committed
// ones it never scoped to an ec_id.
var reserveScript = redis.NewScript(`
local space_key = KEYS[1]
local ec_key = KEYS[2]
local name = ARGV[1]

if redis.call("SISMEMBER", space_key, name) == 1 then
	return 0
end
redis.call("SADD", space_key, name)
if ec_key ~= "" then
	redis.call("SADD", ec_key, name)
end
return 1
`)

func spaceKey(space string) string { return fmt.Sprintf("lockd:res:%s", space) }
func ecKey(space, ecID string) string {
	if ecID == "" {
		return ""
	}
	return fmt.Sprintf("lockd:res:%s:ec:%s", space, ecID)
}

// reserve claims name for space (mac/ip/drbd-minor/drbd-secret/lv) under
// ecID, returning a ReservationError if already taken.
func (c *Client) reserve(ctx context.Context, space, ecID, name string) error {
	res, err := reserveScript.Run(ctx, c.rdb, []string{spaceKey(space), ecKey(space, ecID)}, name).Int()
	if err != nil {
		return confutil.NewOpExecError(fmt.Sprintf("reserving %s %q: %v", space, name, err))
	}
	if res == 0 {
		return confutil.NewReservationError(space, name)
	}
	return nil
}

// generate calls gen repeatedly until it produces a name not already
// reserved in space, reserves it under ecID, and returns it. Mirrors the
// original's "generate one, reserve it, retry on collision" loop for
// MAC/IP/secret generation.
func (c *Client) generate(ctx context.Context, space, ecID string, gen func() (string, error), maxAttempts int) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := gen()
		if err != nil {
			return "", err
		}
		err = c.reserve(ctx, space, ecID, candidate)
		if err == nil {
			return candidate, nil
		}
		if _, ok := err.(*confutil.ReservationError); !ok {
			return "", err
		}
	}
	return "", confutil.NewOpExecError(fmt.Sprintf("could not find a free %s after %d attempts", space, maxAttempts))
}

const maxGenerateAttempts = 64

// GenerateMAC produces and reserves a fresh MAC address under the given
// cluster MAC prefix and execution context.
func (c *Client) GenerateMAC(ctx context.Context, ecID, macPrefix string) (string, error) {
	return c.generate(ctx, "mac", ecID, func() (string, error) { return randomMAC(macPrefix) }, maxGenerateAttempts)
}

// ReserveMAC reserves a caller-supplied MAC address.
func (c *Client) ReserveMAC(ctx context.Context, ecID, mac string) error {
	return c.reserve(ctx, "mac", ecID, mac)
}

func randomMAC(prefix string) (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", confutil.NewOpExecError(fmt.Sprintf("generating random MAC suffix: %v", err))
	}
	return fmt.Sprintf("%s:%02x:%02x:%02x", prefix, buf[0], buf[1], buf[2]), nil
}

// GenerateIP produces and reserves a fresh address from network (a CIDR
// string) within the given execution context.
func (c *Client) GenerateIP(ctx context.Context, ecID, network string, pool interface{ GenerateFree() (string, error) }) (string, error) {
	space := "ip:" + network
	return c.generate(ctx, space, ecID, pool.GenerateFree, maxGenerateAttempts)
}

// ReserveIP reserves a caller-supplied address within network.
func (c *Client) ReserveIP(ctx context.Context, ecID, network, ip string) error {
	return c.reserve(ctx, "ip:"+network, ecID, ip)
}

// ReleaseIP releases a previously reserved address back to network's pool.
func (c *Client) ReleaseIP(ctx context.Context, network, ip string) error {
	if err := c.rdb.SRem(ctx, spaceKey("ip:"+network), ip).Err(); err != nil {
		return confutil.NewOpExecError(fmt.Sprintf("releasing ip %s: %v", ip, err))
	}
	return nil
}

// ListReservedIPs returns every address currently reserved on network.
func (c *Client) ListReservedIPs(ctx context.Context, network string) ([]string, error) {
	ips, err := c.rdb.SMembers(ctx, spaceKey("ip:"+network)).Result()
	if err != nil {
		return nil, confutil.NewOpExecError(fmt.Sprintf("listing reserved ips on %s: %v", network, err))
	}
	return ips, nil
}

// ReserveLV reserves an LVM logical volume name within a volume group.
func (c *Client) ReserveLV(ctx context.Context, ecID, vgName, lvName string) error {
	return c.reserve(ctx, "lv:"+vgName, ecID, lvName)
}

// GenerateDRBDSecret produces and reserves a fresh DRBD shared secret.
func (c *Client) GenerateDRBDSecret(ctx context.Context, ecID string) (string, error) {
	return c.generate(ctx, "drbd-secret", ecID, randomDRBDSecret, maxGenerateAttempts)
}

func randomDRBDSecret() (string, error) {
	const charset = "0123456789abcdef"
	buf := make([]byte, 32)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", confutil.NewOpExecError(fmt.Sprintf("generating drbd secret: %v", err))
		}
		buf[i] = charset[n.Int64()]
	}
	return string(buf), nil
}

// DRBDMapEntry is one (node, minor) pair in the cluster-wide DRBD minor
// allocation map, keyed by the disk UUID it belongs to.
type DRBDMapEntry struct {
	DiskUUID string
	Node     string
	Minor    int
}

// ComputeDRBDMap returns the full node -> minor -> disk UUID allocation
// table LockD currently holds, used by the Verifier's cross-cluster DRBD
// consistency check.
func (c *Client) ComputeDRBDMap(ctx context.Context) ([]DRBDMapEntry, error) {
	raw, err := c.rdb.HGetAll(ctx, "lockd:drbd:map").Result()
	if err != nil {
		return nil, confutil.NewOpExecError(fmt.Sprintf("computing drbd map: %v", err))
	}
	entries := make([]DRBDMapEntry, 0, len(raw))
	for field, diskUUID := range raw {
		var node string
		var minor int
		if _, err := fmt.Sscanf(field, "%s %d", &node, &minor); err != nil {
			continue
		}
		entries = append(entries, DRBDMapEntry{DiskUUID: diskUUID, Node: node, Minor: minor})
	}
	return entries, nil
}

// AllocateDRBDMinor reserves the lowest free minor number on node for
// diskUUID and records it in the cluster-wide map.
func (c *Client) AllocateDRBDMinor(ctx context.Context, ecID, node, diskUUID string) (int, error) {
	for minor := 0; minor < 1<<16; minor++ {
		field := fmt.Sprintf("%s %d", node, minor)
		ok, err := c.rdb.HSetNX(ctx, "lockd:drbd:map", field, diskUUID).Result()
		if err != nil {
			return 0, confutil.NewOpExecError(fmt.Sprintf("allocating drbd minor: %v", err))
		}
		if ok {
			return minor, nil
		}
	}
	return 0, confutil.NewOpExecError(fmt.Sprintf("no free drbd minor on node %s", node))
}

// ReleaseDRBDMinors frees every minor allocation on node belonging to
// diskUUID, used when a disk or instance is removed.
func (c *Client) ReleaseDRBDMinors(ctx context.Context, node, diskUUID string) error {
	raw, err := c.rdb.HGetAll(ctx, "lockd:drbd:map").Result()
	if err != nil {
		return confutil.NewOpExecError(fmt.Sprintf("releasing drbd minors: %v", err))
	}
	for field, owner := range raw {
		if owner != diskUUID {
			continue
		}
		var n string
		var minor int
		if _, err := fmt.Sscanf(field, "%s %d", &n, &minor); err != nil {
			continue
		}
		if n == node {
			c.rdb.HDel(ctx, "lockd:drbd:map", field)
		}
	}
	return nil
}

// AddInstance enforces the one-RPC invariant that a newly created
// instance's name, UUID, and every NIC MAC it brings are unique across
// the whole cluster before anything is persisted, matching the original
// daemon's combined AddInstance check.
func (c *Client) AddInstance(ctx context.Context, ecID, instanceName, instanceUUID string, macs []string) error {
	if err := c.reserve(ctx, "instance-name", ecID, instanceName); err != nil {
		return err
	}
	if err := c.reserve(ctx, "uuid", ecID, instanceUUID); err != nil {
		return err
	}
	for _, mac := range macs {
		if err := c.reserve(ctx, "mac", ecID, mac); err != nil {
			return err
		}
	}
	return nil
}

// DropAllReservations releases every reservation (MAC, IP, LV, DRBD
// secret, instance name/UUID) made under ecID, the cleanup LockD performs
// when a job aborts mid-flight without committing.
func (c *Client) DropAllReservations(ctx context.Context, ecID string) error {
	if ecID == "" {
		return confutil.NewProgrammerErrorf("DropAllReservations requires a non-empty execution context id")
	}
	pattern := fmt.Sprintf("lockd:res:*:ec:%s", ecID)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		ecSetKey := iter.Val()
		space := ecSetKey[len("lockd:res:") : len(ecSetKey)-len(":ec:"+ecID)]
		names, err := c.rdb.SMembers(ctx, ecSetKey).Result()
		if err != nil {
			return confutil.NewOpExecError(fmt.Sprintf("listing reservations for ec %s: %v", ecID, err))
		}
		if len(names) > 0 {
			if err := c.rdb.SRem(ctx, spaceKey(space), toInterfaceSlice(names)...).Err(); err != nil {
				return confutil.NewOpExecError(fmt.Sprintf("dropping reservations for ec %s: %v", ecID, err))
			}
		}
		c.rdb.Del(ctx, ecSetKey)
	}
	if err := iter.Err(); err != nil {
		return confutil.NewOpExecError(fmt.Sprintf("scanning reservations for ec %s: %v", ecID, err))
	}
	return nil
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
