package entity

import (
	"math/big"
	"net"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
)

// Network is an IP address pool available for NICs to bind to, tracking
// which addresses are already reserved either externally (gateway,
// reserved ranges) or by an instance's NIC.
type Network struct {
	TimestampedObject
	Taggable

	UUID string `json:"uuid"`
	Name string `json:"name"`

	Network  string `json:"network"`
	Network6 string `json:"network6,omitempty"`
	Gateway  string `json:"gateway,omitempty"`
	Gateway6 string `json:"gateway6,omitempty"`

	MACPrefix string `json:"mac_prefix,omitempty"`

	// ReservedMap and ExternalMap hold a '1'/'0' character per address in
	// Network, in address order, mirroring the original's bitarray-backed
	// reserved/ext_reservations strings: '1' at offset i means address i
	// (counting from the network address itself, offset 0) is taken.
	ReservedMap string `json:"reservations,omitempty"`
	ExternalMap string `json:"ext_reservations,omitempty"`
}

// GetUUID returns the network's UUID.
func (n *Network) GetUUID() string { return n.UUID }

// ToDict serializes the network to its canonical dict form.
func (n *Network) ToDict() (Dict, error) { return toDict(n) }

// FromDict populates the network from its canonical dict form.
func (n *Network) FromDict(d Dict) error { return fromDict(d, n) }

// NewNetwork constructs a Network over the given IPv4 CIDR with every
// address unreserved; the network and broadcast addresses are not
// pre-reserved.
func NewNetwork(name, cidr string, now float64) (*Network, error) {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, confutil.NewOpPrereqErrorf(confutil.ECodeInval, "invalid network CIDR %q: %v", cidr, err)
	}
	size := addressCount(ipNet)
	n := &Network{
		UUID:        confutil.NewUUID(),
		Name:        name,
		Network:     cidr,
		ReservedMap: emptyBitmap(size),
		ExternalMap: emptyBitmap(size),
	}
	n.initTimestamps(now)
	n.Tags = NewStringSet()
	return n, nil
}

// addressCount returns the number of addresses in ipNet (2^(32-prefixlen)
// for IPv4).
func addressCount(ipNet *net.IPNet) int64 {
	ones, bits := ipNet.Mask.Size()
	count := new(big.Int).Lsh(big.NewInt(1), uint(bits-ones))
	return count.Int64()
}

func emptyBitmap(size int64) string {
	b := make([]byte, size)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

// pool returns a fresh AddressPool view over n, the same way the original
// wraps a Network config object in an AddressPool for every address
// operation rather than storing pool logic on the entity itself.
func (n *Network) pool() (*AddressPool, error) {
	_, ipNet, err := net.ParseCIDR(n.Network)
	if err != nil {
		return nil, err
	}
	return &AddressPool{net: n, ipNet: ipNet}, nil
}

// AddressPool is a transient helper offering address-offset arithmetic and
// reservation bitmap manipulation over a Network. It holds no persisted
// state of its own, mirroring the original network.AddressPool wrapper.
type AddressPool struct {
	net   *Network
	ipNet *net.IPNet
}

// Pool returns an AddressPool over n, or an error if n.Network is not a
// well-formed CIDR.
func (n *Network) Pool() (*AddressPool, error) { return n.pool() }

// offsetOf converts an address to its bit offset within the network.
func (p *AddressPool) offsetOf(ip net.IP) (int, bool) {
	ip4 := ip.To4()
	base := p.ipNet.IP.To4()
	if ip4 == nil || base == nil || !p.ipNet.Contains(ip4) {
		return 0, false
	}
	var off int
	for i := 0; i < 4; i++ {
		off = off<<8 | int(ip4[i]-base[i])
	}
	return off, true
}

// IsReserved reports whether addr is already reserved, either by an
// instance's NIC or externally.
func (p *AddressPool) IsReserved(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	off, ok := p.offsetOf(ip)
	if !ok {
		return true
	}
	return bitSet(p.net.ReservedMap, off) || bitSet(p.net.ExternalMap, off)
}

// Reserve marks addr as used by an instance NIC.
func (p *AddressPool) Reserve(addr string) error {
	ip := net.ParseIP(addr)
	if ip == nil {
		return confutil.NewReservationError("ip", addr)
	}
	off, ok := p.offsetOf(ip)
	if !ok {
		return confutil.NewOpPrereqErrorf(confutil.ECodeInval, "address %s not in network %s", addr, p.net.Network)
	}
	if bitSet(p.net.ReservedMap, off) {
		return confutil.NewReservationError("ip", addr)
	}
	p.net.ReservedMap = setBit(p.net.ReservedMap, off, true)
	return nil
}

// Release frees addr previously reserved via Reserve.
func (p *AddressPool) Release(addr string) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return
	}
	if off, ok := p.offsetOf(ip); ok {
		p.net.ReservedMap = setBit(p.net.ReservedMap, off, false)
	}
}

// GenerateFree returns the first unreserved address in the pool.
func (p *AddressPool) GenerateFree() (string, error) {
	for i := 0; i < len(p.net.ReservedMap); i++ {
		if !bitSet(p.net.ReservedMap, i) && !bitSet(p.net.ExternalMap, i) {
			return p.addressAt(i), nil
		}
	}
	return "", confutil.NewOpPrereqErrorf(confutil.ECodeNoRes, "network %s is exhausted", p.net.Name)
}

func (p *AddressPool) addressAt(offset int) string {
	base := p.ipNet.IP.To4()
	ip := make(net.IP, 4)
	v := int(base[0])<<24 | int(base[1])<<16 | int(base[2])<<8 | int(base[3])
	v += offset
	ip[0] = byte(v >> 24)
	ip[1] = byte(v >> 16)
	ip[2] = byte(v >> 8)
	ip[3] = byte(v)
	return ip.String()
}

func bitSet(bitmap string, i int) bool {
	if i < 0 || i >= len(bitmap) {
		return true
	}
	return bitmap[i] == '1'
}

func setBit(bitmap string, i int, v bool) string {
	b := []byte(bitmap)
	if i < 0 || i >= len(b) {
		return bitmap
	}
	if v {
		b[i] = '1'
	} else {
		b[i] = '0'
	}
	return string(b)
}

// UpgradeConfig fills defaults introduced after this record's version.
func (n *Network) UpgradeConfig() {
	if n.Tags == nil {
		n.Tags = NewStringSet()
	}
}
