// Package linktable keeps the peers of an overlay node in log2 distance bins.
//
// Bin b holds peers whose ring distance d satisfies 2^b <= d < 2^(b+1), so a
// node keeps many links to far away regions and few to close ones. Each bin
// has a fixed number of slots; a peer that lands in a full bin is dropped.
package linktable

import (
	"math/rand/v2"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/ringdist/ring"
)

var packageLogger = log.WithField("package", "linktable")

const (
	// DefaultNumSlots is the number of peers each bin can hold.
	DefaultNumSlots = 4

	// DefaultAddressSpace is the ring size used when none is given.
	DefaultAddressSpace = 10000
)

// A Peer is an entry of a link table.
type Peer struct {
	Addr     int64
	Distance int64
}

// A Table is the link table of one node.
type Table struct {
	addr     int64
	numSlots int
	metric   ring.Metric
	bins     [][]Peer
	seen     map[int64]bool
	size     int
}

// TableBuilder builds Tables.
type TableBuilder struct {
	addr      int64
	numSlots  int
	addrSpace int64
}

// MakeTableBuilder creates a TableBuilder with the default slots and address
// space.
func MakeTableBuilder() TableBuilder {
	return TableBuilder{
		numSlots:  DefaultNumSlots,
		addrSpace: DefaultAddressSpace,
	}
}

// WithAddress sets the address of the node that owns the table.
func (b TableBuilder) WithAddress(addr int64) TableBuilder {
	b.addr = addr
	return b
}

// WithNumSlots sets how many peers each bin holds.
func (b TableBuilder) WithNumSlots(n int) TableBuilder {
	b.numSlots = n
	return b
}

// WithAddressSpace sets the size of the ring.
func (b TableBuilder) WithAddressSpace(addrSpace int64) TableBuilder {
	b.addrSpace = addrSpace
	return b
}

// Build creates the Table.
func (b TableBuilder) Build() *Table {
	if b.numSlots <= 0 {
		panic("number of slots must be positive")
	}

	m := ring.MakeMetricBuilder().WithAddressSpace(b.addrSpace).Build()

	return &Table{
		addr:     b.addr,
		numSlots: b.numSlots,
		metric:   m,
		bins:     make([][]Peer, m.NumBins()),
		seen:     make(map[int64]bool),
	}
}

// Address returns the address of the node owning the table.
func (t *Table) Address() int64 {
	return t.addr
}

// NumBins returns the number of bins.
func (t *Table) NumBins() int {
	return len(t.bins)
}

// NumSlots returns the capacity of each bin.
func (t *Table) NumSlots() int {
	return t.numSlots
}

// AddressSpace returns the size of the ring.
func (t *Table) AddressSpace() int64 {
	return t.metric.AddressSpace()
}

// Size returns the number of peers in the table.
func (t *Table) Size() int {
	return t.size
}

// Has tells if addr is stored in the table.
func (t *Table) Has(addr int64) bool {
	for _, bin := range t.bins {
		for _, p := range bin {
			if p.Addr == addr {
				return true
			}
		}
	}

	return false
}

// Seen tells if addr was ever offered to the table, stored or not.
func (t *Table) Seen(addr int64) bool {
	return t.seen[addr]
}

// Store offers addr to the table. It returns true if the peer is stored.
// Known peers and peers that land in a full bin are not stored. Storing the
// table's own address, or an address whose distance is not positive, returns
// a ring domain error.
func (t *Table) Store(addr int64) (bool, error) {
	if t.Has(addr) {
		return false, nil
	}

	bin, err := t.metric.Bin(t.addr, addr)
	if err != nil {
		return false, err
	}

	if bin >= len(t.bins) {
		packageLogger.
			WithField("addr", addr).
			WithField("bin", bin).
			Warn("peer outside the address space")

		return false, nil
	}

	t.seen[addr] = true

	if len(t.bins[bin]) >= t.numSlots {
		return false, nil
	}

	t.bins[bin] = append(t.bins[bin], Peer{
		Addr:     addr,
		Distance: t.metric.Distance(t.addr, addr),
	})
	t.size++

	return true, nil
}

// Closest returns the stored peer closest to dest. It returns false if the
// table is empty.
func (t *Table) Closest(dest int64) (int64, bool) {
	found := false
	best := int64(0)
	bestDist := int64(0)

	for _, bin := range t.bins {
		for _, p := range bin {
			d := t.metric.Distance(dest, p.Addr)
			if !found || d < bestDist {
				found = true
				best = p.Addr
				bestDist = d
			}
		}
	}

	return best, found
}

// Peers returns all peers, nearest bin first.
func (t *Table) Peers() []Peer {
	peers := make([]Peer, 0, t.size)
	for _, bin := range t.bins {
		peers = append(peers, bin...)
	}

	return peers
}

// Bin returns the peers stored in bin b.
func (t *Table) Bin(b int) []Peer {
	return append([]Peer(nil), t.bins[b]...)
}

// BinSizes returns the number of peers in each bin.
func (t *Table) BinSizes() []int {
	sizes := make([]int, len(t.bins))
	for i, bin := range t.bins {
		sizes[i] = len(bin)
	}

	return sizes
}

// RandomPeer returns a uniformly chosen peer. It returns false if the table
// is empty.
func (t *Table) RandomPeer(rng *rand.Rand) (int64, bool) {
	if t.size == 0 {
		return 0, false
	}

	return t.Peers()[rng.IntN(t.size)].Addr, true
}

// RandomPeers chooses n peers. When n is at least the table size, all peers
// are returned. A non-positive n chooses none. Without duplicates, every peer is returned at most once.
func (t *Table) RandomPeers(
	rng *rand.Rand,
	n int,
	allowDuplicates bool,
) []int64 {
	if n <= 0 {
		return []int64{}
	}

	peers := t.Peers()

	if n >= len(peers) {
		addrs := make([]int64, len(peers))
		for i, p := range peers {
			addrs[i] = p.Addr
		}

		return addrs
	}

	addrs := make([]int64, 0, n)

	if allowDuplicates {
		for i := 0; i < n; i++ {
			addrs = append(addrs, peers[rng.IntN(len(peers))].Addr)
		}

		return addrs
	}

	for _, i := range rng.Perm(len(peers))[:n] {
		addrs = append(addrs, peers[i].Addr)
	}

	return addrs
}
