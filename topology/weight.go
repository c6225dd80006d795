package topology

import (
	"fmt"

	"github.com/sarchlab/ringdist/ring"
)

// AddressSpaceGetter returns the size of the ring.
type AddressSpaceGetter func() (int64, error)

// EndpointGetter returns the ids of the two endpoints of an edge.
type EndpointGetter func() (int64, int64, error)

// GraphAddressSpace reads the address space from the graph's addr_space
// property.
func GraphAddressSpace(g Graph) AddressSpaceGetter {
	return func() (int64, error) {
		return IntProperty(g, PropAddrSpace)
	}
}

// EdgeEndpoints reads the id property of the source and the target of e.
func EdgeEndpoints(e Edge) EndpointGetter {
	return func() (int64, int64, error) {
		x, err := IntProperty(e.Source(), PropID)
		if err != nil {
			return 0, 0, err
		}

		y, err := IntProperty(e.Target(), PropID)
		if err != nil {
			return 0, 0, err
		}

		return x, y, nil
	}
}

// DistFunction returns the ring distance between the endpoints. Each getter
// is called exactly once.
func DistFunction(
	getAddrSpace AddressSpaceGetter,
	getEndpoints EndpointGetter,
) (int64, error) {
	addrSpace, err := getAddrSpace()
	if err != nil {
		return 0, err
	}

	x, y, err := getEndpoints()
	if err != nil {
		return 0, err
	}

	return ring.Distance(addrSpace, x, y), nil
}

// EditFunction returns the edit distance between the endpoints, applying
// policy to identical ids. Each getter is called exactly once.
func EditFunction(
	getAddrSpace AddressSpaceGetter,
	getEndpoints EndpointGetter,
	policy ring.ZeroDistancePolicy,
) (int, error) {
	if !policy.IsValid() {
		return 0, fmt.Errorf("unknown zero distance policy %d", int(policy))
	}

	addrSpace, err := getAddrSpace()
	if err != nil {
		return 0, err
	}

	x, y, err := getEndpoints()
	if err != nil {
		return 0, err
	}

	if policy == ring.ZeroDistanceMaxEdit && ring.Distance(addrSpace, x, y) == 0 {
		return ring.MaxEdit(addrSpace), nil
	}

	return ring.EditDistance(addrSpace, x, y)
}
