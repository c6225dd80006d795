// Package ring provides distance metrics on a circular address space.
//
// Positions live on a ring of size addrSpace, where position addrSpace-1 is
// adjacent to position 0. All functions in this package are pure and safe to
// call from multiple goroutines.
package ring

import "math"

// Distance returns the length of the shortest path between x and y on a ring
// of size addrSpace. The path either goes straight from the lower id to the
// higher id, or wraps around through position 0.
//
// The ids are not validated. Passing ids outside [0, addrSpace) or a
// non-positive addrSpace yields a value that has no ring meaning.
func Distance(addrSpace, x, y int64) int64 {
	direct := y - x
	if direct < 0 {
		direct = -direct
	}

	lo, hi := x, y
	if y < x {
		lo, hi = y, x
	}

	wrap := (addrSpace - hi) + lo

	if direct < wrap {
		return direct
	}

	return wrap
}

// NumBins returns the number of log2-sized bins needed to cover every
// possible distance in the address space.
func NumBins(addrSpace int64) int {
	return int(math.Ceil(math.Log2(float64(addrSpace))))
}

// Bin returns the index of the log2 bin that the distance between x and y
// falls into. Peers at distance d go to bin floor(log2(d)).
func Bin(addrSpace, x, y int64) (int, error) {
	d := Distance(addrSpace, x, y)
	if d <= 0 {
		return 0, newDomainError(addrSpace, x, y, d)
	}

	return int(math.Floor(math.Log2(float64(d)))), nil
}
