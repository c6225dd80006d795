package ring

import "math"

// EditDistance returns floor(log2(addrSpace) - log2(Distance(addrSpace, x,
// y))), the number of halvings of the address space that separates x from y.
//
// A zero or negative distance returns a *DomainError.
func EditDistance(addrSpace, x, y int64) (int, error) {
	d := Distance(addrSpace, x, y)
	if d <= 0 {
		return 0, newDomainError(addrSpace, x, y, d)
	}

	return editFromDistance(addrSpace, d), nil
}

// MaxEdit is the largest edit distance the address space can produce. It is
// the value returned for identical ids under ZeroDistanceMaxEdit.
func MaxEdit(addrSpace int64) int {
	return NumBins(addrSpace)
}

func editFromDistance(addrSpace, d int64) int {
	v := math.Log2(float64(addrSpace)) - math.Log2(float64(d))
	return int(math.Floor(v))
}
