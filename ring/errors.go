package ring

import (
	"errors"
	"fmt"
)

// ErrDomain is matched by every DomainError. It reports that a logarithm was
// requested for a non-positive ring distance.
var ErrDomain = errors.New("ring: logarithm of non-positive distance")

// DomainError is returned when a log-scale metric is requested for two ids
// whose ring distance is zero (the same node) or negative (ids outside the
// address space).
type DomainError struct {
	AddrSpace int64
	X, Y      int64
	Distance  int64
}

func newDomainError(addrSpace, x, y, d int64) *DomainError {
	return &DomainError{
		AddrSpace: addrSpace,
		X:         x,
		Y:         y,
		Distance:  d,
	}
}

func (e *DomainError) Error() string {
	return fmt.Sprintf(
		"ring: distance between %d and %d is %d in address space %d, "+
			"logarithm undefined",
		e.X, e.Y, e.Distance, e.AddrSpace)
}

// Is makes errors.Is(err, ErrDomain) true for any DomainError.
func (e *DomainError) Is(target error) bool {
	return target == ErrDomain
}

// IsZeroDistance tells if the error was caused by two identical ids.
func (e *DomainError) IsZeroDistance() bool {
	return e.Distance == 0
}
