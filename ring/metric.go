package ring

// ZeroDistancePolicy decides what a Metric reports for the edit distance
// between a node and itself.
type ZeroDistancePolicy int

const (
	// ZeroDistanceError returns a *DomainError for identical ids.
	ZeroDistanceError ZeroDistancePolicy = iota

	// ZeroDistanceMaxEdit maps identical ids to MaxEdit(addrSpace).
	ZeroDistanceMaxEdit
)

func (p ZeroDistancePolicy) String() string {
	switch p {
	case ZeroDistanceError:
		return "error"
	case ZeroDistanceMaxEdit:
		return "max-edit"
	default:
		return "unknown"
	}
}

// IsValid tells if p is one of the known policies.
func (p ZeroDistancePolicy) IsValid() bool {
	return p == ZeroDistanceError || p == ZeroDistanceMaxEdit
}

// A Metric binds the ring functions to one address space.
type Metric struct {
	addrSpace  int64
	zeroPolicy ZeroDistancePolicy
}

// MetricBuilder builds Metrics.
type MetricBuilder struct {
	addrSpace  int64
	zeroPolicy ZeroDistancePolicy
}

// MakeMetricBuilder creates a MetricBuilder with the default zero distance
// policy, ZeroDistanceError.
func MakeMetricBuilder() MetricBuilder {
	return MetricBuilder{
		zeroPolicy: ZeroDistanceError,
	}
}

// WithAddressSpace sets the size of the ring.
func (b MetricBuilder) WithAddressSpace(addrSpace int64) MetricBuilder {
	b.addrSpace = addrSpace
	return b
}

// WithZeroDistancePolicy sets how identical ids are treated by Edit.
func (b MetricBuilder) WithZeroDistancePolicy(
	p ZeroDistancePolicy,
) MetricBuilder {
	b.zeroPolicy = p
	return b
}

func (b MetricBuilder) parametersMustBeValid() {
	if b.addrSpace <= 0 {
		panic("address space must be positive")
	}

	if !b.zeroPolicy.IsValid() {
		panic("unknown zero distance policy")
	}
}

// Build creates the Metric.
func (b MetricBuilder) Build() Metric {
	b.parametersMustBeValid()

	return Metric{
		addrSpace:  b.addrSpace,
		zeroPolicy: b.zeroPolicy,
	}
}

// AddressSpace returns the size of the ring.
func (m Metric) AddressSpace() int64 {
	return m.addrSpace
}

// ZeroDistancePolicy returns the policy used by Edit for identical ids.
func (m Metric) ZeroDistancePolicy() ZeroDistancePolicy {
	return m.zeroPolicy
}

// Distance returns the ring distance between x and y.
func (m Metric) Distance(x, y int64) int64 {
	return Distance(m.addrSpace, x, y)
}

// Edit returns the edit distance between x and y, applying the zero distance
// policy.
func (m Metric) Edit(x, y int64) (int, error) {
	d := Distance(m.addrSpace, x, y)

	if d == 0 && m.zeroPolicy == ZeroDistanceMaxEdit {
		return m.MaxEdit(), nil
	}

	if d <= 0 {
		return 0, newDomainError(m.addrSpace, x, y, d)
	}

	return editFromDistance(m.addrSpace, d), nil
}

// Bin returns the link-table bin of y as seen from x.
func (m Metric) Bin(x, y int64) (int, error) {
	return Bin(m.addrSpace, x, y)
}

// NumBins returns the number of link-table bins of the address space.
func (m Metric) NumBins() int {
	return NumBins(m.addrSpace)
}

// MaxEdit returns ceil(log2(addrSpace)).
func (m Metric) MaxEdit() int {
	return MaxEdit(m.addrSpace)
}
