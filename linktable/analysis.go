package linktable

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sarchlab/ringdist/ring"
	"github.com/sarchlab/ringdist/topology"
)

// IdealBinning returns the expected number of peers per bin when numNodes
// nodes are spread uniformly over the ring. Bin b covers 2^b addresses on
// each side, and no bin can hold more than binSize peers.
func IdealBinning(numNodes int, addrSpace int64, binSize float64) []float64 {
	density := float64(numNodes) / float64(addrSpace)
	table := make([]float64, ring.NumBins(addrSpace))

	for b := range table {
		table[b] = density * (math.Exp2(float64(b+1)) - math.Exp2(float64(b)))
		if table[b] > binSize {
			table[b] = binSize
		}
	}

	return table
}

// ChiSquared measures how far observed bin sizes are from the expected ones.
func ChiSquared(observed, expected []float64) float64 {
	return stat.ChiSquare(observed, expected)
}

// BuildTables creates a link table for every id and offers it every other
// id in random order.
func BuildTables(
	ids []int64,
	addrSpace int64,
	numSlots int,
	rng *rand.Rand,
) (map[int64]*Table, error) {
	tables := make(map[int64]*Table, len(ids))

	for _, id := range ids {
		t := MakeTableBuilder().
			WithAddress(id).
			WithAddressSpace(addrSpace).
			WithNumSlots(numSlots).
			Build()

		for _, i := range rng.Perm(len(ids)) {
			if ids[i] == id {
				continue
			}

			if _, err := t.Store(ids[i]); err != nil {
				return nil, err
			}
		}

		tables[id] = t
	}

	return tables, nil
}

// ToGraph turns link tables into a graph with one edge per stored peer.
func ToGraph(tables map[int64]*Table, addrSpace int64) *topology.MemGraph {
	g := topology.NewMemGraph(addrSpace)

	for _, id := range sortedIDs(tables) {
		g.AddNode(id)

		for _, p := range tables[id].Peers() {
			g.AddEdge(id, p.Addr)
		}
	}

	return g
}

// An Analysis compares the average bin occupancy of a set of tables with the
// ideal binning.
type Analysis struct {
	Observed   []float64
	Ideal      []float64
	ChiSquared float64
}

// Analyze averages bin sizes over the tables and compares them with the
// ideal binning for the same number of nodes.
func Analyze(tables map[int64]*Table, addrSpace int64, numSlots int) Analysis {
	numBins := ring.NumBins(addrSpace)
	perBin := make([][]float64, numBins)

	for _, id := range sortedIDs(tables) {
		for b, size := range tables[id].BinSizes() {
			perBin[b] = append(perBin[b], float64(size))
		}
	}

	observed := make([]float64, numBins)
	for b, sizes := range perBin {
		if len(sizes) > 0 {
			observed[b] = stat.Mean(sizes, nil)
		}
	}

	ideal := IdealBinning(len(tables), addrSpace, float64(numSlots))

	a := Analysis{
		Observed: observed,
		Ideal:    ideal,
	}

	if len(ideal) > 0 && floats.Min(ideal) > 0 {
		a.ChiSquared = ChiSquared(observed, ideal)
	}

	packageLogger.
		WithField("tables", len(tables)).
		WithField("chi_squared", a.ChiSquared).
		Debug("link tables analyzed")

	return a
}

func sortedIDs(tables map[int64]*Table) []int64 {
	ids := make([]int64, 0, len(tables))
	for id := range tables {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
