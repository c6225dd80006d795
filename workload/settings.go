// Package workload generates and parses overlay churn workloads.
//
// A workload is a text trace of node joins, searches, failures, leaves and
// recoveries on a ring address space:
//
//	# addr_space: 10000
//	time 3
//	4711 init 4711
//	time 9
//	4711 search 120
//
// "time T" lines advance the clock; every other non-comment line is an
// operation "<node> <op> [arg]".
package workload

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	log "github.com/sirupsen/logrus"
)

var packageLogger = log.WithField("package", "workload")

// Setting keys written in a workload header.
const (
	KeyAddrSpace   = "addr_space"
	KeyJoinFirst   = "join_first"
	KeyMeanJoin    = "mean_join"
	KeyMeanFailure = "mean_failure"
	KeyMeanLeave   = "mean_leave"
	KeyMeanRejoin  = "mean_rejoin"
	KeyMeanSearch  = "mean_search"
	KeyNumNodes    = "num_nodes"
	KeyLength      = "length"
	KeySeed        = "seed"
)

// Settings control a workload generator. Mean times are the means of the
// Poisson distributed delays between events; a zero mean disables the
// corresponding event.
type Settings struct {
	AddrSpace   int64
	NumNodes    int
	JoinFirst   bool
	MeanJoin    float64
	MeanFailure float64
	MeanLeave   float64
	MeanRejoin  float64
	MeanSearch  float64

	// Length is the simulated time to generate. Zero generates until the
	// context is cancelled or no event is left.
	Length float64
	Seed   uint64
}

// Validate checks that the settings describe a workload that can be
// generated.
func (s Settings) Validate() error {
	if s.AddrSpace <= 0 {
		return errors.New("workload: address space must be positive")
	}

	if s.MeanJoin <= 0 {
		return errors.New("workload: mean join time must be positive")
	}

	if s.JoinFirst && s.NumNodes <= 0 {
		return errors.New("workload: join first needs the number of nodes")
	}

	if s.NumNodes < 0 || s.Length < 0 ||
		s.MeanFailure < 0 || s.MeanLeave < 0 ||
		s.MeanRejoin < 0 || s.MeanSearch < 0 {
		return errors.New("workload: negative setting")
	}

	return nil
}

func (s Settings) writeHeader(w io.Writer) error {
	lines := [][2]string{
		{KeyAddrSpace, strconv.FormatInt(s.AddrSpace, 10)},
		{KeyJoinFirst, strconv.FormatBool(s.JoinFirst)},
		{KeyMeanJoin, formatFloat(s.MeanJoin)},
		{KeyMeanFailure, formatFloat(s.MeanFailure)},
		{KeyMeanLeave, formatFloat(s.MeanLeave)},
		{KeyMeanRejoin, formatFloat(s.MeanRejoin)},
		{KeyMeanSearch, formatFloat(s.MeanSearch)},
		{KeyNumNodes, strconv.Itoa(s.NumNodes)},
		{KeyLength, formatFloat(s.Length)},
		{KeySeed, strconv.FormatUint(s.Seed, 10)},
	}

	if _, err := fmt.Fprintln(w, "# Settings:"); err != nil {
		return err
	}

	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "# %s: %s\n", l[0], l[1]); err != nil {
			return err
		}
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
