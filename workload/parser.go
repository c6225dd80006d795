package workload

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/sarchlab/ringdist/sim"
)

var (
	settingRE = regexp.MustCompile(`^#\s*([\w\-?!][\w\-?! ]*?)\s*:\s*(.*)$`)
	timeRE    = regexp.MustCompile(`^time\s+(\S+)$`)
	opRE      = regexp.MustCompile(`^(\d+)\s+(\w+)\s*(.*)$`)
)

// A Workload is a parsed workload trace.
type Workload struct {
	Settings map[string]string
	Ops      []Op
}

// Parse reads a workload. Gzip compressed input is detected and
// decompressed.
func Parse(r io.Reader) (*Workload, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()

		return parse(zr)
	}

	return parse(br)
}

func parse(r io.Reader) (*Workload, error) {
	w := &Workload{Settings: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	now := sim.VTimeInSec(0)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			if m := settingRE.FindStringSubmatch(line); m != nil {
				w.Settings[settingKey(m[1])] = m[2]
			}

			continue
		}

		if m := timeRE.FindStringSubmatch(line); m != nil {
			t, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return nil, fmt.Errorf("workload line %d: %w", lineNo, err)
			}

			now = sim.VTimeInSec(t)

			continue
		}

		op, err := parseOp(line)
		if err != nil {
			return nil, fmt.Errorf("workload line %d: %w", lineNo, err)
		}

		op.Time = now
		w.Ops = append(w.Ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return w, nil
}

// settingKey turns header keys such as "Addr space" into "addr_space".
func settingKey(raw string) string {
	return strings.ReplaceAll(strings.ToLower(raw), " ", "_")
}

func parseOp(line string) (Op, error) {
	m := opRE.FindStringSubmatch(line)
	if m == nil {
		return Op{}, fmt.Errorf("expected <node> <op> [arg], got %q", line)
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Op{}, err
	}

	op := Op{Node: id, Kind: m[2]}

	if m[3] != "" {
		op.Arg, err = strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			return Op{}, fmt.Errorf("argument of %s: %w", op.Kind, err)
		}

		op.HasArg = true
	}

	return op, nil
}

// AddrSpace returns the address space recorded in the header.
func (w *Workload) AddrSpace() (int64, error) {
	raw, ok := w.Settings[KeyAddrSpace]
	if !ok {
		return 0, fmt.Errorf("workload: setting %s not found", KeyAddrSpace)
	}

	return strconv.ParseInt(raw, 10, 64)
}

// JoinedNodes returns the ids of the init operations in order.
func (w *Workload) JoinedNodes() []int64 {
	var ids []int64

	for _, op := range w.Ops {
		if op.Kind == OpInit {
			ids = append(ids, op.Node)
		}
	}

	return ids
}

// CountByKind returns the number of operations of each kind.
func (w *Workload) CountByKind() map[string]int {
	counts := make(map[string]int)
	for _, op := range w.Ops {
		counts[op.Kind]++
	}

	return counts
}
