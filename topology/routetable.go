package topology

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	routeLineRE = regexp.MustCompile(`^(\d+):(.*)$`)
	routeBinRE  = regexp.MustCompile(`\[([^\]]*)\]`)
)

// ReadRouteTables builds a graph from route table dumps. Each line holds one
// node and its peers grouped in bins:
//
//	42:[43],[40,45],[],[50]
//
// Every listed peer becomes an edge from the node to the peer. Blank lines and
// lines starting with '#' are skipped.
func ReadRouteTables(r io.Reader, addrSpace int64) (*MemGraph, error) {
	g := NewMemGraph(addrSpace)
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := parseRouteLine(g, line); err != nil {
			return nil, fmt.Errorf("route table line %d: %w", lineNo, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	packageLogger.
		WithField("nodes", len(g.order)).
		WithField("edges", len(g.edges)).
		Debug("route tables loaded")

	return g, nil
}

func parseRouteLine(g *MemGraph, line string) error {
	m := routeLineRE.FindStringSubmatch(line)
	if m == nil {
		return fmt.Errorf("expected <id>:[peers]..., got %q", line)
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return err
	}

	g.AddNode(id)

	for _, bin := range routeBinRE.FindAllStringSubmatch(m[2], -1) {
		if strings.TrimSpace(bin[1]) == "" {
			continue
		}

		for _, field := range strings.Split(bin[1], ",") {
			peer, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				return fmt.Errorf("peer of node %d: %w", id, err)
			}

			g.AddEdge(id, peer)
		}
	}

	return nil
}

// WriteDOT writes the graph in the Graphviz DOT language. Graph and edge
// properties become attributes.
func WriteDOT(w io.Writer, g *MemGraph) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph G {")

	for _, name := range g.names() {
		fmt.Fprintf(bw, "\t%s=%q;\n", name, g.properties[name])
	}

	for _, n := range g.Nodes() {
		fmt.Fprintf(bw, "\t%d;\n", n.id)
	}

	for _, e := range g.edges {
		fmt.Fprintf(bw, "\t%d -> %d", e.src.id, e.dst.id)

		names := e.names()
		if len(names) > 0 {
			attrs := make([]string, 0, len(names))
			for _, name := range names {
				attrs = append(attrs, fmt.Sprintf("%s=%q", name, e.properties[name]))
			}

			fmt.Fprintf(bw, " [%s]", strings.Join(attrs, ", "))
		}

		fmt.Fprintln(bw, ";")
	}

	fmt.Fprintln(bw, "}")

	return bw.Flush()
}
