package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ringdist/monitoring"
	"github.com/sarchlab/ringdist/recording"
	"github.com/sarchlab/ringdist/topology"
)

type annotateSettings struct {
	Input        string
	AddrSpace    int64
	ZeroDistance string
	Database     string
	DOT          string
}

func newAnnotateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate FILE",
		Short: "Annotate the edges of route tables with dist and edit.",
		Long: `Read route tables (lines of the form 42:[43],[40,45],[]), ` +
			`compute the ring and edit distance of every edge and print a ` +
			`summary. Use - to read from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(cmd, opts, args[0])
		},
	}

	addAddrSpaceFlag(cmd)
	addZeroMaxFlag(cmd)
	cmd.Flags().String("db", "",
		"record edge metrics into this SQLite database")
	cmd.Flags().String("dot", "",
		"write the annotated graph in DOT format to this file")

	return cmd
}

func runAnnotate(
	cmd *cobra.Command,
	opts *globalOptions,
	input string,
) (err error) {
	a, err := addrSpace(cmd)
	if err != nil {
		return err
	}

	dbPath, _ := cmd.Flags().GetString("db")
	dotPath, _ := cmd.Flags().GetString("dot")
	policy := zeroPolicy(cmd)

	g, err := readGraph(cmd, input, a)
	if err != nil {
		return err
	}

	annotator := topology.MakeAnnotatorBuilder().
		WithZeroDistancePolicy(policy).
		Build()

	if dbPath != "" {
		recorder, rerr := openRecorder(dbPath)
		if rerr != nil {
			return rerr
		}
		defer closeInto(&err, recorder)

		annotator.AcceptHook(recording.NewEdgeHook(recorder))
	}

	if m := opts.monitorInst; m != nil {
		m.RegisterSettings(&annotateSettings{
			Input:        input,
			AddrSpace:    a,
			ZeroDistance: policy.String(),
			Database:     dbPath,
			DOT:          dotPath,
		})
		annotator.AcceptHook(m.Metrics())

		bar := m.CreateProgressBar("annotate", uint64(len(g.Edges())))
		defer m.CompleteProgressBar(bar)

		annotator.AcceptHook(monitoring.ProgressHook{
			Bar: bar,
			Pos: topology.HookPosEdgeAnnotated,
		})
	}

	summary, err := annotator.Annotate(g)
	if err != nil {
		return err
	}

	if dotPath != "" {
		if err := writeDOTFile(dotPath, g); err != nil {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), summary)

	return nil
}

func readGraph(
	cmd *cobra.Command,
	input string,
	addrSpace int64,
) (*topology.MemGraph, error) {
	if input == "-" {
		return topology.ReadRouteTables(cmd.InOrStdin(), addrSpace)
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return topology.ReadRouteTables(f, addrSpace)
}

func writeDOTFile(path string, g *topology.MemGraph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := topology.WriteDOT(f, g); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func printSummary(w io.Writer, s topology.AnnotationSummary) {
	fmt.Fprintf(w, "edges: %d\n", s.Edges)
	fmt.Fprintf(w, "zero distance: %d\n", s.ZeroDistance)

	if s.Edges == 0 {
		return
	}

	fmt.Fprintf(w, "edit: min %d, max %d\n", s.MinEdit, s.MaxEdit)

	edits := make([]int, 0, len(s.EditHistogram))
	for edit := range s.EditHistogram {
		edits = append(edits, edit)
	}

	sort.Ints(edits)

	for _, edit := range edits {
		fmt.Fprintf(w, "edit %d: %d\n", edit, s.EditHistogram[edit])
	}
}
