package cmd

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ringdist/linktable"
	"github.com/sarchlab/ringdist/topology"
	"github.com/sarchlab/ringdist/workload"
)

func newBinsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bins",
		Short: "Compare link table binning with the ideal binning.",
		Long: `Build a link table for every node that joins in a workload, ` +
			`offering each table every other node, and print the average ` +
			`bin occupancy next to the ideal one together with their ` +
			`chi-squared statistic.`,
		Args: cobra.NoArgs,
		RunE: runBins,
	}

	cmd.Flags().String("workload", "", "workload file, plain or gzip")
	cmd.Flags().Int("slots", linktable.DefaultNumSlots, "peers per bin")
	cmd.Flags().Uint64("seed", 0, "seed of the order peers are offered in")
	cmd.Flags().String("dot", "",
		"write the link tables as an annotated DOT graph to this file")
	addAddrSpaceFlag(cmd)
	_ = cmd.MarkFlagRequired("workload")

	return cmd
}

func runBins(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("workload")
	slots, _ := cmd.Flags().GetInt("slots")
	seed, _ := cmd.Flags().GetUint64("seed")
	dotPath, _ := cmd.Flags().GetString("dot")

	if slots <= 0 {
		return fmt.Errorf("slots must be positive, got %d", slots)
	}

	w, err := readWorkload(path)
	if err != nil {
		return err
	}

	a, err := w.AddrSpace()
	if err != nil {
		fallback, ferr := addrSpace(cmd)
		if ferr != nil {
			return fmt.Errorf("%w; %w", err, ferr)
		}

		a = fallback
	}

	ids := w.JoinedNodes()
	if len(ids) == 0 {
		return errors.New("the workload has no joins")
	}

	rng := rand.New(rand.NewPCG(seed, seed))

	tables, err := linktable.BuildTables(ids, a, slots, rng)
	if err != nil {
		return err
	}

	analysis := linktable.Analyze(tables, a, slots)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "nodes: %d\n", len(tables))
	fmt.Fprintln(out, "bin\tobserved\tideal")

	for b := range analysis.Observed {
		fmt.Fprintf(out, "%d\t%.4f\t%.4f\n",
			b, analysis.Observed[b], analysis.Ideal[b])
	}

	fmt.Fprintf(out, "chi-squared: %.4f\n", analysis.ChiSquared)

	if dotPath != "" {
		g := linktable.ToGraph(tables, a)

		if _, err := topology.MakeAnnotatorBuilder().Build().Annotate(g); err != nil {
			return err
		}

		return writeDOTFile(dotPath, g)
	}

	return nil
}

func readWorkload(path string) (*workload.Workload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return workload.Parse(f)
}
