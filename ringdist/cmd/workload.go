package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/ringdist/monitoring"
	"github.com/sarchlab/ringdist/recording"
	"github.com/sarchlab/ringdist/sim"
	"github.com/sarchlab/ringdist/workload"
)

type workloadOptions struct {
	settings workload.Settings
	output   string
	gzip     bool
	db       string
}

func newWorkloadCmd(opts *globalOptions) *cobra.Command {
	wo := &workloadOptions{}

	cmd := &cobra.Command{
		Use:   "workload",
		Short: "Generate a node churn workload.",
		Long: `Generate a workload of node joins, searches, failures, leaves ` +
			`and recoveries. Delays between events are Poisson distributed ` +
			`with the given means; a zero mean disables the event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := addrSpace(cmd)
			if err != nil {
				return err
			}

			wo.settings.AddrSpace = a

			return runWorkload(cmd, opts, wo)
		},
	}

	flags := cmd.Flags()
	flags.Int64P("addr-space", "a", 0,
		"size of the address space; defaults to $"+EnvAddrSpace)
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "address-space" {
			name = "addr-space"
		}

		return pflag.NormalizedName(name)
	})

	s := &wo.settings
	flags.Float64VarP(&s.Length, "sim-max-length", "l", 0,
		"simulated seconds to generate; 0 runs until no event is left")
	flags.IntVarP(&s.NumNodes, "num-nodes", "n", 0,
		"number of nodes that join; 0 keeps joining")
	flags.BoolVarP(&s.JoinFirst, "all-joins-first", "f", false,
		"start node activity only after every node has joined")
	flags.Float64VarP(&s.MeanJoin, "mean-join-time", "j", 0,
		"mean seconds between joins")
	flags.Float64VarP(&s.MeanFailure, "mean-failure-time", "x", 0,
		"mean seconds until a node fails")
	flags.Float64VarP(&s.MeanLeave, "mean-leave-time", "q", 0,
		"mean seconds until a node leaves for good")
	flags.Float64VarP(&s.MeanRejoin, "mean-rejoin-time", "r", 0,
		"mean seconds until a failed node recovers")
	flags.Float64VarP(&s.MeanSearch, "mean-search-time", "s", 0,
		"mean seconds between searches of a node")
	flags.Uint64Var(&s.Seed, "seed", 0, "seed of the random generator")

	flags.StringVarP(&wo.output, "output", "o", "-",
		"file to write the workload to; - writes to standard output")
	flags.BoolVar(&wo.gzip, "gzip", false, "gzip compress the workload")
	flags.StringVar(&wo.db, "db", "",
		"record the operations into this SQLite database")

	return cmd
}

func runWorkload(
	cmd *cobra.Command,
	opts *globalOptions,
	wo *workloadOptions,
) (err error) {
	out, closeOut, err := openOutput(cmd, wo.output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if wo.gzip {
		zw := gzip.NewWriter(out)
		defer closeInto(&err, zw)

		out = zw
	}

	gen, err := workload.NewGenerator(wo.settings, out)
	if err != nil {
		return err
	}

	if log.IsLevelEnabled(log.TraceLevel) {
		gen.Engine().AcceptHook(sim.NewEventLogger(log.StandardLogger()))
	}

	if wo.db != "" {
		recorder, rerr := openRecorder(wo.db)
		if rerr != nil {
			return rerr
		}
		defer closeInto(&err, recorder)

		gen.AcceptHook(recording.NewOpHook(recorder))
	}

	if m := opts.monitorInst; m != nil {
		m.RegisterSettings(&wo.settings)
		m.RegisterEngine(gen.Engine())
		gen.AcceptHook(m.Metrics())

		if wo.settings.NumNodes > 0 {
			bar := m.CreateProgressBar("joins", uint64(wo.settings.NumNodes))
			defer m.CompleteProgressBar(bar)

			gen.AcceptHook(joinProgress{bar: bar})
		}
	}

	if err := gen.Run(cmd.Context()); err != nil {
		return err
	}

	log.WithField("ops", gen.OpCounts()).Info("workload written")

	return nil
}

func openOutput(
	cmd *cobra.Command,
	path string,
) (io.Writer, func() error, error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating workload file: %w", err)
	}

	return f, f.Close, nil
}

// joinProgress advances a bar for every node that joins.
type joinProgress struct {
	bar *monitoring.ProgressBar
}

func (h joinProgress) Func(ctx sim.HookCtx) {
	if op, ok := ctx.Item.(workload.Op); ok && op.Kind == workload.OpInit {
		h.bar.IncrementFinished(1)
	}
}
