// Package cmd provides the command-line interface of ringdist.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/ringdist/monitoring"
	"github.com/sarchlab/ringdist/recording"
)

// Environment variables read as flag defaults.
const (
	EnvAddrSpace = "RINGDIST_ADDR_SPACE"
	EnvLogLevel  = "RINGDIST_LOG_LEVEL"
)

const defaultEnvFile = ".env"

type globalOptions struct {
	logLevel    string
	envFile     string
	monitor     bool
	monitorPort int
	openBrowser bool

	monitorInst *monitoring.Monitor
}

// NewRootCmd creates the ringdist command with all its subcommands.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "ringdist",
		Short: "ringdist computes distances between nodes on a ring.",
		Long: `ringdist computes ring and edit distances between nodes of a ` +
			`circular address space, annotates route table graphs with them, ` +
			`generates churn workloads and analyzes link table binning.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return opts.teardown()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "",
		"log level (panic, fatal, error, warn, info, debug, trace); "+
			"defaults to $"+EnvLogLevel+" or warn")
	flags.StringVar(&opts.envFile, "env-file", defaultEnvFile,
		"file of KEY=VALUE lines loaded into the environment")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"serve progress and metrics over HTTP while running")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"port of the monitoring server; 0 picks a free port")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"open the monitoring server in a browser")

	rootCmd.AddCommand(
		newDistanceCmd(),
		newEditCmd(),
		newAnnotateCmd(opts),
		newWorkloadCmd(opts),
		newBinsCmd(),
	)

	return rootCmd
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func (o *globalOptions) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(o.envFile); err != nil {
		explicit := cmd.Flags().Changed("env-file")
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", o.envFile, err)
		}
	}

	if err := o.setupLogging(); err != nil {
		return err
	}

	if o.monitor {
		o.monitorInst = monitoring.NewMonitor().
			WithPortNumber(o.monitorPort).
			WithBrowser(o.openBrowser)

		if _, err := o.monitorInst.StartServer(); err != nil {
			return err
		}
	}

	return nil
}

func (o *globalOptions) setupLogging() error {
	level := o.logLevel
	if level == "" {
		level = os.Getenv(EnvLogLevel)
	}

	if level == "" {
		level = log.WarnLevel.String()
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}

	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	return nil
}

func (o *globalOptions) teardown() error {
	if o.monitorInst == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return o.monitorInst.StopServer(ctx)
}

func addAddrSpaceFlag(cmd *cobra.Command) {
	cmd.Flags().Int64("addr-space", 0,
		"size of the address space; defaults to $"+EnvAddrSpace)
}

// addrSpace returns the --addr-space flag, falling back to the environment.
func addrSpace(cmd *cobra.Command) (int64, error) {
	a, err := cmd.Flags().GetInt64("addr-space")
	if err != nil {
		return 0, err
	}

	if !cmd.Flags().Changed("addr-space") {
		raw, ok := os.LookupEnv(EnvAddrSpace)
		if !ok {
			return 0, fmt.Errorf("--addr-space or $%s is required",
				EnvAddrSpace)
		}

		a, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("$%s: %w", EnvAddrSpace, err)
		}
	}

	if a <= 0 {
		return 0, fmt.Errorf("address space must be positive, got %d", a)
	}

	return a, nil
}

// parseIDs reads the node ids of args and checks that they are on the ring.
func parseIDs(args []string, addrSpace int64) ([]int64, error) {
	ids := make([]int64, len(args))

	for i, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("node id %q: %w", arg, err)
		}

		if id < 0 || id >= addrSpace {
			return nil, fmt.Errorf("node id %d is outside [0, %d)",
				id, addrSpace)
		}

		ids[i] = id
	}

	return ids, nil
}

// openRecorder creates the database a command records into. Tests swap it.
var openRecorder = func(dbPath string) (recording.DataRecorder, error) {
	return recording.New(strings.TrimSuffix(dbPath, ".sqlite3"))
}

// closeInto closes c and keeps its error in *err unless *err is already set.
func closeInto(err *error, c io.Closer) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
