package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ringdist/ring"
)

func newDistanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distance X Y",
		Short: "Print the ring distance between two nodes.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := addrSpace(cmd)
			if err != nil {
				return err
			}

			ids, err := parseIDs(args, a)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ring.Distance(a, ids[0], ids[1]))

			return nil
		},
	}

	addAddrSpaceFlag(cmd)

	return cmd
}

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit X Y",
		Short: "Print the edit distance between two nodes.",
		Long: `Print floor(log2(addr-space) - log2(distance)). Identical ` +
			`nodes have no edit distance unless --zero-max is given, in which ` +
			`case they get the largest edit distance of the address space.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := addrSpace(cmd)
			if err != nil {
				return err
			}

			ids, err := parseIDs(args, a)
			if err != nil {
				return err
			}

			metric := ring.MakeMetricBuilder().
				WithAddressSpace(a).
				WithZeroDistancePolicy(zeroPolicy(cmd)).
				Build()

			edit, err := metric.Edit(ids[0], ids[1])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), edit)

			return nil
		},
	}

	addAddrSpaceFlag(cmd)
	addZeroMaxFlag(cmd)

	return cmd
}

func addZeroMaxFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("zero-max", false,
		"give identical nodes the largest edit distance instead of failing")
}

func zeroPolicy(cmd *cobra.Command) ring.ZeroDistancePolicy {
	if zeroMax, _ := cmd.Flags().GetBool("zero-max"); zeroMax {
		return ring.ZeroDistanceMaxEdit
	}

	return ring.ZeroDistanceError
}
