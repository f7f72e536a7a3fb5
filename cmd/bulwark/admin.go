package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bulwarklabs/bulwark/pkg/gate"
	"github.com/bulwarklabs/bulwark/pkg/killswitch"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print kill-switch and gate state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		state, err := rt.killSwch.Status(ctx)
		if err != nil {
			return err
		}
		writeStatus(os.Stdout, state, rt.gate.State().Snapshot())
		return nil
	},
}

// writeStatus renders the kill-switch record and gate counters.
func writeStatus(w io.Writer, state killswitch.State, snap gate.Snapshot) {
	mode := "ACTIVE"
	if state.Frozen {
		mode = "FROZEN"
	}
	fmt.Fprintln(w, "Kill Switch :", mode)
	if state.Frozen {
		fmt.Fprintln(w, "Reason      :", state.Reason)
		fmt.Fprintln(w, "Triggered By:", state.TriggeredBy)
		if !state.TriggeredAt.IsZero() {
			fmt.Fprintln(w, "Since       :", state.TriggeredAt.Format(time.RFC3339))
		}
		if state.ExpiresAt != nil {
			fmt.Fprintln(w, "Expires     :", state.ExpiresAt.Format(time.RFC3339))
		}
	}
	fmt.Fprintln(w, "OS Violations:", snap.RecentOSViolations)
	fmt.Fprintln(w, "High Risk Tx :", snap.RecentHighRiskTx)
}

var freezeCmd = &cobra.Command{
	Use:   "freeze [reason]",
	Short: "Engage the kill switch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		reason := "MANUAL_FREEZE"
		if len(args) == 1 {
			reason = args[0]
		}
		dur, err := cmd.Flags().GetDuration("for")
		if err != nil {
			return err
		}
		if err := rt.killSwch.Freeze(ctx, reason, "CLI", dur); err != nil {
			return err
		}
		fmt.Println("System frozen:", reason)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Release the kill switch and clear gate state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.gate.ResetState(ctx, "CLI"); err != nil {
			return err
		}
		fmt.Println("System resumed.")
		return nil
	},
}

func init() {
	freezeCmd.Flags().Duration("for", 0, "auto-expire the freeze after this duration (0 = indefinite)")
}
