// Package cmd provides the CLI commands for nostrelay.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"nostrelay/core"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewVerifyCmd creates the 'verify' command. It reads one envelope from a file
// (or stdin with no argument), runs the full validity check, and exits 0 only
// when the event is valid.
func NewVerifyCmd() *cobra.Command {
	var noColor bool
	var futureSeconds int64

	cmd := &cobra.Command{
		Use:   "verify [file]",
		Short: "Verify a signed event envelope",
		Long: `Verify a signed event envelope read from a file or stdin.

The envelope is decoded, the event's canonical form is hashed and compared to
its claimed id, and the schnorr signature is verified against the claimed
pubkey. The reject reason is printed on failure and the exit code is
non-zero.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(args)
			if err != nil {
				return err
			}

			var policy core.Policy
			if cmd.Flags().Changed("reject-future-seconds") {
				policy.RejectFutureSeconds = &futureSeconds
			}
			validator := core.NewValidator(policy, zap.NewNop().Sugar())

			envelope, err := core.DecodeEnvelope(raw)
			if err == nil {
				err = validator.Validate(&envelope.Event)
			}
			if err != nil {
				fmt.Printf("%s %s\n",
					color.New(color.FgRed).Sprint("invalid:"),
					core.RejectReason(err))
				if errors.Is(err, core.ErrUnknownCommand) || errors.Is(err, core.ErrDecode) {
					fmt.Printf("  %v\n", err)
				}
				// The error reaches main, which exits non-zero.
				return fmt.Errorf("event rejected: %s", core.RejectReason(err))
			}

			fmt.Printf("%s event %s\n",
				color.New(color.FgGreen).Sprint("valid:"),
				envelope.Event.IDPrefix())
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().Int64Var(&futureSeconds, "reject-future-seconds", 0,
		"Reject events created more than this many seconds in the future")

	return cmd
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return raw, nil
}
