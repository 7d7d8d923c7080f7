package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/netops-lab/loopctl/pkg/audit"
	"github.com/netops-lab/loopctl/pkg/cli"
	"github.com/netops-lab/loopctl/pkg/journal"
	"github.com/netops-lab/loopctl/pkg/reconcile"
	"github.com/netops-lab/loopctl/pkg/util"
)

var (
	executeMode bool
	stopOnError bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply reconciliation plans (dry-run by default, -x to execute)",
	Long: `Compute each device's reconciliation plan and apply it through NSO.

Without -x every change goes through NSO's native dry-run: requests are
constructed and validated but nothing is committed. With -x changes are
committed with rollback-id tracking, and the run is journaled so
'loopctl rollback' can revert it.

Devices are applied independently in intent order; a failure on one
device does not stop later devices. Every action's outcome is reported
individually.

Examples:
  loopctl -f intent.yaml apply                    # Dry-run all devices
  loopctl -f intent.yaml apply -x                 # Execute
  loopctl -f intent.yaml apply -x -d rtr01        # One device
  loopctl -f intent.yaml apply -x --stop-on-error # Halt device on first failure`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := loadIntent()
		if err != nil {
			return err
		}

		client, err := newNSOClient()
		if err != nil {
			return err
		}

		jnl := openJournal(cmd.Context())
		if jnl != nil {
			defer jnl.Close()
		}

		applier := reconcile.NewApplier(client)
		opts := reconcile.Options{DryRun: !executeMode, StopOnError: stopOnError}

		if !executeMode {
			fmt.Println(cli.Yellow("DRY-RUN: no changes will be committed (use -x to execute)"))
			fmt.Println()
		}

		totalFailed := 0
		for i := range in.Devices {
			dev := &in.Devices[i]
			fmt.Printf("=== %s ===\n", cli.Bold(dev.Name))
			start := time.Now()

			event := audit.NewEvent(currentUser(), dev.Name, "apply").
				WithExecuteMode(executeMode)

			observed, err := client.ListLoopbacks(cmd.Context(), dev.Name)
			if err != nil {
				fmt.Printf("  %s: %v\n\n", cli.Red("ERROR"), err)
				logAudit(event.WithError(err).WithDuration(time.Since(start)))
				totalFailed++
				continue
			}

			plan, err := reconcile.ComputePlan(dev, observed)
			if err != nil {
				fmt.Printf("  %s: %v\n\n", cli.Red("ERROR"), err)
				logAudit(event.WithError(err).WithDuration(time.Since(start)))
				totalFailed++
				continue
			}
			event.WithPlan(plan)

			if plan.IsEmpty() {
				fmt.Println("  In sync - no changes needed")
				fmt.Println()
				logAudit(event.WithSuccess().WithDuration(time.Since(start)))
				continue
			}

			result, applyErr := applier.Apply(cmd.Context(), plan, opts)
			printActions(result)
			event.WithResult(result)

			if jnl != nil && executeMode {
				if err := jnl.Record(cmd.Context(), journal.NewRun(result)); err != nil {
					util.Warnf("Could not journal run: %v", err)
				}
			}

			switch {
			case applyErr != nil:
				logAudit(event.WithError(applyErr).WithDuration(time.Since(start)))
				totalFailed++
			case result.Failed() > 0:
				logAudit(event.WithError(fmt.Errorf("%d of %d actions failed",
					result.Failed(), len(result.Actions))).WithDuration(time.Since(start)))
				totalFailed++
			default:
				logAudit(event.WithSuccess().WithDuration(time.Since(start)))
			}
			fmt.Println()
		}

		if totalFailed > 0 {
			return fmt.Errorf("%d device(s) had failures", totalFailed)
		}
		return nil
	},
}

func printActions(result *reconcile.Result) {
	for _, a := range result.Actions {
		line := fmt.Sprintf("  [%s] %s Loopback%d", cli.Status(a.Err == nil), a.Action, a.LoopbackID)
		if a.RollbackID != 0 {
			line += fmt.Sprintf(" (rollback %d)", a.RollbackID)
		}
		fmt.Println(line)
		if a.Err != nil {
			fmt.Printf("        %v\n", a.Err)
		}
	}
	fmt.Printf("  %d succeeded, %d failed\n", result.Succeeded(), result.Failed())
}

// openJournal connects to the apply journal if one is configured.
// Apply works without it; rollback then needs explicit --id.
func openJournal(ctx context.Context) *journal.Journal {
	addr := os.Getenv("LOOPCTL_JOURNAL")
	if addr == "" && userSettings != nil {
		addr = userSettings.JournalAddress
	}
	if addr == "" {
		return nil
	}

	jnl, err := journal.Open(ctx, addr, 0)
	if err != nil {
		util.Warnf("Journal unavailable, runs will not be recorded: %v", err)
		return nil
	}
	return jnl
}

func init() {
	applyCmd.Flags().BoolVarP(&executeMode, "execute", "x", false, "Execute changes (default is dry-run)")
	applyCmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Stop a device's batch at the first failed action")
}
