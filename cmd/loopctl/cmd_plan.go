package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/netops-lab/loopctl/pkg/audit"
	"github.com/netops-lab/loopctl/pkg/cli"
	"github.com/netops-lab/loopctl/pkg/reconcile"
)

var planJSON bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute reconciliation plans without applying them",
	Long: `Compute each device's reconciliation plan: the creates, updates, and
deletes needed to bring observed loopback state to the declared intent.

Plan never mutates anything — it reads current state through NSO
(sync-from + config read) and prints the diff.

Examples:
  loopctl -f intent.yaml plan             # All declared devices
  loopctl -f intent.yaml plan -d rtr01    # One device
  loopctl -f intent.yaml plan --json      # Machine-readable output`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := loadIntent()
		if err != nil {
			return err
		}

		client, err := newNSOClient()
		if err != nil {
			return err
		}

		plans := make([]*reconcile.Plan, 0, len(in.Devices))
		for i := range in.Devices {
			dev := &in.Devices[i]
			start := time.Now()

			observed, err := client.ListLoopbacks(cmd.Context(), dev.Name)
			if err != nil {
				logAudit(audit.NewEvent(currentUser(), dev.Name, "plan").
					WithError(err).WithDuration(time.Since(start)))
				return err
			}

			plan, err := reconcile.ComputePlan(dev, observed)
			if err != nil {
				logAudit(audit.NewEvent(currentUser(), dev.Name, "plan").
					WithError(err).WithDuration(time.Since(start)))
				return err
			}

			logAudit(audit.NewEvent(currentUser(), dev.Name, "plan").
				WithPlan(plan).WithSuccess().WithDuration(time.Since(start)))
			plans = append(plans, plan)
		}

		if planJSON {
			return json.NewEncoder(os.Stdout).Encode(plans)
		}

		for _, plan := range plans {
			fmt.Printf("=== %s ===\n", cli.Bold(plan.Device))
			fmt.Println(plan.String())
			if !plan.IsEmpty() {
				fmt.Printf("  %s\n", plan.Summary())
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "JSON output")
}
