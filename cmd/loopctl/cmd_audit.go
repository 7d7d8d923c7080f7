package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/netops-lab/loopctl/pkg/audit"
	"github.com/netops-lab/loopctl/pkg/cli"
)

var (
	auditFailed bool
	auditLimit  int
	auditJSON   bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit log",
	Long: `Query past plan/apply/rollback invocations from the audit log.

Examples:
  loopctl audit
  loopctl audit -d rtr01 --failed
  loopctl audit --limit 10 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditLogger == nil {
			return fmt.Errorf("audit logging is not available")
		}

		events, err := auditLogger.Query(audit.Filter{
			Device:      deviceName,
			FailureOnly: auditFailed,
			Limit:       auditLimit,
		})
		if err != nil {
			return err
		}

		if auditJSON {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		tbl := cli.NewTable("TIME", "USER", "DEVICE", "OP", "PLAN", "RESULT")
		for _, e := range events {
			planSummary := fmt.Sprintf("+%d ~%d -%d", e.Creates, e.Updates, e.Deletes)
			result := cli.Green("ok")
			if !e.Success {
				result = cli.Red(e.Error)
			}
			if e.DryRun && e.Operation == "apply" {
				result += " (dry-run)"
			}
			tbl.Row(
				e.Timestamp.Format(time.DateTime),
				e.User,
				e.Device,
				e.Operation,
				planSummary,
				result,
			)
		}
		tbl.Flush()

		if len(events) == 0 {
			fmt.Println("No audit events match.")
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().BoolVar(&auditFailed, "failed", false, "Only failed invocations")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "Limit the number of events (0 = all)")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "JSON output")
}
