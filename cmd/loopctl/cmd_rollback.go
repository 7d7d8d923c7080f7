package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netops-lab/loopctl/pkg/audit"
	"github.com/netops-lab/loopctl/pkg/cli"
)

var rollbackID int

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the most recent journaled apply run",
	Long: `Revert a committed apply run using NSO's rollback files.

Without --id the most recent journaled run for the selected device (or
any device) is reverted: each of its commits is rolled back newest
first using the rollback fixed-numbers recorded in the journal.

With --id a single NSO rollback fixed-number is applied directly,
which works even when no journal is configured.

Examples:
  loopctl rollback            # Revert the last run
  loopctl rollback -d rtr01   # Revert the last run on rtr01
  loopctl rollback --id 10031 # Revert one specific commit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newNSOClient()
		if err != nil {
			return err
		}

		if rollbackID != 0 {
			if err := client.Rollback(cmd.Context(), rollbackID, true); err != nil {
				logAudit(audit.NewEvent(currentUser(), deviceName, "rollback").WithError(err))
				return err
			}
			logAudit(audit.NewEvent(currentUser(), deviceName, "rollback").WithSuccess())
			fmt.Printf("%s rolled back commit %d\n", cli.Green("OK"), rollbackID)
			return nil
		}

		jnl := openJournal(cmd.Context())
		if jnl == nil {
			return fmt.Errorf("no journal configured: set LOOPCTL_JOURNAL or use --id <fixed-number>")
		}
		defer jnl.Close()

		run, err := jnl.LastRun(cmd.Context(), deviceName)
		if err != nil {
			return err
		}

		ids := run.RollbackIDs()
		if len(ids) == 0 {
			return fmt.Errorf("run %s on %s has no rollback ids recorded", run.ID, run.Device)
		}

		fmt.Printf("Reverting run %s on %s (%d commits)\n", run.ID, cli.Bold(run.Device), len(ids))
		for _, id := range ids {
			if err := client.Rollback(cmd.Context(), id, true); err != nil {
				logAudit(audit.NewEvent(currentUser(), run.Device, "rollback").WithError(err))
				return fmt.Errorf("rolling back commit %d: %w", id, err)
			}
			fmt.Printf("  [%s] commit %d\n", cli.Green("ok"), id)
		}

		logAudit(audit.NewEvent(currentUser(), run.Device, "rollback").WithSuccess())
		return nil
	},
}

func init() {
	rollbackCmd.Flags().IntVar(&rollbackID, "id", 0, "NSO rollback fixed-number to apply directly")
}
