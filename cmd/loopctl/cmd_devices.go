package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netops-lab/loopctl/pkg/cli"
)

var syncDevices bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List NSO-managed devices",
	Long: `List the devices NSO manages. With --sync, run sync-from on each so
the CDB reflects live device state before the next plan.

Examples:
  loopctl devices
  loopctl devices --sync
  loopctl devices --sync -d rtr01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newNSOClient()
		if err != nil {
			return err
		}

		names, err := client.ListDevices(cmd.Context())
		if err != nil {
			return err
		}
		if deviceName != "" {
			found := false
			for _, n := range names {
				if n == deviceName {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("device %s is not managed by NSO", deviceName)
			}
			names = []string{deviceName}
		}

		tbl := cli.NewTable("DEVICE", "SYNC")
		for _, name := range names {
			status := "-"
			if syncDevices {
				if err := client.SyncFrom(cmd.Context(), name); err != nil {
					status = cli.Red("failed: " + err.Error())
				} else {
					status = cli.Green("ok")
				}
			}
			tbl.Row(name, status)
		}
		tbl.Flush()

		return nil
	},
}

func init() {
	devicesCmd.Flags().BoolVar(&syncDevices, "sync", false, "Run sync-from on each device")
}
