package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netops-lab/loopctl/pkg/cli"
	"github.com/netops-lab/loopctl/pkg/sshrun"
)

var (
	showCommands  []string
	inventoryPath string
	hostGroup     string
	showWorkers   int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Run show commands over SSH against the host inventory",
	Long: `Run one or more show commands on inventory hosts over SSH and print
the per-host output. This bypasses NSO — it reads straight off the
devices for quick operational checks.

Examples:
  loopctl show -c "show ip interface brief"
  loopctl show -c "show version" -c "show ip route" --group routers
  loopctl show -c "show running-config interface Loopback100" -d dist-rtr01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(showCommands) == 0 {
			return fmt.Errorf("no commands: use -c \"show ...\"")
		}

		path := inventoryPath
		if path == "" && userSettings != nil {
			path = userSettings.InventoryPath
		}
		if path == "" {
			return fmt.Errorf("no inventory: use --inventory or `loopctl settings set inventory <path>`")
		}

		inv, err := sshrun.LoadInventory(path)
		if err != nil {
			return err
		}

		hosts := inv.Filter(hostGroup)
		if deviceName != "" {
			h := inv.Host(deviceName)
			if h == nil {
				return fmt.Errorf("host %s not in inventory %s", deviceName, path)
			}
			hosts = []sshrun.Host{*h}
		}
		if len(hosts) == 0 {
			return fmt.Errorf("no hosts selected")
		}

		runner := &sshrun.Runner{Concurrency: showWorkers}
		results := runner.Run(cmd.Context(), hosts, showCommands)

		failed := 0
		for _, hr := range results {
			fmt.Printf("=== %s ===\n", cli.Bold(hr.Host))
			if hr.Err != nil {
				fmt.Printf("  %s: %v\n\n", cli.Red("UNREACHABLE"), hr.Err)
				failed++
				continue
			}
			for _, cr := range hr.Results {
				fmt.Printf("--- %s\n", cr.Command)
				if cr.Err != nil {
					fmt.Printf("%s: %v\n", cli.Red("ERROR"), cr.Err)
					failed++
				}
				if cr.Output != "" {
					fmt.Println(cr.Output)
				}
			}
			fmt.Println()
		}

		if failed > 0 {
			return fmt.Errorf("%d command(s) failed", failed)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringArrayVarP(&showCommands, "command", "c", nil, "Command to run (repeatable)")
	showCmd.Flags().StringVar(&inventoryPath, "inventory", "", "Host inventory file (YAML)")
	showCmd.Flags().StringVar(&hostGroup, "group", "", "Restrict to an inventory group")
	showCmd.Flags().IntVar(&showWorkers, "workers", 0, "Max concurrent SSH sessions (default 8)")
}
