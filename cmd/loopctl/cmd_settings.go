package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/netops-lab/loopctl/pkg/cli"
	"github.com/netops-lab/loopctl/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent defaults",
	Long: `Manage persistent defaults stored in ~/.loopctl/settings.json.

Keys: ` + strings.Join(settings.Keys(), ", ") + `

Examples:
  loopctl settings list
  loopctl settings set nso 10.10.20.49:8080
  loopctl settings set intent ~/net/intent.yaml
  loopctl settings unset journal`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return err
		}

		tbl := cli.NewTable("KEY", "VALUE")
		for _, key := range settings.Keys() {
			value, _ := s.Get(key)
			if value == "" {
				value = "-"
			}
			tbl.Row(key, value)
		}
		tbl.Flush()
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return err
		}
		value, err := s.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a default",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return err
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		return s.Save()
	},
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Clear a default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return err
		}
		if err := s.Set(args[0], ""); err != nil {
			return err
		}
		return s.Save()
	},
}

func init() {
	settingsCmd.AddCommand(settingsListCmd, settingsGetCmd, settingsSetCmd, settingsUnsetCmd)
}
