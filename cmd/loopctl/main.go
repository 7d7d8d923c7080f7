// Loopctl - intent-based loopback provisioning for Cisco NSO
//
// A CLI that reconciles declared loopback intent against live device
// state through NSO's RESTCONF API:
//   - Declarative YAML intent with a per-device deletion policy
//   - Dry-run by default (preview changes, require -x to execute)
//   - NSO-native dry-run and rollback-id tracking on every commit
//   - Apply journal (Redis) powering `loopctl rollback`
//   - Audit logging of all plan/apply invocations
//
// Examples:
//
//	loopctl -f intent.yaml plan                 # Show per-device plans
//	loopctl -f intent.yaml apply                # Dry-run via NSO
//	loopctl -f intent.yaml apply -x             # Execute
//	loopctl -f intent.yaml apply -x -d rtr01    # One device only
//	loopctl rollback                            # Revert the last run
//	loopctl devices --sync                      # List + sync NSO devices
//	loopctl show -c "show ip interface brief"   # Ad-hoc SSH reads
package main

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/netops-lab/loopctl/pkg/audit"
	"github.com/netops-lab/loopctl/pkg/intent"
	"github.com/netops-lab/loopctl/pkg/nso"
	"github.com/netops-lab/loopctl/pkg/settings"
	"github.com/netops-lab/loopctl/pkg/util"
)

var (
	// Global flags
	intentPath string // -f, --intent
	deviceName string // -d, --device
	nsoAddr    string // --nso host[:port]
	nsoUser    string // --nso-user
	verbose    bool   // -v

	// Global state
	userSettings *settings.Settings
	auditLogger  audit.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "loopctl",
	Short:             "Intent-based loopback provisioning for Cisco NSO",
	Version:           "0.9.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Loopctl reconciles declared loopback intent with live device state
through Cisco NSO's RESTCONF API.

Write commands preview changes by default — use -x to execute.

  loopctl -f intent.yaml plan
  loopctl -f intent.yaml apply [-x] [-d device]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		// Apply defaults from settings and environment
		if intentPath == "" {
			intentPath = userSettings.IntentPath
		}
		if nsoAddr == "" {
			nsoAddr = os.Getenv("LOOPCTL_NSO_ADDR")
		}
		if nsoAddr == "" {
			nsoAddr = userSettings.NSOAddress
		}
		if nsoUser == "" {
			nsoUser = os.Getenv("LOOPCTL_NSO_USER")
		}
		if nsoUser == "" {
			nsoUser = userSettings.NSOUsername
		}

		// Quiet by default, verbose on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		auditPath := userSettings.AuditLogPath
		if auditPath == "" {
			auditPath = settings.DefaultAuditLogPath()
		}
		logger, err := audit.NewFileLogger(auditPath, audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxBackups: 10,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			auditLogger = logger
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&intentPath, "intent", "f", "", "Intent file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&deviceName, "device", "d", "", "Restrict to a single device")
	rootCmd.PersistentFlags().StringVar(&nsoAddr, "nso", "", "NSO address host[:port] (default from settings or LOOPCTL_NSO_ADDR)")
	rootCmd.PersistentFlags().StringVar(&nsoUser, "nso-user", "", "NSO RESTCONF username")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "reconcile", Title: "Reconciliation:"},
		&cobra.Group{ID: "device", Title: "Device Operations:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{planCmd, applyCmd, rollbackCmd} {
		cmd.GroupID = "reconcile"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{devicesCmd, showCmd} {
		cmd.GroupID = "device"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "help", "completion":
			return true
		}
	}
	return false
}

// loadIntent loads the intent file, optionally restricted by -d.
func loadIntent() (*intent.Intent, error) {
	if intentPath == "" {
		return nil, fmt.Errorf("no intent file: use -f or `loopctl settings set intent <path>`")
	}

	in, err := intent.Load(intentPath)
	if err != nil {
		return nil, err
	}

	if deviceName != "" {
		dev := in.Device(deviceName)
		if dev == nil {
			return nil, fmt.Errorf("device %s not declared in %s", deviceName, intentPath)
		}
		in = &intent.Intent{Devices: []intent.Device{*dev}}
	}
	return in, nil
}

// newNSOClient builds the RESTCONF client from flags, settings, and
// environment. The password comes from LOOPCTL_NSO_PASSWORD or an
// interactive prompt.
func newNSOClient() (*nso.Client, error) {
	if nsoAddr == "" {
		return nil, fmt.Errorf("no NSO address: use --nso or `loopctl settings set nso <host:port>`")
	}

	host, port, err := splitHostPort(nsoAddr)
	if err != nil {
		return nil, err
	}

	username := nsoUser
	if username == "" {
		username = "admin"
	}

	password := os.Getenv("LOOPCTL_NSO_PASSWORD")
	if password == "" {
		fmt.Fprintf(os.Stderr, "Password for %s@%s: ", username, nsoAddr)
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}

	return nso.NewClient(nso.Config{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
	}), nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// Bare host, default RESTCONF port
		return addr, 8080, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %s", addr)
	}
	return host, port, nil
}

// logAudit records an event if audit logging is available.
func logAudit(event *audit.Event) {
	if auditLogger == nil {
		return
	}
	if err := auditLogger.Log(event); err != nil {
		util.Warnf("Could not write audit event: %v", err)
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
