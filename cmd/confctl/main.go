// Command confctl is a noun-group CLI over the cluster configuration
// core: nodes, node groups, instances, disks, and networks, backed
// either by LockD (online mode) or a local config file (offline mode).
//
// Noun-group CLI Pattern:
//
//	confctl <resource> <action> [args] [-x]
//
// Destructive operations require -x to execute; without it confctl
// prints what it would do and exits.
//
// Examples:
//
//	confctl node list
//	confctl node add node3 10.0.0.3 --group default -x
//	confctl instance add web1 node3 linux kvm --template drbd8 -x
//	confctl cluster verify
//	confctl audit list --last 24h
//	confctl settings show
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nimbusvm/clusterconf/pkg/audit"
	"github.com/nimbusvm/clusterconf/pkg/auth"
	"github.com/nimbusvm/clusterconf/pkg/clitable"
	"github.com/nimbusvm/clusterconf/pkg/confsettings"
	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/lockd"
	"github.com/nimbusvm/clusterconf/pkg/persist"
	"github.com/nimbusvm/clusterconf/pkg/session"
	"github.com/nimbusvm/clusterconf/pkg/store"
	"github.com/nimbusvm/clusterconf/pkg/version"
)

// App holds CLI state shared across all commands.
type App struct {
	// Option flags
	configPath  string
	lockdAddr   string
	onlineMode  bool
	executeMode bool
	jsonOutput  bool
	verbose     bool

	// Initialized state (set in PersistentPreRunE)
	settings    *confsettings.Settings
	store       *store.Store
	lockdClient *lockd.Client
	permChecker *auth.Checker
}

var app = &App{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "confctl",
	Short:             "Cluster configuration core CLI",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `confctl is a noun-group CLI for the cluster configuration core.

Commands are organized by resource (node, nodegroup, instance, network,
cluster). Destructive commands preview their effect and require -x to
execute.

  confctl <resource> <action> [args] [-x]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		app.settings, err = confsettings.Load()
		if err != nil {
			confutil.Logger.Warnf("could not load settings: %v", err)
			app.settings = &confsettings.Settings{}
		}

		if app.configPath == "" {
			app.configPath = app.settings.GetConfigPath()
		}
		if app.lockdAddr != "" {
			app.onlineMode = true
		}
		if app.lockdAddr == "" {
			app.lockdAddr = app.settings.GetLockDAddr()
		}

		if app.verbose {
			confutil.SetLogLevel("debug")
		} else {
			confutil.SetLogLevel("warn")
		}

		cfg := session.Config{
			Online:        app.onlineMode,
			MyHostname:    currentHostname(),
			AcceptForeign: true,
			Path:          app.configPath,
			GroupResolver: persist.NoGroupChange,
		}
		if app.onlineMode {
			app.lockdClient = lockd.NewClient(app.lockdAddr, app.settings.LockDDB)
			cfg.LockD = app.lockdClient
			cfg.CallerID = "confctl"
			cfg.PID = os.Getpid()
		}
		app.store = store.New(store.Options{Session: cfg, LockD: app.lockdClient})

		app.permChecker = auth.NewChecker(defaultPolicy())

		auditPath := app.settings.GetAuditLogPath(filepath.Dir(app.configPath))
		auditLogger, err := audit.NewFileLogger(auditPath, audit.RotationConfig{
			MaxSize:    int64(app.settings.GetAuditMaxSizeMB()) * 1024 * 1024,
			MaxBackups: app.settings.GetAuditMaxBackups(),
		})
		if err != nil {
			confutil.Logger.Warnf("could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Configuration file path (offline mode)")
	rootCmd.PersistentFlags().StringVarP(&app.lockdAddr, "lockd", "l", "", "LockD Redis address (enables online mode)")
	rootCmd.PersistentFlags().BoolVar(&app.onlineMode, "online", false, "Use LockD instead of the local config file")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose output")

	for _, cmd := range []*cobra.Command{nodeCmd, nodeGroupCmd, instanceCmd, networkCmd, clusterCmd} {
		addWriteFlags(cmd)
		addOutputFlags(cmd)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "resource", Title: "Resource Commands:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{nodeCmd, nodeGroupCmd, instanceCmd, networkCmd, clusterCmd} {
		cmd.GroupID = "resource"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, initCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Info())
	},
}

// isSettingsOrHelp checks whether cmd (or any ancestor) is a settings or
// help command — these need neither settings nor a store.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

// addWriteFlags registers -x/--execute as a local (or persistent, for
// noun-group parents) flag.
func addWriteFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVarP(&app.executeMode, "execute", "x", false, "Execute the change (default is dry-run preview)")
}

// addOutputFlags registers --json as a local (or persistent) flag.
func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVar(&app.jsonOutput, "json", false, "JSON output")
}

// checkPermission enforces perm for write commands; preview-only (not
// -x) skips the check, matching the teacher's dry-run-needs-no-permission
// rule.
func checkPermission(perm auth.Permission, ctx *auth.Context) error {
	if app.executeMode {
		return app.permChecker.Check(perm, ctx)
	}
	return nil
}

// printDryRunNotice tells the user a write command did nothing because
// -x was not given.
func printDryRunNotice() {
	if !app.executeMode {
		fmt.Println(clitable.Yellow("DRY-RUN: no changes applied. Use -x to execute."))
	}
}

// recordAudit logs operation's outcome and returns err unchanged, so
// callers can write `return recordAudit(...)`.
func recordAudit(operation, entityKind, entityID string, err error) error {
	event := audit.NewEvent(currentUser(), operation, app.onlineMode).WithEntity(entityKind, entityID)
	if err != nil {
		event.WithError(err)
	} else {
		event.WithSuccess()
	}
	if logErr := audit.Log(event); logErr != nil {
		confutil.Logger.Warnf("audit log write failed: %v", logErr)
	}
	return err
}

func newTable(headers ...string) *clitable.Table {
	return clitable.NewTable(headers...)
}

func ctxBackground() context.Context { return context.Background() }
