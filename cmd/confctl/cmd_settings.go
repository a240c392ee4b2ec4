package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nimbusvm/clusterconf/pkg/confsettings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.clusterconf/settings.json.

Settings provide defaults for the connection flags:
  - config_path: Used when -c/--config is not specified
  - lockd_addr:  Used when -l/--lockd is not specified

Examples:
  confctl settings show
  confctl settings set config_path /etc/clusterconf/config.json
  confctl settings set lockd_addr redis.internal:6379
  confctl settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := confsettings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", confsettings.DefaultSettingsPath())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SETTING\tVALUE")
		fmt.Fprintln(w, "-------\t-----")

		printSetting := func(name, value string) {
			if value == "" {
				value = "(not set)"
			}
			fmt.Fprintf(w, "%s\t%s\n", name, value)
		}

		printSetting("config_path", s.ConfigPath)
		printSetting("lockd_addr", s.LockDAddr)
		if s.LockDDB != 0 {
			printSetting("lockd_db", strconv.Itoa(s.LockDDB))
		} else {
			printSetting("lockd_db", "")
		}
		printSetting("audit_log_path", s.AuditLogPath)

		w.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value.

Available settings:
  config_path     - On-disk cluster config path (-c flag default)
  lockd_addr      - LockD Redis address (-l flag default)
  lockd_db        - LockD Redis logical database number
  audit_log_path  - Audit log file path

Examples:
  confctl settings set config_path /etc/clusterconf/config.json
  confctl settings set lockd_addr redis.internal:6379
  confctl settings set lockd_db 2`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := args[0]
		value := args[1]

		s, err := confsettings.Load()
		if err != nil {
			s = &confsettings.Settings{}
		}

		switch setting {
		case "config_path":
			s.ConfigPath = value
			fmt.Printf("Config path set to: %s\n", value)
		case "lockd_addr":
			s.LockDAddr = value
			fmt.Printf("LockD address set to: %s\n", value)
		case "lockd_db":
			db, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("lockd_db must be an integer: %w", err)
			}
			s.LockDDB = db
			fmt.Printf("LockD database set to: %d\n", db)
		case "audit_log_path":
			s.AuditLogPath = value
			fmt.Printf("Audit log path set to: %s\n", value)
		default:
			return fmt.Errorf("unknown setting: %s (valid: config_path, lockd_addr, lockd_db, audit_log_path)", setting)
		}

		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}

		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := args[0]

		s, err := confsettings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		var value string
		switch setting {
		case "config_path":
			value = s.ConfigPath
		case "lockd_addr":
			value = s.LockDAddr
		case "lockd_db":
			if s.LockDDB != 0 {
				value = strconv.Itoa(s.LockDDB)
			}
		case "audit_log_path":
			value = s.AuditLogPath
		default:
			return fmt.Errorf("unknown setting: %s", setting)
		}

		if value == "" {
			fmt.Println("(not set)")
		} else {
			fmt.Println(value)
		}
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &confsettings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(confsettings.DefaultSettingsPath())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsPathCmd)
}
