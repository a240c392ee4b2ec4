package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusvm/clusterconf/pkg/entity"
	"github.com/nimbusvm/clusterconf/pkg/persist"
)

var initCmd = &cobra.Command{
	Use:   "init <cluster-name> <master-node> <master-ip>",
	Short: "Bootstrap a new cluster configuration file",
	Long: `Bootstrap a brand-new cluster configuration file on disk.

Offline mode reads the config file at startup and fails if it does not
exist yet, so a cluster must be initialized once before any other
offline command can run. This is a no-op in online mode: LockD owns
config creation there.

Examples:
  confctl init -c /etc/clusterconf/config.json mycluster node1 10.0.0.1`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, masterNode, masterIP := args[0], args[1], args[2]

		if app.onlineMode {
			fmt.Println("init is a no-op in online mode: LockD owns config creation")
			return nil
		}

		path := app.configPath
		if path == "" {
			path = app.settings.GetConfigPath()
		}

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("refusing to overwrite existing config at %s", path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("checking %s: %w", path, err)
		}

		cluster := entity.NewCluster(name, masterNode, masterIP, float64(unixNow()))
		graph := entity.NewConfigData(cluster)

		if _, err := persist.Save(path, persist.FileID{}, graph, persist.NoGroupChange); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}

		fmt.Printf("Cluster %q initialized at %s (master %s, %s)\n", name, path, masterNode, masterIP)
		return nil
	},
}
