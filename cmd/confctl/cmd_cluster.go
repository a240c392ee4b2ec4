package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nimbusvm/clusterconf/pkg/auth"
	"github.com/nimbusvm/clusterconf/pkg/clitable"
	"github.com/nimbusvm/clusterconf/pkg/verify"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster-wide configuration and diagnostics",
	Long: `Cluster-wide configuration and diagnostics.

Examples:
  confctl cluster verify
  confctl cluster ssconf
  confctl cluster flush -x
  confctl cluster set-vg-name myvg -x`,
}

var clusterVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every graph invariant, plus LockD's cross-cluster checks when online",
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, err := app.store.GetDetachedConfig(ctxBackground())
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		problems := verify.Graph(graph)

		if app.onlineMode && app.lockdClient != nil {
			lockdProblems, err := app.lockdClient.VerifyConfig(ctxBackground())
			if err != nil {
				return fmt.Errorf("verifying against lockd: %w", err)
			}
			problems = append(problems, lockdProblems...)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(problems)
		}

		if len(problems) == 0 {
			fmt.Println(clitable.Green("No problems found."))
			return nil
		}
		for _, p := range problems {
			fmt.Println(clitable.Red("- " + p))
		}
		return fmt.Errorf("%d problem(s) found", len(problems))
	},
}

var clusterSsconfCmd = &cobra.Command{
	Use:   "ssconf",
	Short: "Print the derived ssconf snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := app.store.GetSsconfValues(ctxBackground())
		if err != nil {
			return fmt.Errorf("computing ssconf values: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(values)
		}

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s: %s\n", k, values[k])
		}
		return nil
	},
}

var clusterFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Force LockD to drop its cached config (online mode only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !app.onlineMode {
			return fmt.Errorf("cluster flush requires online mode (--online / --lockd)")
		}

		fmt.Println("Would flush LockD's cached config")
		if !app.executeMode {
			printDryRunNotice()
			return nil
		}

		if err := checkPermission(auth.PermLockDFlush, auth.NewContext()); err != nil {
			return err
		}

		err := app.store.FlushConfig(ctxBackground())
		if err == nil {
			fmt.Println("LockD config cache flushed.")
		}
		return recordAudit("lockd.flush", "cluster", "", err)
	},
}

var clusterSetVGNameCmd = &cobra.Command{
	Use:   "set-vg-name <name>",
	Short: "Set the cluster's default LVM volume group name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return clusterSetting("cluster.configure", args[0], func() error {
			return app.store.SetVGName(ctxBackground(), args[0])
		})
	},
}

var clusterSetDRBDHelperCmd = &cobra.Command{
	Use:   "set-drbd-helper <path>",
	Short: "Set the cluster's DRBD usermode helper path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return clusterSetting("cluster.configure", args[0], func() error {
			return app.store.SetDRBDHelper(ctxBackground(), args[0])
		})
	},
}

func clusterSetting(operation, value string, apply func() error) error {
	fmt.Printf("Would apply %s: %s\n", operation, value)
	if !app.executeMode {
		printDryRunNotice()
		return nil
	}

	if err := checkPermission(auth.PermClusterConfigure, auth.NewContext()); err != nil {
		return err
	}

	err := apply()
	if err == nil {
		fmt.Println("Applied.")
	}
	return recordAudit(operation, "cluster", "", err)
}

func init() {
	clusterCmd.AddCommand(clusterVerifyCmd)
	clusterCmd.AddCommand(clusterSsconfCmd)
	clusterCmd.AddCommand(clusterFlushCmd)
	clusterCmd.AddCommand(clusterSetVGNameCmd)
	clusterCmd.AddCommand(clusterSetDRBDHelperCmd)
}
