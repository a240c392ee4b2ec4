package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusvm/clusterconf/pkg/auth"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage cluster nodes",
	Long: `Manage cluster nodes.

Examples:
  confctl node list
  confctl node add node3 10.0.0.3 --group default -x
  confctl node remove node3 -x`,
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cluster nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := app.store.GetAllNodesInfo(ctxBackground())
		if err != nil {
			return fmt.Errorf("listing nodes: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(nodes)
		}

		t := newTable("NAME", "PRIMARY IP", "GROUP", "CANDIDATE", "OFFLINE", "DRAINED")
		for _, n := range nodes {
			t.Row(n.Name, n.PrimaryIP, dash(n.Group), boolMark(n.MasterCandidate), boolMark(n.Offline), boolMark(n.Drained))
		}
		t.Flush()
		return nil
	},
}

var nodeGroupFlag string

var nodeAddCmd = &cobra.Command{
	Use:   "add <name> <primary-ip>",
	Short: "Add a node to the cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, ip := args[0], args[1]

		groupUUID, err := app.store.LookupNodeGroup(ctxBackground(), nodeGroupFlag)
		if err != nil {
			return fmt.Errorf("resolving node group %q: %w", nodeGroupFlag, err)
		}

		node := entity.NewNode(name, ip, groupUUID, float64(unixNow()))

		fmt.Printf("Would add node %s (%s) to group %s\n", name, ip, nodeGroupFlag)
		if !app.executeMode {
			printDryRunNotice()
			return nil
		}

		if err := checkPermission(auth.PermNodeAdd, auth.NewContext().WithEntity("node", node.UUID)); err != nil {
			return err
		}

		err = app.store.AddNode(ctxBackground(), node)
		if err == nil {
			fmt.Printf("Node %s added.\n", name)
		}
		return recordAudit("node.add", "node", node.UUID, err)
	},
}

var nodeRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a node from the cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uuid, err := app.store.ExpandNodeName(ctxBackground(), args[0])
		if err != nil {
			return fmt.Errorf("resolving node %q: %w", args[0], err)
		}

		fmt.Printf("Would remove node %s\n", args[0])
		if !app.executeMode {
			printDryRunNotice()
			return nil
		}
		if !confirm(fmt.Sprintf("Remove node %s?", args[0])) {
			fmt.Println("Aborted.")
			return nil
		}

		if err := checkPermission(auth.PermNodeRemove, auth.NewContext().WithEntity("node", uuid)); err != nil {
			return err
		}

		err = app.store.RemoveNode(ctxBackground(), uuid)
		if err == nil {
			fmt.Printf("Node %s removed.\n", args[0])
		}
		return recordAudit("node.remove", "node", uuid, err)
	},
}

func init() {
	nodeAddCmd.Flags().StringVar(&nodeGroupFlag, "group", "default", "Node group to place the new node in")

	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeAddCmd)
	nodeCmd.AddCommand(nodeRemoveCmd)
}
