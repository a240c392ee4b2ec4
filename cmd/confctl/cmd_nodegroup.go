package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusvm/clusterconf/pkg/auth"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

var nodeGroupCmd = &cobra.Command{
	Use:     "nodegroup",
	Aliases: []string{"group"},
	Short:   "Manage node groups",
	Long: `Manage node groups.

Examples:
  confctl nodegroup list
  confctl nodegroup add production -x
  confctl nodegroup remove staging -x`,
}

var nodeGroupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List node groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := app.store.GetAllNodeGroupsInfo(ctxBackground())
		if err != nil {
			return fmt.Errorf("listing node groups: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(groups)
		}

		t := newTable("NAME", "ALLOC POLICY", "MEMBERS")
		for _, g := range groups {
			t.Row(g.Name, g.AllocPolicy, dashInt(len(g.Members)))
		}
		t.Flush()
		return nil
	},
}

var nodeGroupAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a node group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		group := entity.NewNodeGroup(name, float64(unixNow()))

		fmt.Printf("Would add node group %s\n", name)
		if !app.executeMode {
			printDryRunNotice()
			return nil
		}

		if err := checkPermission(auth.PermNodeGroupCreate, auth.NewContext().WithEntity("nodegroup", group.UUID)); err != nil {
			return err
		}

		err := app.store.AddNodeGroup(ctxBackground(), group)
		if err == nil {
			fmt.Printf("Node group %s added.\n", name)
		}
		return recordAudit("nodegroup.create", "nodegroup", group.UUID, err)
	},
}

var nodeGroupRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a node group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := app.store.GetAllNodeGroupsInfo(ctxBackground())
		if err != nil {
			return fmt.Errorf("looking up node group %q: %w", args[0], err)
		}
		var uuid string
		for id, g := range groups {
			if g.Name == args[0] {
				uuid = id
				break
			}
		}
		if uuid == "" {
			return fmt.Errorf("no such node group: %s", args[0])
		}

		fmt.Printf("Would remove node group %s\n", args[0])
		if !app.executeMode {
			printDryRunNotice()
			return nil
		}
		if !confirm(fmt.Sprintf("Remove node group %s?", args[0])) {
			fmt.Println("Aborted.")
			return nil
		}

		if err := checkPermission(auth.PermNodeGroupDelete, auth.NewContext().WithEntity("nodegroup", uuid)); err != nil {
			return err
		}

		err = app.store.RemoveNodeGroup(ctxBackground(), uuid)
		if err == nil {
			fmt.Printf("Node group %s removed.\n", args[0])
		}
		return recordAudit("nodegroup.delete", "nodegroup", uuid, err)
	},
}

func init() {
	nodeGroupCmd.AddCommand(nodeGroupListCmd)
	nodeGroupCmd.AddCommand(nodeGroupAddCmd)
	nodeGroupCmd.AddCommand(nodeGroupRemoveCmd)
}
