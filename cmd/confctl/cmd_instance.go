package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusvm/clusterconf/pkg/auth"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Manage instances",
	Long: `Manage instances (virtual machines).

Examples:
  confctl instance list
  confctl instance add web1 node3 linux kvm --template plain -x
  confctl instance remove web1 -x
  confctl instance start web1 -x
  confctl instance stop web1 -x`,
}

var instanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		instances, err := app.store.GetAllInstancesInfo(ctxBackground())
		if err != nil {
			return fmt.Errorf("listing instances: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(instances)
		}

		t := newTable("NAME", "PRIMARY NODE", "OS", "HYPERVISOR", "TEMPLATE", "STATE")
		for _, i := range instances {
			t.Row(i.Name, i.PrimaryNode, i.OS, i.Hypervisor, string(i.DiskTemplate), string(i.AdminState))
		}
		t.Flush()
		return nil
	},
}

var instanceTemplateFlag string

var instanceAddCmd = &cobra.Command{
	Use:   "add <name> <primary-node> <os> <hypervisor>",
	Short: "Add an instance",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, node, os_, hv := args[0], args[1], args[2], args[3]

		nodeUUID, err := app.store.ExpandNodeName(ctxBackground(), node)
		if err != nil {
			return fmt.Errorf("resolving node %q: %w", node, err)
		}

		inst := entity.NewInstance(name, nodeUUID, os_, hv, entity.DiskTemplate(instanceTemplateFlag), float64(unixNow()))

		fmt.Printf("Would add instance %s on %s (%s/%s, template %s)\n", name, node, os_, hv, instanceTemplateFlag)
		if !app.executeMode {
			printDryRunNotice()
			return nil
		}

		if err := checkPermission(auth.PermInstanceAdd, auth.NewContext().WithEntity("instance", inst.UUID)); err != nil {
			return err
		}

		err = app.store.AddInstance(ctxBackground(), "", inst)
		if err == nil {
			fmt.Printf("Instance %s added.\n", name)
		}
		return recordAudit("instance.add", "instance", inst.UUID, err)
	},
}

var instanceRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uuid, err := app.store.ExpandInstanceName(ctxBackground(), args[0])
		if err != nil {
			return fmt.Errorf("resolving instance %q: %w", args[0], err)
		}

		fmt.Printf("Would remove instance %s\n", args[0])
		if !app.executeMode {
			printDryRunNotice()
			return nil
		}
		if !confirm(fmt.Sprintf("Remove instance %s?", args[0])) {
			fmt.Println("Aborted.")
			return nil
		}

		if err := checkPermission(auth.PermInstanceRemove, auth.NewContext().WithEntity("instance", uuid)); err != nil {
			return err
		}

		err = app.store.RemoveInstance(ctxBackground(), uuid)
		if err == nil {
			fmt.Printf("Instance %s removed.\n", args[0])
		}
		return recordAudit("instance.remove", "instance", uuid, err)
	},
}

var instanceStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Mark an instance administratively up",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return instanceMarkState(args[0], "instance.start", auth.PermInstanceModify, app.store.MarkInstanceUp)
	},
}

var instanceStopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Mark an instance administratively down",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return instanceMarkState(args[0], "instance.stop", auth.PermInstanceModify, app.store.MarkInstanceDown)
	},
}

func instanceMarkState(name, operation string, perm auth.Permission, mark func(ctx context.Context, uuid string) error) error {
	uuid, err := app.store.ExpandInstanceName(ctxBackground(), name)
	if err != nil {
		return fmt.Errorf("resolving instance %q: %w", name, err)
	}

	if !app.executeMode {
		fmt.Printf("Would apply %s to instance %s\n", operation, name)
		printDryRunNotice()
		return nil
	}

	if err := checkPermission(perm, auth.NewContext().WithEntity("instance", uuid)); err != nil {
		return err
	}

	err = mark(ctxBackground(), uuid)
	if err == nil {
		fmt.Printf("Instance %s: %s applied.\n", name, operation)
	}
	return recordAudit(operation, "instance", uuid, err)
}

func init() {
	instanceAddCmd.Flags().StringVar(&instanceTemplateFlag, "template", "plain", "Disk template (plain, drbd8, file, ...)")

	instanceCmd.AddCommand(instanceListCmd)
	instanceCmd.AddCommand(instanceAddCmd)
	instanceCmd.AddCommand(instanceRemoveCmd)
	instanceCmd.AddCommand(instanceStartCmd)
	instanceCmd.AddCommand(instanceStopCmd)
}
