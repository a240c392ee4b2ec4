package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusvm/clusterconf/pkg/auth"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage address-pool networks",
	Long: `Manage networks: address pools NICs can bind to.

Examples:
  confctl network list
  confctl network add servers 10.1.0.0/24 -x
  confctl network remove servers -x`,
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		networks, err := app.store.GetAllNetworksInfo(ctxBackground())
		if err != nil {
			return fmt.Errorf("listing networks: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(networks)
		}

		t := newTable("NAME", "CIDR", "GATEWAY")
		for _, n := range networks {
			t.Row(n.Name, n.Network, dash(n.Gateway))
		}
		t.Flush()
		return nil
	},
}

var networkAddCmd = &cobra.Command{
	Use:   "add <name> <cidr>",
	Short: "Add a network",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, cidr := args[0], args[1]

		net, err := entity.NewNetwork(name, cidr, float64(unixNow()))
		if err != nil {
			return fmt.Errorf("building network %s: %w", name, err)
		}

		fmt.Printf("Would add network %s (%s)\n", name, cidr)
		if !app.executeMode {
			printDryRunNotice()
			return nil
		}

		if err := checkPermission(auth.PermNetworkCreate, auth.NewContext().WithEntity("network", net.UUID)); err != nil {
			return err
		}

		err = app.store.AddNetwork(ctxBackground(), net)
		if err == nil {
			fmt.Printf("Network %s added.\n", name)
		}
		return recordAudit("network.create", "network", net.UUID, err)
	},
}

var networkRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		networks, err := app.store.GetAllNetworksInfo(ctxBackground())
		if err != nil {
			return fmt.Errorf("looking up network %q: %w", args[0], err)
		}
		var uuid string
		for id, n := range networks {
			if n.Name == args[0] {
				uuid = id
				break
			}
		}
		if uuid == "" {
			return fmt.Errorf("no such network: %s", args[0])
		}

		fmt.Printf("Would remove network %s\n", args[0])
		if !app.executeMode {
			printDryRunNotice()
			return nil
		}
		if !confirm(fmt.Sprintf("Remove network %s?", args[0])) {
			fmt.Println("Aborted.")
			return nil
		}

		if err := checkPermission(auth.PermNetworkDelete, auth.NewContext().WithEntity("network", uuid)); err != nil {
			return err
		}

		err = app.store.RemoveNetwork(ctxBackground(), uuid)
		if err == nil {
			fmt.Printf("Network %s removed.\n", args[0])
		}
		return recordAudit("network.delete", "network", uuid, err)
	},
}

func init() {
	networkCmd.AddCommand(networkListCmd)
	networkCmd.AddCommand(networkAddCmd)
	networkCmd.AddCommand(networkRemoveCmd)
}
