package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusvm/clusterconf/pkg/audit"
	"github.com/nimbusvm/clusterconf/pkg/clitable"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View audit logs of configuration changes.

Every store mutation is logged with:
  - Timestamp
  - User who made the change
  - Entity kind and UUID affected
  - Operation performed
  - Success/failure status

Examples:
  confctl audit list --entity node
  confctl audit list --last 24h
  confctl audit list --user alice`,
}

var (
	auditEntity   string
	auditUser     string
	auditLast     string
	auditLimit    int
	auditFailures bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Entity:      auditEntity,
			User:        auditUser,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tUSER\tENTITY\tOPERATION\tSTATUS")
		fmt.Fprintln(w, "---------\t----\t------\t---------\t------")

		for _, event := range events {
			status := clitable.Green("ok")
			if !event.Success {
				status = clitable.Red("failed")
			}

			entity := event.Entity
			if event.EntityID != "" {
				entity = fmt.Sprintf("%s/%s", event.Entity, event.EntityID)
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.User,
				dash(entity),
				event.Operation,
				status,
			)
		}
		w.Flush()

		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditEntity, "entity", "", "Filter by entity kind (node, instance, nodegroup, network, cluster)")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h, 168h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")

	auditCmd.AddCommand(auditListCmd)
}
