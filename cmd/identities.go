package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/spf13/cobra"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List enrolled identities",
	Long: `Lists every enrolled identity with its role and current attendance state.
An identity is "present" when its last attendance record has an arrival
but no departure yet.`,
	RunE: runIdentities,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
}

func runIdentities(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	identities, err := store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}

	if len(identities) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	fmt.Printf("%-6s %-30s %-15s %-10s %s\n", "ID", "NAME", "ROLE", "RECORDS", "STATUS")
	for _, id := range identities {
		status := "absent"
		if last := id.LastRecord(); last != nil && last.Open() {
			status = "present since " + last.ArrivalTime.Format("15:04")
		}
		fmt.Printf("%-6d %-30s %-15s %-10d %s\n", id.ID, id.Name, id.Role, len(id.Log), status)
	}
	fmt.Printf("\nTotal: %d identities\n", len(identities))

	return nil
}
