package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance records to CSV",
	Long: `Export the attendance log of every enrolled identity to a CSV file.
Each row is one attendance record: name, role, date, arrival time and
departure time. An empty departure means the record is still open.

Examples:
  # Export everything
  face-attendance export --output attendance.csv

  # Export a single day
  face-attendance export --date 2026-09-01`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("output", "attendance.csv", "Output CSV file")
	exportCmd.Flags().String("date", "", "Only export records for this date (YYYY-MM-DD)")
}

func runExport(cmd *cobra.Command, args []string) error {
	output := mustGetString(cmd, "output")
	date := mustGetString(cmd, "date")

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

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"name", "role", "date", "arrival", "departure"}); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	bar := progressbar.NewOptions(len(identities),
		progressbar.OptionSetDescription("Exporting attendance"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("identities"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	rows := 0
	for _, id := range identities {
		for _, rec := range id.Log {
			if date != "" && rec.Date != date {
				continue
			}
			departure := ""
			if rec.DepartureTime != nil {
				departure = rec.DepartureTime.Format("15:04:05")
			}
			row := []string{id.Name, id.Role, rec.Date, rec.ArrivalTime.Format("15:04:05"), departure}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("writing CSV row: %w", err)
			}
			rows++
		}
		bar.Add(1)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}

	fmt.Printf("\nExported %d records to %s\n", rows, output)
	return nil
}
