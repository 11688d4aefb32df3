package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/ecobuddy/internal/database"
	"github.com/jgoulah/ecobuddy/pkg/models"
)

var listDevice int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List synced usage data",
	Long:  `Displays usage data stored by 'ecobuddy sync', without contacting the dashboard.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&listDevice, "device", 0, "Filter by device id")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	// Open database
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	synced, err := db.LastSynced()
	if err != nil {
		return err
	}
	if synced.IsZero() {
		fmt.Fprintln(cmd.OutOrStdout(), "No data found. Run 'ecobuddy sync' first")
		return nil
	}

	devices, err := db.ListDevices()
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	data, err := db.ListUsage(listDevice)
	if err != nil {
		return fmt.Errorf("listing data: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Last synced %s, %d devices\n", humanize.Time(synced), len(devices))

	byDevice := make(map[int][]database.StoredUsage)
	for _, record := range data {
		byDevice[record.Device.ID] = append(byDevice[record.Device.ID], record)
	}

	for _, device := range devices {
		if listDevice != 0 && device.ID != listDevice {
			continue
		}
		records := byDevice[device.ID]
		unit := device.Type.TotalUnit()

		fmt.Fprintf(out, "\n%s Usage Data:\n", device.Name)
		if len(records) == 0 {
			fmt.Fprintln(out, "No usage data found")
			continue
		}
		fmt.Fprintln(out, "----------------------------------------")
		fmt.Fprintf(out, "%-12s  %8s  %12s\n", "Date", "Hours", unit)
		fmt.Fprintln(out, "----------------------------------------")

		var total float64
		for _, record := range records {
			fmt.Fprintf(out, "%-12s  %8.2f  %12s\n", record.Entry.Date.Format(models.DateLayout), record.Entry.Hours, models.FormatUsage(record.Usage))
			total += record.Usage
		}

		fmt.Fprintln(out, "----------------------------------------")
		fmt.Fprintf(out, "Total: %s %s (%d records)\n", models.FormatUsage(total), unit, len(records))
	}

	return nil
}
