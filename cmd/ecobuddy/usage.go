package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jgoulah/ecobuddy/internal/importer"
	"github.com/jgoulah/ecobuddy/pkg/models"
)

var (
	recordDate  string
	recordHours float64
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show and record device usage",
}

var usageShowCmd = &cobra.Command{
	Use:   "show [device-id]",
	Short: "Chart this week's usage and list the history of a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsageShow,
}

var usageRecordCmd = &cobra.Command{
	Use:   "record [device-id]",
	Short: "Record how many hours a device was used on a date",
	Long: `Records hours used for a device on a date (default: today).
Recording the same date again overwrites the previous value.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsageRecord,
}

var usageImportCmd = &cobra.Command{
	Use:   "import [file.csv]",
	Short: "Record usage in bulk from a CSV file",
	Long: `Imports a CSV file with a header naming device, date and hours columns.
Devices may be given by ID or by name; dates use YYYY-MM-DD.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsageImport,
}

func init() {
	usageRecordCmd.Flags().StringVar(&recordDate, "date", "", "date used (YYYY-MM-DD, default today)")
	usageRecordCmd.Flags().Float64Var(&recordHours, "hours", 0, "hours used")

	usageCmd.AddCommand(usageShowCmd, usageRecordCmd, usageImportCmd)
	rootCmd.AddCommand(usageCmd)
}

func runUsageShow(cmd *cobra.Command, args []string) error {
	id, err := parseDeviceID(args[0])
	if err != nil {
		return err
	}

	s, err := newSession()
	if err != nil {
		return err
	}

	vm := s.viewModel(cmd, panelCharts|panelHistory)
	if err := vm.LoadDevices(cmd.Context()); err != nil {
		return hint(err)
	}

	device, ok := vm.Device(id)
	if !ok {
		return fmt.Errorf("no device with id %d", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s, week of %s\n", device, models.WeekStart(time.Now()).Format(models.DateLayout))

	if _, err := vm.SelectDevice(cmd.Context(), id); err != nil {
		return hint(err)
	}
	if _, err := vm.History(cmd.Context(), id); err != nil {
		return hint(err)
	}

	return nil
}

func runUsageRecord(cmd *cobra.Command, args []string) error {
	id, err := parseDeviceID(args[0])
	if err != nil {
		return err
	}

	date := time.Now()
	if recordDate != "" {
		date, err = time.Parse(models.DateLayout, recordDate)
		if err != nil {
			return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", recordDate)
		}
	}

	s, err := newSession()
	if err != nil {
		return err
	}

	vm := s.viewModel(cmd, panelHistory)
	if err := vm.LoadDevices(cmd.Context()); err != nil {
		return hint(err)
	}

	if _, err := vm.RecordUsage(cmd.Context(), id, date, recordHours); err != nil {
		return hint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Usage data saved successfully! (%s, %.2f hours)\n", date.Format(models.DateLayout), recordHours)
	return nil
}

func runUsageImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening CSV: %w", err)
	}
	defer f.Close()

	rows, rowErrs, err := importer.ParseCSV(f)
	if err != nil {
		return err
	}
	for _, rowErr := range rowErrs {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠ Skipping %v\n", rowErr)
	}

	s, err := newSession()
	if err != nil {
		return err
	}

	vm := s.viewModel(cmd, 0)
	if err := vm.LoadDevices(cmd.Context()); err != nil {
		return hint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Importing %d rows...\n", len(rows))
	limiter := rate.NewLimiter(rate.Limit(s.cfg.GetImportRate()), 1)
	result, err := importer.Import(cmd.Context(), s.client, vm.Devices(), rows, limiter, s.log)
	if err != nil {
		return err
	}

	for _, rowErr := range result.Failed {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠ Failed %v\n", rowErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d/%d rows\n", result.Imported, len(rows))
	return nil
}
