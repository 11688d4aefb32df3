package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	addName   string
	addType   string
	addRating float64
	rmYes     bool
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"device"},
	Short:   "List your devices",
	RunE:    runDevicesList,
}

var devicesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a device",
	Long: `Adds a device to the dashboard.

Types and rating units: electric (kW), water (L/min), waste (kg/day)`,
	RunE: runDevicesAdd,
}

var devicesRmCmd = &cobra.Command{
	Use:   "rm [device-id]",
	Short: "Delete a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesRm,
}

func init() {
	devicesAddCmd.Flags().StringVar(&addName, "name", "", "device name")
	devicesAddCmd.Flags().StringVar(&addType, "type", "", "resource type (electric, water or waste)")
	devicesAddCmd.Flags().Float64Var(&addRating, "rating", 0, "power or flow rating")
	devicesRmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "skip confirmation")

	devicesCmd.AddCommand(devicesAddCmd, devicesRmCmd)
	rootCmd.AddCommand(devicesCmd)
}

func runDevicesList(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	return hint(s.viewModel(cmd, panelDevices).LoadDevices(cmd.Context()))
}

func runDevicesAdd(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	vm := s.viewModel(cmd, 0)
	device, err := vm.CreateDevice(cmd.Context(), addName, addType, addRating)
	if err != nil {
		return hint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Added device %d: %s\n", device.ID, device)
	return nil
}

func runDevicesRm(cmd *cobra.Command, args []string) error {
	id, err := parseDeviceID(args[0])
	if err != nil {
		return err
	}

	s, err := newSession()
	if err != nil {
		return err
	}

	vm := s.viewModel(cmd, 0)
	if err := vm.LoadDevices(cmd.Context()); err != nil {
		return hint(err)
	}

	device, ok := vm.Device(id)
	if !ok {
		return fmt.Errorf("no device with id %d", id)
	}

	if !rmYes {
		fmt.Fprintf(cmd.OutOrStdout(), "Are you sure you want to delete %q? [y/N] ", device.Name)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return nil
		}
	}

	if err := vm.DeleteDevice(cmd.Context(), id); err != nil {
		return hint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted device %d (%s)\n", id, device.Name)
	return nil
}

func parseDeviceID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid device id: %s", s)
	}
	return id, nil
}
