package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jgoulah/ecobuddy/internal/viewmodel"
	"github.com/jgoulah/ecobuddy/pkg/models"
)

// barWidth is the width of the longest chart bar
const barWidth = 30

// chartLabels match the dashboard's chart dataset labels
var chartLabels = map[models.ResourceType]string{
	models.Electric: "Electric (kWh)",
	models.Water:    "Water (Liters)",
	models.Waste:    "Waste (kg)",
}

// panel selects which parts of the dashboard a command prints
type panel int

const (
	panelDevices panel = 1 << iota
	panelCharts
	panelHistory
)

// terminalView renders the view-model as plain text. Load errors are
// always shown; other panels only when selected.
type terminalView struct {
	out    io.Writer
	panels panel
}

func newTerminalView(out io.Writer, panels panel) *terminalView {
	return &terminalView{out: out, panels: panels}
}

func (v *terminalView) RenderDevices(ids []int, lookup viewmodel.DeviceLookup) {
	if v.panels&panelDevices == 0 {
		return
	}
	if len(ids) == 0 {
		fmt.Fprintln(v.out, "No devices")
		return
	}

	fmt.Fprintln(v.out, "----------------------------------------------------")
	fmt.Fprintf(v.out, "%-5s  %-20s  %-8s  %12s\n", "ID", "Name", "Type", "Rating")
	fmt.Fprintln(v.out, "----------------------------------------------------")
	for _, id := range ids {
		d, ok := lookup.Device(id)
		if !ok {
			continue
		}
		fmt.Fprintf(v.out, "%-5d  %-20s  %-8s  %12s\n", d.ID, truncate(d.Name, 20), d.Type,
			fmt.Sprintf("%g %s", d.Rating, d.Type.Unit()))
	}
}

func (v *terminalView) RenderLoadError(err error) {
	fmt.Fprintf(v.out, "⚠ Error loading devices: %v\n", err)
}

func (v *terminalView) RenderCharts(charts models.Charts) {
	if v.panels&panelCharts == 0 {
		return
	}
	for _, t := range models.ResourceTypes {
		series := charts.Get(t)
		fmt.Fprintf(v.out, "\n%s\n", chartLabels[t])

		var peak float64
		for _, val := range series {
			if val > peak {
				peak = val
			}
		}
		for i, val := range series {
			bar := 0
			if peak > 0 {
				bar = int(val / peak * barWidth)
			}
			fmt.Fprintf(v.out, "  %s  %-*s %s\n", models.WeekdayLabels[i], barWidth, strings.Repeat("█", bar), models.FormatUsage(val))
		}
		fmt.Fprintf(v.out, "  %-3s  %-*s %s %s\n", "Week", barWidth, "", models.FormatUsage(series.Total()), t.TotalUnit())
	}
}

func (v *terminalView) RenderHistory(device models.Device, history []viewmodel.HistoryRow) {
	if v.panels&panelHistory == 0 {
		return
	}
	fmt.Fprintf(v.out, "\nUsage history for %s:\n", device.Name)
	if len(history) == 0 {
		fmt.Fprintln(v.out, "No usage recorded")
		return
	}

	fmt.Fprintln(v.out, "----------------------------------------")
	fmt.Fprintf(v.out, "%-12s  %8s  %14s\n", "Date", "Hours", "Usage")
	fmt.Fprintln(v.out, "----------------------------------------")
	for _, row := range history {
		fmt.Fprintf(v.out, "%-12s  %8.2f  %14s\n", row.Date.Format(models.DateLayout), row.Hours,
			row.FormattedUsage()+" "+device.Type.TotalUnit())
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
