package viewmodel

import "github.com/jgoulah/ecobuddy/pkg/models"

// DeviceLookup resolves a rendered device ID to its record
type DeviceLookup interface {
	Device(id int) (models.Device, bool)
}

// View is the presentation layer driven by the view-model. Rendered
// items keep only device IDs and resolve them through the lookup.
type View interface {
	// RenderDevices replaces the whole rendered list
	RenderDevices(ids []int, lookup DeviceLookup)
	// RenderLoadError shows the list-level error placeholder
	RenderLoadError(err error)
	// RenderCharts redraws the electric, water and waste charts
	RenderCharts(charts models.Charts)
	// RenderHistory shows a device's usage, newest first
	RenderHistory(device models.Device, history []HistoryRow)
}

// HistoryRow is a usage entry with its computed usage value
type HistoryRow struct {
	models.UsageEntry
	Usage float64
}

// FormattedUsage renders the computed usage with two decimals
func (r HistoryRow) FormattedUsage() string {
	return models.FormatUsage(r.Usage)
}

// NopView discards every render call
type NopView struct{}

func (NopView) RenderDevices([]int, DeviceLookup) {}
func (NopView) RenderLoadError(error) {}
func (NopView) RenderCharts(models.Charts) {}
func (NopView) RenderHistory(models.Device, []HistoryRow) {}
