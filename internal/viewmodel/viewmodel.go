// Package viewmodel keeps a rendered device list and the electric, water
// and waste usage charts consistent with the dashboard server.
//
// Every operation either succeeds against the server and then updates
// local state, or fails and leaves local state untouched. Nothing is
// applied optimistically and nothing is retried.
package viewmodel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jgoulah/ecobuddy/internal/api"
	"github.com/jgoulah/ecobuddy/pkg/models"
)

// Backend is the subset of the dashboard API the view-model drives
type Backend interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	CreateDevice(ctx context.Context, d api.NewDevice) (models.Device, error)
	DeleteDevice(ctx context.Context, id int) error
	GetUsage(ctx context.Context, deviceID int) ([]models.UsageEntry, error)
	RecordUsage(ctx context.Context, deviceID int, date time.Time, hours float64) error
	Chat(ctx context.Context, message string) (string, error)
	Insights(ctx context.Context) (string, error)
}

// ViewModel holds the cached device list and chart series for one session
type ViewModel struct {
	backend Backend
	view    View
	log     logrus.FieldLogger
	now     func() time.Time

	// opMu serialises operations; stateMu guards the fields below and is
	// never held across a View call, so views may call Device freely.
	opMu    sync.Mutex
	stateMu sync.Mutex
	devices map[int]models.Device
	order   []int
	charts  models.Charts
	loadErr error
}

// Option configures a ViewModel
type Option func(*ViewModel)

// WithClock sets the clock used to pick the charted week
func WithClock(now func() time.Time) Option {
	return func(vm *ViewModel) {
		vm.now = now
	}
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(vm *ViewModel) {
		vm.log = log
	}
}

// New creates a view-model rendering into view
func New(backend Backend, view View, opts ...Option) *ViewModel {
	if view == nil {
		view = NopView{}
	}
	vm := &ViewModel{
		backend: backend,
		view:    view,
		log:     logrus.StandardLogger(),
		now:     time.Now,
		devices: make(map[int]models.Device),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Device looks up a cached device by ID
func (vm *ViewModel) Device(id int) (models.Device, bool) {
	vm.stateMu.Lock()
	defer vm.stateMu.Unlock()
	d, ok := vm.devices[id]
	return d, ok
}

// Devices returns the cached devices in display order
func (vm *ViewModel) Devices() []models.Device {
	vm.stateMu.Lock()
	defer vm.stateMu.Unlock()
	result := make([]models.Device, 0, len(vm.order))
	for _, id := range vm.order {
		result = append(result, vm.devices[id])
	}
	return result
}

// Charts returns the current chart series
func (vm *ViewModel) Charts() models.Charts {
	vm.stateMu.Lock()
	defer vm.stateMu.Unlock()
	return vm.charts
}

// LoadError returns the error of the last failed LoadDevices, if any
func (vm *ViewModel) LoadError() error {
	vm.stateMu.Lock()
	defer vm.stateMu.Unlock()
	return vm.loadErr
}

// LoadDevices replaces the cached list with the server's. On failure the
// list is emptied and the error placeholder rendered.
func (vm *ViewModel) LoadDevices(ctx context.Context) error {
	vm.opMu.Lock()
	defer vm.opMu.Unlock()

	devices, err := vm.backend.ListDevices(ctx)

	vm.stateMu.Lock()
	vm.devices = make(map[int]models.Device, len(devices))
	vm.order = vm.order[:0]
	vm.loadErr = err
	if err == nil {
		for _, d := range devices {
			if _, dup := vm.devices[d.ID]; dup {
				continue
			}
			vm.devices[d.ID] = d
			vm.order = append(vm.order, d.ID)
		}
	}
	ids := vm.idsLocked()
	// the charted device must still be listed
	staleChart := false
	if _, listed := vm.devices[vm.charts.Active]; vm.charts.Active != 0 && !listed {
		vm.charts.Reset()
		staleChart = true
	}
	charts := vm.charts
	vm.stateMu.Unlock()

	vm.view.RenderDevices(ids, vm)
	if staleChart {
		vm.view.RenderCharts(charts)
	}
	if err != nil {
		vm.log.WithError(err).Warn("loading devices failed")
		vm.view.RenderLoadError(err)
		return fmt.Errorf("loading devices: %w", err)
	}

	vm.log.WithField("count", len(ids)).Debug("devices loaded")
	return nil
}

// CreateDevice validates the input locally, creates the device on the
// server and appends the server's record to the list
func (vm *ViewModel) CreateDevice(ctx context.Context, name string, resourceType string, rating float64) (models.Device, error) {
	name = strings.TrimSpace(name)
	if strings.TrimSpace(resourceType) == "" {
		return models.Device{}, invalid("type", "please select a device type")
	}
	rt, err := models.ParseResourceType(resourceType)
	if err != nil {
		return models.Device{}, invalid("type", "%v", err)
	}
	if name == "" {
		return models.Device{}, invalid("name", "please enter a device name")
	}
	if !(rating > 0) {
		return models.Device{}, invalid("rating", "must be greater than 0")
	}

	vm.opMu.Lock()
	defer vm.opMu.Unlock()

	device, err := vm.backend.CreateDevice(ctx, api.NewDevice{
		Name:   name,
		Type:   rt,
		Rating: rating,
		Unit:   rt.Unit(),
	})
	if err != nil {
		return models.Device{}, fmt.Errorf("creating device: %w", err)
	}

	vm.stateMu.Lock()
	if _, exists := vm.devices[device.ID]; !exists {
		vm.order = append(vm.order, device.ID)
	}
	vm.devices[device.ID] = device
	ids := vm.idsLocked()
	vm.stateMu.Unlock()

	vm.log.WithFields(logrus.Fields{"device_id": device.ID, "type": device.Type}).Info("device created")
	vm.view.RenderDevices(ids, vm)
	return device, nil
}

// DeleteDevice deletes a device on the server, drops it from the list and
// resets every chart, whether or not it was the selected device
func (vm *ViewModel) DeleteDevice(ctx context.Context, id int) error {
	vm.opMu.Lock()
	defer vm.opMu.Unlock()

	if err := vm.backend.DeleteDevice(ctx, id); err != nil {
		return fmt.Errorf("deleting device %d: %w", id, err)
	}

	vm.stateMu.Lock()
	delete(vm.devices, id)
	for i, existing := range vm.order {
		if existing == id {
			vm.order = append(vm.order[:i], vm.order[i+1:]...)
			break
		}
	}
	vm.charts.Reset()
	ids := vm.idsLocked()
	charts := vm.charts
	vm.stateMu.Unlock()

	vm.log.WithField("device_id", id).Info("device deleted")
	vm.view.RenderDevices(ids, vm)
	vm.view.RenderCharts(charts)
	return nil
}

// SelectDevice charts a device's usage for the current week on the chart
// matching its type and zeroes the other two
func (vm *ViewModel) SelectDevice(ctx context.Context, id int) (models.Series, error) {
	vm.opMu.Lock()
	defer vm.opMu.Unlock()

	device, ok := vm.Device(id)
	if !ok {
		return models.Series{}, invalid("device", "no device with id %d", id)
	}

	entries, err := vm.backend.GetUsage(ctx, id)
	if err != nil {
		return models.Series{}, fmt.Errorf("fetching usage for device %d: %w", id, err)
	}

	series := WeekSeries(entries, device.Rating, vm.now())

	vm.stateMu.Lock()
	vm.charts.Show(id, device.Type, series)
	charts := vm.charts
	vm.stateMu.Unlock()

	vm.view.RenderCharts(charts)
	return series, nil
}

// RecordUsage upserts a day's hours and re-renders the device's history
func (vm *ViewModel) RecordUsage(ctx context.Context, id int, date time.Time, hours float64) ([]HistoryRow, error) {
	if date.IsZero() {
		return nil, invalid("date", "please select a date")
	}
	if !(hours > 0) {
		return nil, invalid("hours", "must be greater than 0")
	}
	vm.opMu.Lock()
	defer vm.opMu.Unlock()

	device, ok := vm.Device(id)
	if !ok {
		return nil, invalid("device", "no device with id %d", id)
	}

	if err := vm.backend.RecordUsage(ctx, id, date, hours); err != nil {
		return nil, fmt.Errorf("recording usage for device %d: %w", id, err)
	}
	vm.log.WithFields(logrus.Fields{
		"device_id": id,
		"date":      date.Format(models.DateLayout),
		"hours":     hours,
	}).Info("usage recorded")

	return vm.historyLocked(ctx, device)
}

// History fetches and renders a device's usage, newest first
func (vm *ViewModel) History(ctx context.Context, id int) ([]HistoryRow, error) {
	vm.opMu.Lock()
	defer vm.opMu.Unlock()

	device, ok := vm.Device(id)
	if !ok {
		return nil, invalid("device", "no device with id %d", id)
	}
	return vm.historyLocked(ctx, device)
}

func (vm *ViewModel) historyLocked(ctx context.Context, device models.Device) ([]HistoryRow, error) {
	entries, err := vm.backend.GetUsage(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching usage for device %d: %w", device.ID, err)
	}

	history := BuildHistory(entries, device.Rating)
	vm.view.RenderHistory(device, history)
	return history, nil
}

// Chat relays a message to the assistant
func (vm *ViewModel) Chat(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", invalid("message", "please enter a message")
	}
	reply, err := vm.backend.Chat(ctx, message)
	if err != nil {
		return "", fmt.Errorf("chatting with assistant: %w", err)
	}
	return reply, nil
}

// Insights fetches the server's conservation insights
func (vm *ViewModel) Insights(ctx context.Context) (string, error) {
	insights, err := vm.backend.Insights(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching insights: %w", err)
	}
	return insights, nil
}

func (vm *ViewModel) idsLocked() []int {
	ids := make([]int, len(vm.order))
	copy(ids, vm.order)
	return ids
}

// WeekSeries bins entries by weekday into the Monday-Sunday week that
// contains now. Entries outside that week are not charted.
func WeekSeries(entries []models.UsageEntry, rating float64, now time.Time) models.Series {
	start := models.WeekStart(now)
	end := start.AddDate(0, 0, 7)

	var series models.Series
	for _, e := range entries {
		day := time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, now.Location())
		if day.Before(start) || !day.Before(end) {
			continue
		}
		series[models.WeekdaySlot(day)] = e.Usage(rating)
	}
	return series
}

// BuildHistory computes usage per entry, sorted newest first
func BuildHistory(entries []models.UsageEntry, rating float64) []HistoryRow {
	history := make([]HistoryRow, 0, len(entries))
	for _, e := range entries {
		history = append(history, HistoryRow{UsageEntry: e, Usage: e.Usage(rating)})
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Date.After(history[j].Date)
	})
	return history
}
