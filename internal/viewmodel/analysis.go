package viewmodel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/ecobuddy/pkg/models"
)

// fetchConcurrency bounds parallel usage requests during a snapshot
const fetchConcurrency = 4

// topDevices is how many devices an Analysis ranks
const topDevices = 5

// DeviceUsage is a device with all of its usage entries
type DeviceUsage struct {
	Device  models.Device
	Entries []models.UsageEntry
}

// Total returns the summed computed usage of entries on or after since
func (du DeviceUsage) Total(since time.Time) float64 {
	var total float64
	for _, e := range du.Entries {
		if e.Date.Before(since) {
			continue
		}
		total += e.Usage(du.Device.Rating)
	}
	return models.Round2(total)
}

// DeviceTotal is a device's computed usage over an analysis window
type DeviceTotal struct {
	Device models.Device
	Total  float64
}

// Analysis summarises usage over a trailing window of days
type Analysis struct {
	Since   time.Time
	Devices int
	Entries int
	Totals  map[models.ResourceType]float64
	ByType  map[models.ResourceType][]DeviceTotal
	Top     []DeviceTotal
}

// Snapshot fetches every device from the server along with its usage.
// It does not touch the rendered list or charts.
func (vm *ViewModel) Snapshot(ctx context.Context) ([]DeviceUsage, error) {
	devices, err := vm.backend.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	result := make([]DeviceUsage, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, d := range devices {
		g.Go(func() error {
			entries, err := vm.backend.GetUsage(gctx, d.ID)
			if err != nil {
				return fmt.Errorf("fetching usage for device %d: %w", d.ID, err)
			}
			result[i] = DeviceUsage{Device: d, Entries: entries}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// Analyze totals computed usage per resource type over the last days and
// ranks the heaviest devices
func (vm *ViewModel) Analyze(ctx context.Context, days int) (*Analysis, error) {
	if days <= 0 {
		return nil, invalid("days", "must be greater than 0")
	}

	snapshot, err := vm.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	today := vm.now()
	since := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
	return Analyze(snapshot, since), nil
}

// Analyze summarises a snapshot from since onwards
func Analyze(snapshot []DeviceUsage, since time.Time) *Analysis {
	a := &Analysis{
		Since:   since,
		Devices: len(snapshot),
		Totals:  make(map[models.ResourceType]float64, len(models.ResourceTypes)),
		ByType:  make(map[models.ResourceType][]DeviceTotal, len(models.ResourceTypes)),
	}
	for _, t := range models.ResourceTypes {
		a.Totals[t] = 0
	}

	all := make([]DeviceTotal, 0, len(snapshot))
	for _, du := range snapshot {
		for _, e := range du.Entries {
			if !e.Date.Before(since) {
				a.Entries++
			}
		}
		dt := DeviceTotal{Device: du.Device, Total: du.Total(since)}
		a.Totals[du.Device.Type] = models.Round2(a.Totals[du.Device.Type] + dt.Total)
		a.ByType[du.Device.Type] = append(a.ByType[du.Device.Type], dt)
		all = append(all, dt)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Total > all[j].Total
	})
	if len(all) > topDevices {
		all = all[:topDevices]
	}
	a.Top = all

	return a
}
