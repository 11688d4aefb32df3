package viewmodel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/ecobuddy/internal/api"
	"github.com/jgoulah/ecobuddy/internal/api/apitest"
	"github.com/jgoulah/ecobuddy/internal/viewmodel"
	"github.com/jgoulah/ecobuddy/pkg/models"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAnalyzeTotalsAndRanking(t *testing.T) {
	heater := models.Device{ID: 1, Name: "Heater", Type: models.Electric, Rating: 2}
	fridge := models.Device{ID: 2, Name: "Fridge", Type: models.Electric, Rating: 0.25}
	shower := models.Device{ID: 3, Name: "Shower", Type: models.Water, Rating: 9}

	snapshot := []viewmodel.DeviceUsage{
		{Device: heater, Entries: []models.UsageEntry{
			{DeviceID: 1, Date: day("2026-10-01"), Hours: 3},
			{DeviceID: 1, Date: day("2026-08-01"), Hours: 100}, // before window
		}},
		{Device: fridge, Entries: []models.UsageEntry{
			{DeviceID: 2, Date: day("2026-10-02"), Hours: 24},
		}},
		{Device: shower, Entries: []models.UsageEntry{
			{DeviceID: 3, Date: day("2026-10-03"), Hours: 0.5},
		}},
	}

	a := viewmodel.Analyze(snapshot, day("2026-09-15"))

	assert.Equal(t, 3, a.Devices)
	assert.Equal(t, 3, a.Entries)
	assert.Equal(t, 12.0, a.Totals[models.Electric])
	assert.Equal(t, 4.5, a.Totals[models.Water])
	assert.Equal(t, 0.0, a.Totals[models.Waste])
	require.Len(t, a.Top, 3)
	assert.Equal(t, "Heater", a.Top[0].Device.Name)
	assert.Equal(t, "Shower", a.Top[2].Device.Name)
	assert.Len(t, a.ByType[models.Electric], 2)
}

func TestAnalyzeKeepsTopFive(t *testing.T) {
	var snapshot []viewmodel.DeviceUsage
	for i := 1; i <= 7; i++ {
		snapshot = append(snapshot, viewmodel.DeviceUsage{
			Device:  models.Device{ID: i, Type: models.Waste, Rating: 1},
			Entries: []models.UsageEntry{{DeviceID: i, Date: day("2026-10-01"), Hours: float64(i)}},
		})
	}

	a := viewmodel.Analyze(snapshot, day("2026-09-01"))
	require.Len(t, a.Top, 5)
	assert.Equal(t, 7, a.Top[0].Device.ID)
	assert.Equal(t, 28.0, a.Totals[models.Waste])
}

func TestSnapshotFetchesEveryDevice(t *testing.T) {
	srv := apitest.NewServer("me@example.com", "pw")
	defer srv.Close()
	ctx := context.Background()

	client, err := api.New(srv.URL)
	require.NoError(t, err)
	require.NoError(t, client.Login(ctx, srv.Email, srv.Password))

	for i := 0; i < 6; i++ {
		d := srv.AddDevice("Bin", models.Waste, 0.5)
		srv.SetUsage(d.ID, "2026-10-10", float64(i+1))
	}

	vm := viewmodel.New(client, nil, viewmodel.WithClock(func() time.Time { return today }))
	snapshot, err := vm.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 6)
	for i, du := range snapshot {
		assert.Equal(t, i+1, du.Device.ID)
		require.Len(t, du.Entries, 1)
	}
	assert.Equal(t, 6, srv.Requests("GET /api/devices/{id}/usage"))

	a, err := vm.Analyze(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 10.5, a.Totals[models.Waste])

	// the rendered list is untouched by snapshots
	assert.Empty(t, vm.Devices())
}
