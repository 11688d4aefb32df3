package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/ecobuddy/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func date(s string) time.Time {
	d, _ := time.Parse(models.DateLayout, s)
	return d
}

func TestUpsertUsageOverwritesSameDate(t *testing.T) {
	db := openTestDB(t)
	shower := models.Device{ID: 3, Name: "Shower", Type: models.Water, Rating: 1.5}
	require.NoError(t, db.ReplaceDevices([]models.Device{shower}))

	require.NoError(t, db.UpsertUsage(shower, models.UsageEntry{DeviceID: 3, Date: date("2026-10-13"), Hours: 2}))
	require.NoError(t, db.UpsertUsage(shower, models.UsageEntry{DeviceID: 3, Date: date("2026-10-14"), Hours: 1}))
	require.NoError(t, db.UpsertUsage(shower, models.UsageEntry{DeviceID: 3, Date: date("2026-10-14"), Hours: 3}))

	rows, err := db.ListUsage(shower.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, date("2026-10-14"), rows[0].Entry.Date)
	assert.Equal(t, 3.0, rows[0].Entry.Hours)
	assert.Equal(t, 4.5, rows[0].Usage)
	assert.Equal(t, "L/min", rows[0].Device.Unit)
}

func TestPublishedFlagResetsOnChange(t *testing.T) {
	db := openTestDB(t)
	heater := models.Device{ID: 1, Name: "Heater", Type: models.Electric, Rating: 2}
	require.NoError(t, db.ReplaceDevices([]models.Device{heater}))

	entry := models.UsageEntry{DeviceID: 1, Date: date("2026-10-13"), Hours: 2}
	require.NoError(t, db.UpsertUsage(heater, entry))

	pending, err := db.ListUnpublishedUsage()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, db.MarkPublished(pending[0].ID))

	// same value again stays published
	require.NoError(t, db.UpsertUsage(heater, entry))
	pending, err = db.ListUnpublishedUsage()
	require.NoError(t, err)
	assert.Empty(t, pending)

	entry.Hours = 5
	require.NoError(t, db.UpsertUsage(heater, entry))
	pending, err = db.ListUnpublishedUsage()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 10.0, pending[0].Usage)
}

func TestReplaceDevicesPrunesUsage(t *testing.T) {
	db := openTestDB(t)
	heater := models.Device{ID: 1, Name: "Heater", Type: models.Electric, Rating: 2}
	bin := models.Device{ID: 2, Name: "Bin", Type: models.Waste, Rating: 0.5}
	require.NoError(t, db.ReplaceDevices([]models.Device{heater, bin}))
	require.NoError(t, db.UpsertUsage(bin, models.UsageEntry{DeviceID: 2, Date: date("2026-10-13"), Hours: 1}))

	require.NoError(t, db.ReplaceDevices([]models.Device{heater}))

	devices, err := db.ListDevices()
	require.NoError(t, err)
	assert.Equal(t, []models.Device{{ID: 1, Name: "Heater", Type: models.Electric, Rating: 2, Unit: "kW"}}, devices)

	rows, err := db.ListUsage(0)
	require.NoError(t, err)
	assert.Empty(t, rows)

	synced, err := db.LastSynced()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), synced, time.Minute)
}
