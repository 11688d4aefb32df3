package publisher

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/ecobuddy/internal/config"
	"github.com/jgoulah/ecobuddy/internal/database"
	"github.com/jgoulah/ecobuddy/pkg/models"
)

var shower = models.Device{ID: 3, Name: "Shower", Type: models.Water, Rating: 1.5, Unit: "L/min"}

func storedRow() database.StoredUsage {
	return database.StoredUsage{
		ID:     7,
		Device: shower,
		Entry:  models.UsageEntry{DeviceID: 3, Date: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), Hours: 3},
		Usage:  4.5,
	}
}

func TestNewRequiresASink(t *testing.T) {
	_, err := New(config.MQTTConfig{}, "ecobuddy", config.HAConfig{}, logrus.New())
	assert.Error(t, err)

	_, err = New(config.MQTTConfig{}, "ecobuddy", config.HAConfig{Enabled: true, URL: "http://ha"}, logrus.New())
	assert.EqualError(t, err, "Home Assistant token is required when enabled")

	_, err = New(config.MQTTConfig{Enabled: true}, "ecobuddy", config.HAConfig{}, logrus.New())
	assert.EqualError(t, err, "MQTT broker address is required when enabled")
}

func TestTopicAndReading(t *testing.T) {
	assert.Equal(t, "ecobuddy/water/3", Topic("ecobuddy", shower))
	assert.Equal(t, "sensor.ecobuddy_water_3", EntityID("sensor.ecobuddy", shower))

	r := NewReading(storedRow())
	assert.Equal(t, "2026-10-14", r.Date)
	assert.Equal(t, 4.5, r.Usage)
	assert.Equal(t, "L", r.Unit)
}

func TestPublishToHomeAssistant(t *testing.T) {
	var got HAPayload
	var auth string
	ha := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appdaemon/backfill_state", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer ha.Close()

	p, err := New(config.MQTTConfig{}, "ecobuddy", config.HAConfig{Enabled: true, URL: ha.URL, Token: "tok"}, logrus.New())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Publish(storedRow()))
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "sensor.ecobuddy_water_3", got.EntityID)
	assert.Equal(t, "4.50", got.State)
	assert.Equal(t, "2026-10-14T00:00:00Z", got.LastChanged)
}

func TestPublishSurfacesHTTPErrors(t *testing.T) {
	ha := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "entity unknown", http.StatusBadRequest)
	}))
	defer ha.Close()

	p, err := New(config.MQTTConfig{}, "ecobuddy", config.HAConfig{Enabled: true, URL: ha.URL, Token: "tok"}, logrus.New())
	require.NoError(t, err)

	err = p.Publish(storedRow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
