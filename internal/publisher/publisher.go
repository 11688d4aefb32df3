package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jgoulah/ecobuddy/internal/config"
	"github.com/jgoulah/ecobuddy/internal/database"
	"github.com/jgoulah/ecobuddy/pkg/models"
)

// Publisher sends computed device usage to MQTT and/or Home Assistant
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client
	log         logrus.FieldLogger
}

// New creates a new publisher; at least one sink must be enabled
func New(mqttCfg config.MQTTConfig, topicPrefix string, haCfg config.HAConfig, log logrus.FieldLogger) (*Publisher, error) {
	if !mqttCfg.Enabled && !haCfg.Enabled {
		return nil, fmt.Errorf("neither MQTT nor Home Assistant is enabled in config")
	}

	// Validate HA config if enabled
	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		if haCfg.EntityPrefix == "" {
			haCfg.EntityPrefix = "sensor.ecobuddy"
		}
	}

	p := &Publisher{
		topicPrefix: topicPrefix,
		haConfig:    haCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}

	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID("ecobuddy-" + uuid.NewString()[:8])
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		p.client = mqtt.NewClient(opts)
		if token := p.client.Connect(); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
		}
	}

	return p, nil
}

// Reading is the MQTT payload for one day of a device's usage
type Reading struct {
	DeviceID int     `json:"device_id"`
	Device   string  `json:"device"`
	Type     string  `json:"type"`
	Date     string  `json:"date"`
	Hours    float64 `json:"hours_used"`
	Usage    float64 `json:"usage"`
	Unit     string  `json:"unit"`
}

// HAPayload matches the Home Assistant backfill service call data
type HAPayload struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
	LastUpdated string `json:"last_updated"`
}

// Topic returns the MQTT topic for a device
func Topic(prefix string, d models.Device) string {
	return fmt.Sprintf("%s/%s/%d", prefix, d.Type, d.ID)
}

// EntityID returns the Home Assistant entity for a device
func EntityID(prefix string, d models.Device) string {
	return fmt.Sprintf("%s_%s_%d", prefix, d.Type, d.ID)
}

// NewReading builds the payload for a stored usage row
func NewReading(su database.StoredUsage) Reading {
	return Reading{
		DeviceID: su.Device.ID,
		Device:   su.Device.Name,
		Type:     string(su.Device.Type),
		Date:     su.Entry.Date.Format(models.DateLayout),
		Hours:    su.Entry.Hours,
		Usage:    su.Usage,
		Unit:     su.Device.Type.TotalUnit(),
	}
}

// Publish sends one stored usage row to every enabled sink
func (p *Publisher) Publish(su database.StoredUsage) error {
	if p.client != nil {
		if err := p.publishMQTT(su); err != nil {
			return err
		}
	}
	if p.haConfig.Enabled {
		if err := p.publishHA(su); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishMQTT(su database.StoredUsage) error {
	body, err := json.Marshal(NewReading(su))
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	topic := Topic(p.topicPrefix, su.Device)
	token := p.client.Publish(topic, 1, false, body)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}

	p.log.WithFields(logrus.Fields{"topic": topic, "date": su.Entry.Date.Format(models.DateLayout)}).Debug("published to MQTT")
	return nil
}

func (p *Publisher) publishHA(su database.StoredUsage) error {
	// Build the full API URL (AppDaemon API endpoint)
	apiURL := fmt.Sprintf("%s/api/appdaemon/backfill_state", p.haConfig.URL)

	timestamp := su.Entry.Date.Format(time.RFC3339)
	payload := HAPayload{
		EntityID:    EntityID(p.haConfig.EntityPrefix, su.Device),
		State:       models.FormatUsage(su.Usage),
		LastChanged: timestamp,
		LastUpdated: timestamp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequest("POST", apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read error response body for debugging
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
