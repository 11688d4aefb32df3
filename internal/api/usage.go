package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jgoulah/ecobuddy/pkg/models"
)

type usageResponse struct {
	UsageData map[string]float64 `json:"usage_data"`
}

type usageRequest struct {
	Date      string  `json:"date"`
	HoursUsed float64 `json:"hours_used"`
}

// GetUsage fetches a device's usage entries, oldest first
func (c *Client) GetUsage(ctx context.Context, deviceID int) ([]models.UsageEntry, error) {
	var resp usageResponse
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("api", "devices", strconv.Itoa(deviceID), "usage"), nil, &resp); err != nil {
		return nil, err
	}

	entries := make([]models.UsageEntry, 0, len(resp.UsageData))
	for dateStr, hours := range resp.UsageData {
		date, err := time.Parse(models.DateLayout, dateStr)
		if err != nil {
			c.log.WithField("device_id", deviceID).WithError(err).Warn("skipping usage entry with unparseable date")
			continue
		}
		entries = append(entries, models.UsageEntry{DeviceID: deviceID, Date: date, Hours: hours})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})

	return entries, nil
}

// RecordUsage upserts the hours a device was used on a date
func (c *Client) RecordUsage(ctx context.Context, deviceID int, date time.Time, hours float64) error {
	req := usageRequest{
		Date:      date.Format(models.DateLayout),
		HoursUsed: hours,
	}
	return c.doJSON(ctx, http.MethodPost, c.endpoint("api", "devices", strconv.Itoa(deviceID), "usage"), req, nil)
}
