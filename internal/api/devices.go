package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jgoulah/ecobuddy/pkg/models"
)

// NewDevice is the create-device request body
type NewDevice struct {
	Name   string              `json:"name"`
	Type   models.ResourceType `json:"type"`
	Rating float64             `json:"rating"`
	Unit   string              `json:"unit"`
}

// ListDevices fetches every device of the logged-in user
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("api", "devices"), nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// CreateDevice creates a device and returns it as stored by the server
func (c *Client) CreateDevice(ctx context.Context, d NewDevice) (models.Device, error) {
	var resp struct {
		Device *models.Device `json:"device"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("api", "devices"), d, &resp); err != nil {
		return models.Device{}, err
	}
	if resp.Device == nil || resp.Device.ID == 0 {
		return models.Device{}, &TransportError{Op: "creating device", Err: fmt.Errorf("server response has no device id")}
	}
	return *resp.Device, nil
}

// DeleteDevice deletes a device by ID
func (c *Client) DeleteDevice(ctx context.Context, id int) error {
	return c.doJSON(ctx, http.MethodDelete, c.endpoint("api", "devices", strconv.Itoa(id)), nil, nil)
}
