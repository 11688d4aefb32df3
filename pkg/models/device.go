package models

import (
	"fmt"
	"strings"
)

// ResourceType is the kind of resource a device consumes
type ResourceType string

const (
	Electric ResourceType = "electric"
	Water    ResourceType = "water"
	Waste    ResourceType = "waste"
)

// ResourceTypes lists every resource type in chart order
var ResourceTypes = []ResourceType{Electric, Water, Waste}

// ParseResourceType validates a resource type name
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case Electric, Water, Waste:
		return t, nil
	case "":
		return "", fmt.Errorf("resource type is required")
	default:
		return "", fmt.Errorf("unknown resource type: %s (available: electric, water, waste)", s)
	}
}

// Unit returns the rating unit for the resource type
func (t ResourceType) Unit() string {
	switch t {
	case Electric:
		return "kW"
	case Water:
		return "L/min"
	case Waste:
		return "kg/day"
	default:
		return ""
	}
}

// TotalUnit returns the unit of hours x rating, as shown in usage summaries
func (t ResourceType) TotalUnit() string {
	switch t {
	case Electric:
		return "kWh"
	case Water:
		return "L"
	case Waste:
		return "kg"
	default:
		return ""
	}
}

// Device is a tracked resource consumer owned by the server
type Device struct {
	ID     int          `json:"id"`
	Name   string       `json:"name"`
	Type   ResourceType `json:"type"`
	Rating float64      `json:"rating"`
	Unit   string       `json:"unit"`
}

// String formats the device for list output
func (d Device) String() string {
	unit := d.Unit
	if unit == "" {
		unit = d.Type.Unit()
	}
	return fmt.Sprintf("%s (%s, %g %s)", d.Name, d.Type, d.Rating, unit)
}
