package models

import "time"

// ChargerType is the station's current class.
type ChargerType string

const (
	ChargerAC ChargerType = "AC"
	ChargerDC ChargerType = "DC"
)

// OperatingHours is one opening window of a station.
type OperatingHours struct {
	Day   string `json:"day"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Station is the canonical charging station record.
type Station struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Address        string           `json:"address"`
	Latitude       float64          `json:"latitude"`
	Longitude      float64          `json:"longitude"`
	MaxPowerKW     float64          `json:"maxPowerKw"`
	Type           ChargerType      `json:"type"`
	Reservable     bool             `json:"reservable"`
	Available      bool             `json:"available"`
	DistanceKM     *float64         `json:"distanceKm,omitempty"`
	OperatingHours []OperatingHours `json:"operatingHours,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// CacheKey implements cache.Entity.
func (s Station) CacheKey() string { return s.ID }
