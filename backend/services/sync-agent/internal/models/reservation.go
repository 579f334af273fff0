package models

import "time"

// ReservationStatus is the booking lifecycle state. Unknown legacy values are kept verbatim.
type ReservationStatus string

const (
	StatusPending    ReservationStatus = "PENDING"
	StatusApproved   ReservationStatus = "APPROVED"
	StatusConfirmed  ReservationStatus = "CONFIRMED"
	StatusInProgress ReservationStatus = "IN_PROGRESS"
	StatusCompleted  ReservationStatus = "COMPLETED"
	StatusCancelled  ReservationStatus = "CANCELLED"
)

// MinBookingMinutes is the shortest slot a booking may request.
const MinBookingMinutes = 15

// StationSnapshot is the station data denormalized onto a reservation for offline display.
type StationSnapshot struct {
	Name         string      `json:"name,omitempty"`
	Code         string      `json:"code,omitempty"`
	PricePerHour float64     `json:"pricePerHour,omitempty"`
	Type         ChargerType `json:"type,omitempty"`
	City         string      `json:"city,omitempty"`
	Latitude     float64     `json:"latitude,omitempty"`
	Longitude    float64     `json:"longitude,omitempty"`
}

// Cancellation records who cancelled a reservation and why.
type Cancellation struct {
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	ActorRole Role      `json:"actorRole,omitempty"`
	At        time.Time `json:"at"`
}

// Reservation is the canonical booking record.
type Reservation struct {
	ID              string            `json:"id"`
	BookingNumber   string            `json:"bookingNumber,omitempty"`
	StationID       string            `json:"stationId"`
	OwnerID         string            `json:"ownerId"`
	Status          ReservationStatus `json:"status"`
	Start           time.Time         `json:"start"`
	End             time.Time         `json:"end"`
	DurationMinutes int               `json:"durationMinutes"`
	SlotNumber      int               `json:"slotNumber,omitempty"`
	QRPayload       string            `json:"qrPayload,omitempty"`
	Station         StationSnapshot   `json:"station"`
	Cancellation    *Cancellation     `json:"cancellation,omitempty"`
	CanModify       bool              `json:"canModify"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// CacheKey implements cache.Entity.
func (r Reservation) CacheKey() string { return r.ID }
