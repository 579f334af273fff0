package translator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"evsync/backend/services/sync-agent/internal/lifecycle"
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

const reservationEntity = "reservation"

// DefaultDurationMinutes applies when a payload carries neither a duration nor an end time.
const DefaultDurationMinutes = 60

// Reservation maps one booking payload.
func (t *Translator) Reservation(body []byte) (models.Reservation, error) {
	f, err := parseObject(singleItem(body))
	if err != nil {
		return models.Reservation{}, &syncerr.DecodeError{Entity: reservationEntity, Err: err}
	}
	return t.reservation(f)
}

// Reservations maps a booking list; see Stations for the rejected semantics.
func (t *Translator) Reservations(body []byte) (items []models.Reservation, rejected []error, err error) {
	raws, err := listItems(body, "bookings", "reservations")
	if err != nil {
		return nil, nil, &syncerr.DecodeError{Entity: reservationEntity, Err: err}
	}
	items = make([]models.Reservation, 0, len(raws))
	for i, raw := range raws {
		f, err := parseObject(raw)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		r, err := t.reservation(f)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		items = append(items, r)
	}
	return items, rejected, nil
}

func (t *Translator) reservation(f fields) (models.Reservation, error) {
	fail := func(err error) (models.Reservation, error) {
		return models.Reservation{}, &syncerr.DecodeError{Entity: reservationEntity, Err: err}
	}

	startRaw, startOK := f.lookup("reservationDateTime", "startTime", "start")
	start, err := t.parseTime(startRaw, startOK)
	if err != nil {
		return fail(fmt.Errorf("start: %w", err))
	}

	end, duration, err := t.window(f, start)
	if err != nil {
		return fail(err)
	}

	id, err := f.identifier("id", "_id", "bookingId")
	if err != nil {
		return fail(err)
	}
	bookingNumber := f.str("bookingNumber", "reservationNumber")
	stationID := f.str("stationId", "chargingStationId")
	if id == "" {
		id = t.fallbackID(bookingNumber, stationID, f.str("reservationDateTime", "startTime", "start"))
	}

	r := models.Reservation{
		ID:              id,
		BookingNumber:   bookingNumber,
		StationID:       stationID,
		OwnerID:         f.str("evOwnerNic", "ownerNic", "nic"),
		Status:          lifecycle.NormalizeStatus(f.str("status")),
		Start:           start,
		End:             end,
		DurationMinutes: duration,
		QRPayload:       firstNonEmpty(f.str("qrCode", "qrPayload"), bookingNumber, id),
		Station:         t.stationSnapshot(f),
		CanModify:       f.boolean(false, "canBeModified", "canModify"),
	}
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	if slot, ok := f.integer("slotNumber", "slot"); ok {
		r.SlotNumber = slot
	}
	if r.StationID == "" {
		r.StationID = f.object("station").str("id", "stationId")
	}

	if reason, actor := f.str("cancellationReason"), f.str("cancelledBy"); reason != "" || actor != "" || r.Status == models.StatusCancelled {
		cancelledRaw, cancelledOK := f.lookup("cancelledAt", "cancellationDate")
		r.Cancellation = &models.Cancellation{
			Reason:    reason,
			Actor:     actor,
			ActorRole: models.Role(strings.ToUpper(f.str("cancelledByRole"))),
			At:        t.lenientTime(cancelledRaw, cancelledOK),
		}
	}

	createdRaw, createdOK := f.lookup("createdAt", "createdDate")
	updatedRaw, updatedOK := f.lookup("updatedAt", "lastUpdated")
	r.CreatedAt = t.lenientTime(createdRaw, createdOK)
	r.UpdatedAt = t.lenientTime(updatedRaw, updatedOK)
	return r, nil
}

// window resolves end and duration so that end >= start and duration >= 1 minute.
// A supplied duration wins; otherwise the duration is reconstructed from the end time.
func (t *Translator) window(f fields, start time.Time) (time.Time, int, error) {
	duration, hasDuration := f.integer("durationMinutes", "duration")
	endRaw, endOK := f.lookup("endTime", "reservationEndDateTime", "end")

	var (
		end    time.Time
		hasEnd bool
	)
	if endOK {
		parsed, err := t.parseTime(endRaw, true)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("end: %w", err)
		}
		if parsed.Before(start) {
			return time.Time{}, 0, errors.New("end precedes start")
		}
		end, hasEnd = parsed, true
	}

	switch {
	case hasDuration && duration > 0:
		if !hasEnd {
			end = start.Add(time.Duration(duration) * time.Minute)
		}
	case hasEnd:
		duration = int(end.Sub(start) / time.Minute)
	default:
		duration = DefaultDurationMinutes
		end = start.Add(time.Duration(duration) * time.Minute)
	}
	if duration < 1 {
		duration = 1
	}
	return end, duration, nil
}

// fallbackID: booking number, then stationId-dateTime, then a random id.
func (t *Translator) fallbackID(bookingNumber, stationID, rawStart string) string {
	switch {
	case bookingNumber != "":
		return bookingNumber
	case stationID != "" && rawStart != "":
		return stationID + "-" + rawStart
	default:
		return t.newID()
	}
}

func (t *Translator) stationSnapshot(f fields) models.StationSnapshot {
	nested := f.object("station")
	if nested == nil {
		nested = fields{}
	}
	snap := models.StationSnapshot{
		Name: firstNonEmpty(f.str("stationName"), nested.str("name")),
		Code: firstNonEmpty(f.str("stationCode"), nested.str("code", "stationCode")),
		City: firstNonEmpty(f.str("city", "stationCity"), nested.str("city")),
		Type: models.ChargerType(normalizeChargerType(
			f.str("stationType"), f.str("chargerType"), nested.str("type"), nested.str("stationType"),
		)),
	}
	if price, ok := f.float("pricePerHour"); ok {
		snap.PricePerHour = price
	} else if price, ok := nested.float("pricePerHour"); ok {
		snap.PricePerHour = price
	}
	if lat, ok := f.float("stationLatitude", "latitude"); ok {
		snap.Latitude = lat
	} else if lat, ok := nested.float("latitude"); ok {
		snap.Latitude = lat
	}
	if lon, ok := f.float("stationLongitude", "longitude"); ok {
		snap.Longitude = lon
	} else if lon, ok := nested.float("longitude"); ok {
		snap.Longitude = lon
	}
	return snap
}
