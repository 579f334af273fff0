package translator

import (
	"errors"
	"fmt"

	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

const stationEntity = "station"

// Station maps one station payload.
func (t *Translator) Station(body []byte) (models.Station, error) {
	f, err := parseObject(singleItem(body))
	if err != nil {
		return models.Station{}, &syncerr.DecodeError{Entity: stationEntity, Err: err}
	}
	return t.station(f)
}

// Stations maps a station list. Entries that cannot be mapped are skipped and reported in rejected;
// err is set only when the envelope itself is malformed.
func (t *Translator) Stations(body []byte) (items []models.Station, rejected []error, err error) {
	raws, err := listItems(body, "stations", "chargingStations")
	if err != nil {
		return nil, nil, &syncerr.DecodeError{Entity: stationEntity, Err: err}
	}
	items = make([]models.Station, 0, len(raws))
	for i, raw := range raws {
		f, err := parseObject(raw)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		station, err := t.station(f)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		items = append(items, station)
	}
	return items, rejected, nil
}

func (t *Translator) station(f fields) (models.Station, error) {
	id, err := f.identifier("id", "_id", "stationId")
	if err != nil {
		return models.Station{}, &syncerr.DecodeError{Entity: stationEntity, Err: err}
	}
	if id == "" {
		return models.Station{}, &syncerr.DecodeError{Entity: stationEntity, Err: errors.New("missing id")}
	}

	location := f.object("location")
	if location == nil {
		location = fields{}
	}

	s := models.Station{
		ID:         id,
		Name:       f.str("name", "stationName"),
		Address:    firstNonEmpty(f.str("address"), location.str("address")),
		Type:       models.ChargerType(normalizeChargerType(f.str("type"), f.str("stationType"), f.str("chargerType"))),
		Reservable: f.boolean(true, "isReservable", "reservable"),
		Available:  f.boolean(true, "isAvailable", "available"),
	}
	if s.Type == "" {
		s.Type = models.ChargerAC
	}
	if lat, ok := f.float("latitude", "lat"); ok {
		s.Latitude = lat
	} else if lat, ok := location.float("latitude", "lat"); ok {
		s.Latitude = lat
	}
	if lon, ok := f.float("longitude", "lng", "lon"); ok {
		s.Longitude = lon
	} else if lon, ok := location.float("longitude", "lng", "lon"); ok {
		s.Longitude = lon
	}
	if power, ok := f.float("maxPowerKw", "powerRating", "maxPower"); ok {
		s.MaxPowerKW = power
	}
	if distance, ok := f.float("distanceKm", "distance"); ok {
		s.DistanceKM = &distance
	}
	s.OperatingHours = operatingHours(f)

	createdRaw, createdOK := f.lookup("createdAt", "createdDate")
	updatedRaw, updatedOK := f.lookup("updatedAt", "lastUpdated")
	s.CreatedAt = t.lenientTime(createdRaw, createdOK)
	s.UpdatedAt = t.lenientTime(updatedRaw, updatedOK)
	return s, nil
}

func operatingHours(f fields) []models.OperatingHours {
	raws, err := listItems(f["operatingHours"])
	if err != nil || len(raws) == 0 {
		return nil
	}
	out := make([]models.OperatingHours, 0, len(raws))
	for _, raw := range raws {
		entry, err := parseObject(raw)
		if err != nil {
			continue
		}
		out = append(out, models.OperatingHours{
			Day:   entry.str("day", "dayOfWeek"),
			Open:  entry.str("open", "openTime"),
			Close: entry.str("close", "closeTime"),
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
