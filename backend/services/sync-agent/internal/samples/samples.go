// Package samples holds the built-in entities shown when neither the remote nor the cache can answer.
// They are never written to the cache.
package samples

import (
	"strings"
	"time"

	"evsync/backend/services/sync-agent/internal/models"
)

// IDPrefix marks every sample identifier.
const IDPrefix = "sample-"

var seeded = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// IsSample reports whether id belongs to a built-in sample.
func IsSample(id string) bool { return strings.HasPrefix(id, IDPrefix) }

// Stations returns the four sample stations.
func Stations() []models.Station {
	return []models.Station{
		{
			ID: IDPrefix + "station-1", Name: "Colombo City Centre", Address: "137 Sir James Peiris Mawatha, Colombo 02",
			Latitude: 6.9177, Longitude: 79.8553, MaxPowerKW: 50, Type: models.ChargerDC,
			Reservable: true, Available: true, CreatedAt: seeded, UpdatedAt: seeded,
		},
		{
			ID: IDPrefix + "station-2", Name: "Kandy Lake Round", Address: "Dalada Veediya, Kandy",
			Latitude: 7.2931, Longitude: 80.6413, MaxPowerKW: 22, Type: models.ChargerAC,
			Reservable: true, Available: true, CreatedAt: seeded, UpdatedAt: seeded,
		},
		{
			ID: IDPrefix + "station-3", Name: "Galle Fort Gate", Address: "Church Street, Galle",
			Latitude: 6.0269, Longitude: 80.2168, MaxPowerKW: 7.4, Type: models.ChargerAC,
			Reservable: true, Available: false, CreatedAt: seeded, UpdatedAt: seeded,
		},
		{
			ID: IDPrefix + "station-4", Name: "Negombo Expressway Exit", Address: "Katunayake Expressway, Negombo",
			Latitude: 7.1725, Longitude: 79.8853, MaxPowerKW: 120, Type: models.ChargerDC,
			Reservable: false, Available: true, CreatedAt: seeded, UpdatedAt: seeded,
		},
	}
}

// Reservations returns the three sample reservations for ownerID, scheduled around now:
// two upcoming and one completed.
func Reservations(ownerID string, now time.Time) []models.Reservation {
	base := now.UTC().Truncate(time.Hour)
	stations := Stations()
	snapshot := func(s models.Station, price float64) models.StationSnapshot {
		return models.StationSnapshot{
			Name: s.Name, Code: strings.ToUpper(strings.TrimPrefix(s.ID, IDPrefix)), PricePerHour: price,
			Type: s.Type, Latitude: s.Latitude, Longitude: s.Longitude,
		}
	}
	reservation := func(n string, station models.Station, price float64, status models.ReservationStatus, start time.Time, minutes int) models.Reservation {
		id := IDPrefix + "booking-" + n
		return models.Reservation{
			ID: id, BookingNumber: strings.ToUpper(id), StationID: station.ID, OwnerID: ownerID, Status: status,
			Start: start, End: start.Add(time.Duration(minutes) * time.Minute), DurationMinutes: minutes,
			SlotNumber: 1, QRPayload: strings.ToUpper(id), Station: snapshot(station, price),
			CanModify: status == models.StatusPending, CreatedAt: seeded, UpdatedAt: seeded,
		}
	}
	return []models.Reservation{
		reservation("1", stations[0], 450, models.StatusConfirmed, base.Add(24*time.Hour), 60),
		reservation("2", stations[1], 300, models.StatusPending, base.Add(72*time.Hour), 90),
		reservation("3", stations[2], 250, models.StatusCompleted, base.Add(-48*time.Hour), 45),
	}
}
