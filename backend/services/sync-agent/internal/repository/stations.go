package repository

import (
	"context"
	"math"
	"sort"

	"evsync/backend/services/sync-agent/internal/cache"
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/samples"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

const earthRadiusKM = 6371.0

// Stations is the synchronizing repository for charging stations.
type Stations struct {
	base
	store cache.Store[models.Station]
}

// NewStations returns repository.
func NewStations(d Deps, store cache.Store[models.Station]) *Stations {
	return &Stations{base: newBase(d, "stations"), store: store}
}

// List reads one page of stations. An unfiltered first page that came back short is the whole
// catalogue and replaces the cached family; anything else replaces only the returned rows.
// Offline it answers with every cached station.
func (s *Stations) List(ctx context.Context, q StationQuery) (Listing[models.Station], error) {
	return readThrough(ctx, s.base, cache.FamilyStations, "list",
		func(ctx context.Context) ([]models.Station, error) {
			body, err := s.remote.ListStations(ctx, q)
			if err != nil {
				return nil, err
			}
			items, rejected, err := s.tr.Stations(body)
			logRejected(s.logger, cache.FamilyStations, rejected)
			return items, err
		},
		func(ctx context.Context, items []models.Station) error {
			stored := withoutDistance(items)
			if completeCatalogue(q, len(items)) {
				return s.store.ReplaceScope(ctx, nil, stored)
			}
			return s.store.Upsert(ctx, stored...)
		},
		func(ctx context.Context) ([]models.Station, bool, error) {
			all, err := s.store.GetAll(ctx)
			return all, len(all) > 0, err
		},
		samples.Stations,
	)
}

func completeCatalogue(q StationQuery, n int) bool {
	return q.Search == "" && q.Page <= 1 && (q.PageSize <= 0 || n < q.PageSize)
}

// Nearby finds stations within radiusKM. Offline, distances are recomputed from cached coordinates;
// a populated cache with nothing in range answers with an empty list rather than samples.
func (s *Stations) Nearby(ctx context.Context, lat, lon, radiusKM float64) (Listing[models.Station], error) {
	if err := validateCoordinates(lat, lon, radiusKM); err != nil {
		return Listing[models.Station]{}, err
	}
	return readThrough(ctx, s.base, cache.FamilyStations, "nearby",
		func(ctx context.Context) ([]models.Station, error) {
			body, err := s.remote.NearbyStations(ctx, lat, lon, radiusKM)
			if err != nil {
				return nil, err
			}
			items, rejected, err := s.tr.Stations(body)
			logRejected(s.logger, cache.FamilyStations, rejected)
			for i := range items {
				if items[i].DistanceKM == nil {
					d := haversineKM(lat, lon, items[i].Latitude, items[i].Longitude)
					items[i].DistanceKM = &d
				}
			}
			return items, err
		},
		func(ctx context.Context, items []models.Station) error {
			return s.store.Upsert(ctx, withoutDistance(items)...)
		},
		func(ctx context.Context) ([]models.Station, bool, error) {
			all, err := s.store.GetAll(ctx)
			return withinRadius(all, lat, lon, radiusKM), len(all) > 0, err
		},
		func() []models.Station {
			return byDistance(samples.Stations(), lat, lon)
		},
	)
}

// Get reads one station; offline it serves the cached copy and never a sample.
func (s *Stations) Get(ctx context.Context, id string) (Fetched[models.Station], error) {
	return pointRead(ctx, s.base, s.store, cache.FamilyStations, id, func(ctx context.Context) (models.Station, error) {
		body, err := s.remote.GetStation(ctx, id)
		if err != nil {
			return models.Station{}, err
		}
		if emptyBody(body) {
			return models.Station{}, &syncerr.NotFoundError{Entity: "station", ID: id}
		}
		station, err := s.tr.Station(body)
		if err != nil {
			return models.Station{}, err
		}
		station.DistanceKM = nil
		return station, nil
	})
}

func validateCoordinates(lat, lon, radiusKM float64) error {
	switch {
	case math.IsNaN(lat) || lat < -90 || lat > 90:
		return &syncerr.ValidationError{Field: "latitude", Reason: "must be within [-90, 90]"}
	case math.IsNaN(lon) || lon < -180 || lon > 180:
		return &syncerr.ValidationError{Field: "longitude", Reason: "must be within [-180, 180]"}
	case math.IsNaN(radiusKM) || radiusKM <= 0:
		return &syncerr.ValidationError{Field: "radiusKm", Reason: "must be positive"}
	}
	return nil
}

func withoutDistance(items []models.Station) []models.Station {
	out := make([]models.Station, len(items))
	for i, item := range items {
		item.DistanceKM = nil
		out[i] = item
	}
	return out
}

func withinRadius(items []models.Station, lat, lon, radiusKM float64) []models.Station {
	sorted := byDistance(items, lat, lon)
	out := sorted[:0]
	for _, item := range sorted {
		if *item.DistanceKM <= radiusKM {
			out = append(out, item)
		}
	}
	return out
}

func byDistance(items []models.Station, lat, lon float64) []models.Station {
	out := make([]models.Station, len(items))
	for i, item := range items {
		d := haversineKM(lat, lon, item.Latitude, item.Longitude)
		item.DistanceKM = &d
		out[i] = item
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceKM < *out[j].DistanceKM })
	return out
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
