package translator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

var (
	fixedNow = time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	colombo  = time.FixedZone("+0530", 5*3600+30*60)
)

func newTestTranslator() *Translator {
	return New(colombo,
		WithClock(func() time.Time { return fixedNow }),
		WithIDSource(func() string { return "generated-id" }),
	)
}

func TestParseTimestamp(t *testing.T) {
	tr := newTestTranslator()
	cases := []struct {
		in   string
		want time.Time
	}{
		{in: "2025-03-12T10:00:00Z", want: time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)},
		{in: "2025-03-12T10:00:00.250Z", want: time.Date(2025, 3, 12, 10, 0, 0, 250e6, time.UTC)},
		{in: "2025-03-12T15:30:00+05:30", want: time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)},
		{in: "2025-03-12T15:30:00", want: time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)},
		{in: "2025-03-12 15:30", want: time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := tr.ParseTimestamp(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %s", tc.in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := tr.ParseTimestamp("next tuesday")
	assert.Error(t, err)
	_, err = tr.ParseTimestamp(" ")
	assert.Error(t, err)
}

func TestStationShapes(t *testing.T) {
	tr := newTestTranslator()

	flat, err := tr.Station([]byte(`{"id": "st-1", "name": "Colombo Central", "stationType": "dc_fast", "latitude": "6.93", "longitude": 79.85, "maxPowerKw": 50, "isReservable": false}`))
	require.NoError(t, err)
	assert.Equal(t, "st-1", flat.ID)
	assert.Equal(t, models.ChargerDC, flat.Type)
	assert.Equal(t, 6.93, flat.Latitude)
	assert.Equal(t, 50.0, flat.MaxPowerKW)
	assert.False(t, flat.Reservable)
	assert.True(t, flat.Available, "absent flag defaults to true")
	assert.Equal(t, fixedNow, flat.CreatedAt)

	nested, err := tr.Station([]byte(`{"data": {"_id": {"timestamp": 1741600000, "creationTime": "2025-03-10T00:00:00Z"}, "stationName": "Kandy", "type": "Ac", "location": {"address": "Peradeniya Rd", "lat": 7.29, "lng": 80.63}, "operatingHours": [{"dayOfWeek": "MON", "openTime": "08:00", "closeTime": "20:00"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, "1741600000", nested.ID)
	assert.Equal(t, "Kandy", nested.Name)
	assert.Equal(t, models.ChargerAC, nested.Type)
	assert.Equal(t, "Peradeniya Rd", nested.Address)
	assert.Equal(t, 80.63, nested.Longitude)
	assert.Equal(t, []models.OperatingHours{{Day: "MON", Open: "08:00", Close: "20:00"}}, nested.OperatingHours)

	unknown, err := tr.Station([]byte(`{"id": "st-3", "type": "type2"}`))
	require.NoError(t, err)
	assert.Equal(t, models.ChargerAC, unknown.Type)
}

func TestStationsSkipsBadEntries(t *testing.T) {
	tr := newTestTranslator()

	items, rejected, err := tr.Stations([]byte(`{"stations": [{"id": "a"}, {"name": "no id"}, 7, {"id": "b"}]}`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)
	assert.Len(t, rejected, 2)

	_, _, err = tr.Stations([]byte(`{"unexpected": true}`))
	var decodeErr *syncerr.DecodeError
	assert.ErrorAs(t, err, &decodeErr)

	items, _, err = tr.Stations(nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReservationWindow(t *testing.T) {
	tr := newTestTranslator()
	start := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		body     string
		end      time.Time
		duration int
	}{
		{
			name:     "duration only",
			body:     `{"id": "r1", "reservationDateTime": "2025-03-12T10:00:00Z", "durationMinutes": 90}`,
			end:      start.Add(90 * time.Minute),
			duration: 90,
		},
		{
			name:     "end only",
			body:     `{"id": "r1", "startTime": "2025-03-12T10:00:00Z", "endTime": "2025-03-12T10:45:00Z"}`,
			end:      start.Add(45 * time.Minute),
			duration: 45,
		},
		{
			name:     "neither",
			body:     `{"id": "r1", "start": "2025-03-12T10:00:00Z"}`,
			end:      start.Add(DefaultDurationMinutes * time.Minute),
			duration: DefaultDurationMinutes,
		},
		{
			name:     "zero length",
			body:     `{"id": "r1", "start": "2025-03-12T10:00:00Z", "end": "2025-03-12T10:00:00Z"}`,
			end:      start,
			duration: 1,
		},
		{
			name:     "epoch millis",
			body:     `{"id": "r1", "reservationDateTime": 1741773600000, "durationMinutes": 30}`,
			end:      start.Add(30 * time.Minute),
			duration: 30,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := tr.Reservation([]byte(tc.body))
			require.NoError(t, err)
			assert.True(t, start.Equal(r.Start), "start %s", r.Start)
			assert.True(t, tc.end.Equal(r.End), "end %s", r.End)
			assert.Equal(t, tc.duration, r.DurationMinutes)
			assert.False(t, r.End.Before(r.Start))
		})
	}
}

func TestReservationRejectsBadTimes(t *testing.T) {
	tr := newTestTranslator()
	for _, body := range []string{
		`{"id": "r1"}`,
		`{"id": "r1", "reservationDateTime": "soon"}`,
		`{"id": "r1", "reservationDateTime": "2025-03-12T10:00:00Z", "endTime": "2025-03-12T09:00:00Z"}`,
		`[]`,
	} {
		_, err := tr.Reservation([]byte(body))
		var decodeErr *syncerr.DecodeError
		assert.ErrorAs(t, err, &decodeErr, body)
	}
}

func TestReservationFields(t *testing.T) {
	tr := newTestTranslator()
	r, err := tr.Reservation([]byte(`{
		"id": "r1",
		"bookingNumber": "BK-001",
		"chargingStationId": "st-9",
		"evOwnerNic": "199012345678",
		"status": "cancelled",
		"reservationDateTime": "2025-03-12T15:30:00",
		"durationMinutes": 60,
		"slotNumber": "2",
		"cancellationReason": "Trip postponed",
		"cancelledBy": "op-1",
		"cancelledByRole": "operator",
		"cancelledAt": "2025-03-11T08:00:00Z",
		"station": {"name": "Galle Fort", "city": "Galle", "type": "DC", "pricePerHour": 1200},
		"canBeModified": true,
		"createdAt": "2025-03-01T00:00:00Z"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "BK-001", r.BookingNumber)
	assert.Equal(t, "st-9", r.StationID)
	assert.Equal(t, "199012345678", r.OwnerID)
	assert.Equal(t, models.StatusCancelled, r.Status)
	assert.Equal(t, time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, 2, r.SlotNumber)
	assert.Equal(t, "BK-001", r.QRPayload)
	assert.Equal(t, models.StationSnapshot{Name: "Galle Fort", City: "Galle", Type: models.ChargerDC, PricePerHour: 1200}, r.Station)
	assert.True(t, r.CanModify)
	require.NotNil(t, r.Cancellation)
	assert.Equal(t, "Trip postponed", r.Cancellation.Reason)
	assert.Equal(t, models.RoleOperator, r.Cancellation.ActorRole)
	assert.Equal(t, time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC), r.Cancellation.At)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), r.CreatedAt)
	assert.Equal(t, fixedNow, r.UpdatedAt, "missing update stamp defaults to now")
}

func TestReservationFallbackIDs(t *testing.T) {
	tr := newTestTranslator()

	byNumber, err := tr.Reservation([]byte(`{"bookingNumber": "BK-7", "stationId": "st-1", "start": "2025-03-12T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "BK-7", byNumber.ID)

	byStation, err := tr.Reservation([]byte(`{"stationId": "st-1", "start": "2025-03-12T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "st-1-2025-03-12T10:00:00Z", byStation.ID)

	random, err := tr.Reservation([]byte(`{"start": "2025-03-12T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "generated-id", random.ID)
	assert.Equal(t, models.StatusPending, random.Status)
}

func TestTranslationIsDeterministic(t *testing.T) {
	tr := newTestTranslator()
	body := []byte(`{"id": "r1", "stationId": "st-1", "status": "Confirmed", "reservationDateTime": "2025-03-12T10:00:00Z", "duration": 30}`)

	first, err := tr.Reservation(body)
	require.NoError(t, err)
	second, err := tr.Reservation(body)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, models.StatusConfirmed, first.Status)
}

func TestValidation(t *testing.T) {
	tr := newTestTranslator()

	ok, err := tr.Validation([]byte(`{"isValid": true, "message": "Booking verified", "booking": {"id": "r1", "start": "2025-03-12T10:00:00Z"}}`))
	require.NoError(t, err)
	assert.True(t, ok.Valid)
	assert.Equal(t, "Booking verified", ok.Message)
	require.NotNil(t, ok.Reservation)
	assert.Equal(t, "r1", ok.Reservation.ID)

	denied, err := tr.Validation([]byte(`{"valid": false, "message": "Too early"}`))
	require.NoError(t, err)
	assert.False(t, denied.Valid)
	assert.Nil(t, denied.Reservation)

	_, err = tr.Validation([]byte(`{"valid": true, "reservation": {"id": "r1"}}`))
	var decodeErr *syncerr.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}
