package translator

import (
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

// Validation is the canonical answer of the validate-session endpoint.
type Validation struct {
	Valid       bool
	Message     string
	Reservation *models.Reservation
}

// Validation maps {valid, message, reservation?}. A reservation that is present but unmappable
// fails the whole translation.
func (t *Translator) Validation(body []byte) (Validation, error) {
	f, err := parseObject(body)
	if err != nil {
		return Validation{}, &syncerr.DecodeError{Entity: "session validation", Err: err}
	}
	v := Validation{
		Valid:   f.boolean(false, "valid", "isValid"),
		Message: f.str("message"),
	}
	if raw, ok := f.lookup("reservation", "booking"); ok {
		nested, err := parseObject(raw)
		if err != nil {
			return Validation{}, &syncerr.DecodeError{Entity: "session validation", Err: err}
		}
		r, err := t.reservation(nested)
		if err != nil {
			return Validation{}, err
		}
		v.Reservation = &r
	}
	return v, nil
}
