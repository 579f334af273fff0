package translator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// fields is a defensively parsed JSON object whose keys may arrive under alternate names.
type fields map[string]json.RawMessage

func parseObject(raw []byte) (fields, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, errors.New("expected a JSON object")
	}
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return f, nil
}

// lookup returns the first present, non-null value among keys.
func (f fields) lookup(keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		raw, ok := f[key]
		if !ok {
			continue
		}
		if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		return raw, true
	}
	return nil, false
}

func (f fields) object(keys ...string) fields {
	raw, ok := f.lookup(keys...)
	if !ok {
		return nil
	}
	nested, err := parseObject(raw)
	if err != nil {
		return nil
	}
	return nested
}

func (f fields) str(keys ...string) string {
	raw, ok := f.lookup(keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func (f fields) float(keys ...string) (float64, bool) {
	raw, ok := f.lookup(keys...)
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func (f fields) integer(keys ...string) (int, bool) {
	v, ok := f.float(keys...)
	if !ok {
		return 0, false
	}
	return int(v), true
}

func (f fields) boolean(def bool, keys ...string) bool {
	raw, ok := f.lookup(keys...)
	if !ok {
		return def
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return parsed
		}
	}
	return def
}

// identifier collapses an id that is either a plain string/number or a composite
// {timestamp, creationTime} object into its string form.
func (f fields) identifier(keys ...string) (string, error) {
	raw, ok := f.lookup(keys...)
	if !ok {
		return "", nil
	}
	raw = bytes.TrimSpace(raw)
	if raw[0] != '{' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s), nil
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String(), nil
		}
		return "", fmt.Errorf("identifier %s is neither string nor object", raw)
	}
	composite, err := parseObject(raw)
	if err != nil {
		return "", err
	}
	ts := composite.str("timestamp")
	if ts == "" {
		return "", errors.New("composite identifier without timestamp")
	}
	return ts, nil
}

// listItems accepts a bare array or a wrapper object holding the array under a known key.
func listItems(body []byte, keys ...string) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	wrapper, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	keys = append(keys, "items", "data", "results")
	raw, ok := wrapper.lookup(keys...)
	if !ok {
		return nil, errors.New("no list in response")
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// singleItem unwraps {"data": {...}} envelopes.
func singleItem(body []byte) []byte {
	f, err := parseObject(body)
	if err != nil {
		return body
	}
	if _, hasID := f.lookup("id", "_id"); hasID {
		return body
	}
	if raw, ok := f.lookup("data"); ok {
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
			return trimmed
		}
	}
	return body
}
