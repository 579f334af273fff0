package translator

import (
	"errors"
	"strings"
	"unicode"

	"evsync/backend/services/sync-agent/internal/syncerr"
)

const (
	unknownTitle  = "Unknown Error"
	unknownDetail = "Unknown Reason"
)

// Message is the user-visible rendering of an error. Title is empty when the error had no
// structured body and Detail then carries the raw message verbatim.
type Message struct {
	Title  string `json:"title,omitempty"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail"`
}

func (m Message) String() string {
	if m.Title == "" {
		return m.Detail
	}
	return m.Title + ": " + m.Detail
}

// DecodeErrorBody decodes a {title, status, detail} body. ok is false when body is not that shape;
// a bare status with neither title nor detail does not count.
func DecodeErrorBody(body []byte) (Message, bool) {
	f, err := parseObject(body)
	if err != nil {
		return Message{}, false
	}
	if _, ok := f.lookup("title", "detail"); !ok {
		return Message{}, false
	}
	msg := Message{
		Title:  humanizeTitle(f.str("title")),
		Detail: f.str("detail"),
	}
	if status, ok := f.integer("status"); ok {
		msg.Status = status
	}
	if msg.Detail == "" {
		msg.Detail = unknownDetail
	}
	return msg, true
}

// Describe renders any repository error for display.
func Describe(err error) Message {
	if err == nil {
		return Message{}
	}
	var remote *syncerr.RemoteError
	if errors.As(err, &remote) {
		if msg, ok := DecodeErrorBody(remote.Body); ok {
			if msg.Status == 0 {
				msg.Status = remote.Code
			}
			return msg
		}
		if body := strings.TrimSpace(string(remote.Body)); body != "" {
			return Message{Status: remote.Code, Detail: body}
		}
		return Message{Status: remote.Code, Detail: remote.Error()}
	}
	var netErr *syncerr.NetworkError
	if errors.As(err, &netErr) {
		return Message{Detail: netErr.Err.Error()}
	}
	var denied *syncerr.DeniedError
	if errors.As(err, &denied) {
		return Message{Detail: denied.Reason}
	}
	return Message{Detail: err.Error()}
}

// humanizeTitle keeps the part after the first '.' and re-spaces camel-case word boundaries:
// "ChargingStation.SlotNotAvailable" becomes "Slot Not Available".
func humanizeTitle(title string) string {
	if title == "" {
		return unknownTitle
	}
	segment := title
	if idx := strings.Index(title, "."); idx >= 0 {
		segment = title[idx+1:]
	}
	segment = strings.TrimSpace(segment)
	if segment == "" {
		segment = strings.TrimSpace(title)
	}
	return spaceCamelCase(segment)
}

func spaceCamelCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
