package event

import (
	"encoding/json"
	"strings"
	"time"
)

// TimeLayout renders timestamps as ISO-8601 with microseconds and a numeric
// offset, e.g. 2024-05-01T18:30:00.123456+00:00.
const TimeLayout = "2006-01-02T15:04:05.000000-07:00"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Envelope is the JSON object carried in the data line of every frame.
type Envelope struct {
	EventID   string          `json:"event_id"`
	Event     Type            `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Envelope returns the client-facing representation of e.
func (e Event) Envelope() Envelope {
	return Envelope{
		EventID:   e.ID,
		Event:     e.Type,
		Data:      e.Data,
		Timestamp: FormatTime(e.CreatedAt),
	}
}

// MarshalEnvelope encodes the envelope as compact JSON.
func (e Event) MarshalEnvelope() ([]byte, error) {
	return json.Marshal(e.Envelope())
}

// Frame encodes e as a Server-Sent-Events block:
//
//	id: <id>
//	event: <type>
//	data: {"event_id":...,"event":...,"data":...,"timestamp":...}
//	<blank line>
func (e Event) Frame() ([]byte, error) {
	data, err := e.MarshalEnvelope()
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.Grow(len(data) + len(e.ID) + len(e.Type) + 24)
	b.WriteString("id: ")
	b.WriteString(e.ID)
	b.WriteString("\nevent: ")
	b.WriteString(string(e.Type))
	b.WriteString("\ndata: ")
	b.Write(data)
	b.WriteString("\n\n")
	return []byte(b.String()), nil
}
