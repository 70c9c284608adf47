package event

// History is the answer to "what did I miss after event After".
type History struct {
	Topic  string  `json:"topic"`
	After  string  `json:"after,omitempty"`
	Events []Event `json:"events"`
	Count  int     `json:"count"`
}

// NewHistory wraps a replay result, normalising a nil slice to empty.
func NewHistory(topic, after string, events []Event) History {
	if events == nil {
		events = []Event{}
	}
	return History{Topic: topic, After: after, Events: events, Count: len(events)}
}
