/*
Package driving defines the classified driving-event vocabulary:
event types, ordinal severities, the immutable event record, and
the per-session event counters.
*/
package driving

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType enumerates the aggressive-driving behaviors the detector classifies.
type EventType int

const (
	EventHarshAcceleration EventType = iota
	EventHarshBraking
	EventAggressiveTurn
	EventSpeeding
)

var AllEventTypes = []EventType{
	EventHarshAcceleration,
	EventHarshBraking,
	EventAggressiveTurn,
	EventSpeeding,
}

// String implements the Stringer interface.
func (t EventType) String() string {
	switch t {
	case EventHarshAcceleration:
		return "harsh_acceleration"
	case EventHarshBraking:
		return "harsh_braking"
	case EventAggressiveTurn:
		return "aggressive_turn"
	case EventSpeeding:
		return "speeding"
	}
	return "unknown"
}

// EventTypeFromString is the inverse of String.
// Unrecognized names return -1.
func EventTypeFromString(s string) EventType {
	for _, t := range AllEventTypes {
		if t.String() == s {
			return t
		}
	}
	return EventType(-1)
}

func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := EventTypeFromString(s)
	if v < 0 {
		return fmt.Errorf("unknown event type %q", s)
	}
	*t = v
	return nil
}

// Severity is an ordinal classification of how far past its threshold
// an event's triggering value landed.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityModerate
	SeverityHigh
	SeverityExtreme
)

// String implements the Stringer interface.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityModerate:
		return "moderate"
	case SeverityHigh:
		return "high"
	case SeverityExtreme:
		return "extreme"
	}
	return "low"
}

func SeverityFromString(v string) Severity {
	for _, s := range []Severity{SeverityLow, SeverityModerate, SeverityHigh, SeverityExtreme} {
		if s.String() == v {
			return s
		}
	}
	return SeverityLow
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SeverityFromString(v)
	return nil
}

// SeverityForRatio classifies the three acceleration-derived event types
// by the ratio of the triggering value to its calibrated threshold.
func SeverityForRatio(value, threshold float64) Severity {
	if threshold == 0 {
		return SeverityExtreme
	}
	ratio := value / threshold
	switch {
	case ratio >= 2.5:
		return SeverityExtreme
	case ratio >= 2.0:
		return SeverityHigh
	case ratio >= 1.5:
		return SeverityModerate
	}
	return SeverityLow
}

// SeverityForExcess classifies speeding by absolute excess over the limit,
// in km/h. Speeding excess is not threshold-relative, so it gets its own
// breakpoints.
func SeverityForExcess(excessKPH float64) Severity {
	switch {
	case excessKPH >= 40:
		return SeverityExtreme
	case excessKPH >= 30:
		return SeverityHigh
	case excessKPH >= 20:
		return SeverityModerate
	}
	return SeverityLow
}

// Event is one classified driving event. Events are created only by the
// detector and never mutated afterwards.
type Event struct {
	ParticipantID string    `json:"participantId"`
	Type          EventType `json:"type"`
	Severity      Severity  `json:"severity"`
	Value         float64   `json:"value"`
	Time          time.Time `json:"time"`
	Lat           *float64  `json:"lat,omitempty"`
	Lon           *float64  `json:"lon,omitempty"`
	Confidence    float64   `json:"confidence"`
}

// Counters maps event types to non-negative counts. Counts only ever
// increase within a session; a session reset replaces the whole map.
type Counters map[EventType]int

func NewCounters() Counters {
	c := make(Counters, len(AllEventTypes))
	for _, t := range AllEventTypes {
		c[t] = 0
	}
	return c
}

func (c Counters) Increment(t EventType) {
	c[t]++
}

// Copy returns a defensive copy.
func (c Counters) Copy() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func (c Counters) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func (c Counters) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, len(c))
	for k, v := range c {
		m[k.String()] = v
	}
	return json.Marshal(m)
}

func (c *Counters) UnmarshalJSON(data []byte) error {
	m := map[string]int{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := NewCounters()
	for k, v := range m {
		t := EventTypeFromString(k)
		if t < 0 {
			continue
		}
		out[t] = v
	}
	*c = out
	return nil
}
