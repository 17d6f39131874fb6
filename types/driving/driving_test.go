package driving

import (
	"encoding/json"
	"testing"
)

func TestSeverityForRatio(t *testing.T) {
	cases := []struct {
		value, threshold float64
		want             Severity
	}{
		{2.5, 2.0, SeverityLow},
		{3.0, 2.0, SeverityModerate},
		{4.0, 2.0, SeverityHigh},
		{5.0, 2.0, SeverityExtreme},
		{9.0, 2.0, SeverityExtreme},
		{1.0, 0, SeverityExtreme},
	}
	for _, c := range cases {
		if got := SeverityForRatio(c.value, c.threshold); got != c.want {
			t.Errorf("SeverityForRatio(%v, %v) = %v, want %v", c.value, c.threshold, got, c.want)
		}
	}
}

func TestSeverityForExcess(t *testing.T) {
	cases := []struct {
		excess float64
		want   Severity
	}{
		{10, SeverityLow},
		{20, SeverityModerate},
		{29.9, SeverityModerate},
		{30, SeverityHigh},
		{40, SeverityExtreme},
		{55, SeverityExtreme},
	}
	for _, c := range cases {
		if got := SeverityForExcess(c.excess); got != c.want {
			t.Errorf("SeverityForExcess(%v) = %v, want %v", c.excess, got, c.want)
		}
	}
}

func TestEventTypeRoundTrip(t *testing.T) {
	for _, et := range AllEventTypes {
		b, err := json.Marshal(et)
		if err != nil {
			t.Fatal(err)
		}
		var back EventType
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatal(err)
		}
		if back != et {
			t.Errorf("round trip %v -> %s -> %v", et, b, back)
		}
	}
	if got := EventTypeFromString("harsh_braking"); got != EventHarshBraking {
		t.Errorf("EventTypeFromString(harsh_braking) = %v", got)
	}
	if got := EventTypeFromString("nope"); got >= 0 {
		t.Errorf("EventTypeFromString(nope) = %v, want negative", got)
	}
}

func TestCountersCopyIsDefensive(t *testing.T) {
	c := NewCounters()
	c.Increment(EventSpeeding)
	c.Increment(EventSpeeding)
	c.Increment(EventHarshBraking)

	cp := c.Copy()
	cp.Increment(EventSpeeding)

	if c[EventSpeeding] != 2 {
		t.Errorf("original mutated through copy: %d", c[EventSpeeding])
	}
	if c.Total() != 3 {
		t.Errorf("Total = %d, want 3", c.Total())
	}
}

func TestCountersJSONKeys(t *testing.T) {
	c := NewCounters()
	c.Increment(EventAggressiveTurn)
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	var back Counters
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back[EventAggressiveTurn] != 1 {
		t.Errorf("round trip lost count: %s", b)
	}
}
