package api

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/drivelab/drived/common"
	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

func fp(v float64) *float64 { return &v }

// drive emits a full sample: moving GPS fix plus an at-rest accelerometer,
// stepping the position north so displacement agrees with the speed.
func drive(t time.Time, stepN int, speed float64) sample.RawSample {
	return sample.RawSample{
		Time:          t,
		ParticipantID: "007",
		Group:         sample.GroupExperimental,
		Lat:           fp(46.8 + float64(stepN)*0.0005),
		Lon:           fp(-113.9),
		Speed:         fp(speed),
		X:             fp(0), Y: fp(0), Z: fp(9.8),
	}
}

func TestSessionDetectsHarshAcceleration(t *testing.T) {
	s := NewSession(nil)
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	// Cruise at a steady 10 km/h while the accel baseline warms up.
	for i := 0; i < 6; i++ {
		result, err := s.ProcessSample(drive(t0.Add(time.Duration(i)*2*time.Second), i, 10))
		if err != nil {
			t.Fatal(err)
		}
		if result == nil {
			t.Fatalf("cruise sample %d dropped", i)
		}
		if len(result.Events) != 0 {
			t.Fatalf("steady cruising produced events: %v", result.Events)
		}
	}

	// Then a jump to 40 km/h in one 2s interval: 4.17 m/s².
	result, err := s.ProcessSample(drive(t0.Add(12*time.Second), 6, 40))
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("burst sample dropped")
	}
	if !result.Enriched.Moving {
		t.Fatalf("burst sample not moving: confidence=%v", result.Enriched.Confidence)
	}
	if len(result.Events) != 1 {
		t.Fatalf("got %d events, want 1: %v", len(result.Events), result.Events)
	}
	ev := result.Events[0]
	if ev.Type != driving.EventHarshAcceleration {
		t.Errorf("type = %v", ev.Type)
	}
	if ev.Severity != driving.SeverityHigh {
		t.Errorf("severity = %v", ev.Severity)
	}
	if ev.ParticipantID != "007" {
		t.Errorf("participant = %q", ev.ParticipantID)
	}
	if ev.Lat == nil || ev.Lon == nil {
		t.Error("event lost its location")
	}
	if result.Counters[driving.EventHarshAcceleration] != 1 {
		t.Errorf("counters = %v", result.Counters)
	}
}

// An accel-only warm-up (parked, engine off) followed by a first GPS fix
// at speed with a shaken accelerometer: the speed step from the estimated
// zero makes a harsh acceleration of the highest grade.
func TestSessionAccelBurstScenario(t *testing.T) {
	s := NewSession(nil)
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	still := func(ts time.Time) sample.RawSample {
		return sample.RawSample{
			Time:          ts,
			ParticipantID: "007",
			X:             fp(0), Y: fp(0), Z: fp(9.8),
		}
	}

	for i := 0; i < 6; i++ {
		result, err := s.ProcessSample(still(t0.Add(time.Duration(i) * 1500 * time.Millisecond)))
		if err != nil {
			t.Fatal(err)
		}
		if result == nil {
			t.Fatalf("warm-up sample %d dropped", i)
		}
		if result.Enriched.Moving || len(result.Events) != 0 {
			t.Fatalf("parked warm-up produced activity: %+v", result)
		}
	}

	burst := sample.RawSample{
		Time:          t0.Add(9 * time.Second),
		ParticipantID: "007",
		Lat:           fp(46.8), Lon: fp(-113.9), Speed: fp(40),
		X:             fp(0), Y: fp(6.5), Z: fp(9.8),
	}
	result, err := s.ProcessSample(burst)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Enriched.Moving {
		t.Fatalf("burst not moving: confidence=%v", result.Enriched.Confidence)
	}
	if len(result.Events) != 1 {
		t.Fatalf("got %d events: %v", len(result.Events), result.Events)
	}
	ev := result.Events[0]
	if ev.Type != driving.EventHarshAcceleration || ev.Severity != driving.SeverityExtreme {
		t.Errorf("event = %v %v, want extreme harsh acceleration", ev.Type, ev.Severity)
	}
}

func TestSessionRateGate(t *testing.T) {
	s := NewSession(nil)
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	if result, err := s.ProcessSample(drive(t0, 0, 10)); err != nil || result == nil {
		t.Fatalf("first sample: %v, %v", result, err)
	}

	// 500ms later: under the record interval, silently dropped.
	result, err := s.ProcessSample(drive(t0.Add(500*time.Millisecond), 1, 10))
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Fatal("rate-gated sample accepted")
	}

	// 1.5s later: exactly at the interval, accepted.
	result, err = s.ProcessSample(drive(t0.Add(1500*time.Millisecond), 1, 10))
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("sample at the record interval dropped")
	}
}

func TestSessionDropsOutOfOrder(t *testing.T) {
	s := NewSession(nil)
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	if _, err := s.ProcessSample(drive(t0, 0, 10)); err != nil {
		t.Fatal(err)
	}
	result, err := s.ProcessSample(drive(t0.Add(-10*time.Second), 0, 10))
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Fatal("out-of-order sample accepted")
	}
}

func TestSessionRejectsInvalid(t *testing.T) {
	s := NewSession(nil)

	_, err := s.ProcessSample(sample.RawSample{ParticipantID: "007"})
	if !errors.Is(err, ErrInvalidSample) {
		t.Errorf("missing time: %v", err)
	}
	if !errors.Is(err, sample.ErrMissingTime) {
		t.Errorf("cause not joined: %v", err)
	}

	_, err = s.ProcessSample(sample.RawSample{Time: time.Now()})
	if !errors.Is(err, ErrInvalidSample) {
		t.Errorf("missing participant: %v", err)
	}
}

func TestSessionObserverIsolation(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError + 1)()
	s := NewSession(nil)
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	var seen []*driving.Event
	s.OnEvent(func(ev *driving.Event, c driving.Counters, es *sample.EnrichedSample) {
		panic("rude observer")
	})
	unsub := s.OnEvent(func(ev *driving.Event, c driving.Counters, es *sample.EnrichedSample) {
		seen = append(seen, ev)
	})

	for i := 0; i < 6; i++ {
		if _, err := s.ProcessSample(drive(t0.Add(time.Duration(i)*2*time.Second), i, 10)); err != nil {
			t.Fatal(err)
		}
	}
	result, err := s.ProcessSample(drive(t0.Add(12*time.Second), 6, 40))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("got %d events", len(result.Events))
	}
	if len(seen) != 1 {
		t.Fatalf("observer saw %d events despite a panicking peer", len(seen))
	}

	// Unsubscribed observers hear nothing more.
	unsub()
	later := drive(t0.Add(30*time.Second), 7, 10)
	if _, err := s.ProcessSample(later); err != nil {
		t.Fatal(err)
	}
	burst := drive(t0.Add(32*time.Second), 8, 40)
	result, err = s.ProcessSample(burst)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Events) == 0 {
		t.Fatal("expected another event after the debounce window")
	}
	if len(seen) != 1 {
		t.Errorf("unsubscribed observer notified: %d", len(seen))
	}
}

func TestSessionThresholdOverridesAreLive(t *testing.T) {
	s := NewSession(nil)
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	harsh := 1.0
	s.SetThresholds(params.ThresholdOverrides{HarshAccel: &harsh})

	for i := 0; i < 6; i++ {
		if _, err := s.ProcessSample(drive(t0.Add(time.Duration(i)*2*time.Second), i, 10)); err != nil {
			t.Fatal(err)
		}
	}
	// 10 -> 20 km/h over 2s is 1.39 m/s²: below the default trigger,
	// above the override.
	result, err := s.ProcessSample(drive(t0.Add(12*time.Second), 6, 20))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Events) != 1 || result.Events[0].Type != driving.EventHarshAcceleration {
		t.Fatalf("override not live: %v", result.Events)
	}
}

func TestSessionReset(t *testing.T) {
	s := NewSession(nil)
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		if _, err := s.ProcessSample(drive(t0.Add(time.Duration(i)*2*time.Second), i, 10)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.ProcessSample(drive(t0.Add(12*time.Second), 6, 40)); err != nil {
		t.Fatal(err)
	}
	if s.Counters().Total() == 0 {
		t.Fatal("setup event missing")
	}

	s.Reset()
	s.Reset() // idempotent

	if s.Counters().Total() != 0 {
		t.Error("counters survived reset")
	}
	if len(s.Window()) != 0 {
		t.Error("window survived reset")
	}

	// The ingest cursor is cleared: an old timestamp is acceptable again,
	// and the same bytes re-enter (the duplicate filter restarted too).
	result, err := s.ProcessSample(drive(t0, 0, 10))
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("post-reset sample dropped")
	}
}
