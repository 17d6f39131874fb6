package sample

import (
	"testing"
	"time"
)

func TestDecodeSamplesEnvelope(t *testing.T) {
	body := []byte(`{"samples": [
		{"time": "2026-05-04T10:00:00Z", "participantId": "007", "lat": 46.8, "lon": -113.9, "speed": 42.5, "x": 0.1, "y": 0.2, "z": 9.8},
		{"time": "2026-05-04T10:00:02Z", "participantId": "007", "x": 0.1, "y": 0.2, "z": 9.8}
	]}`)
	samples, err := DecodeSamples(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	first := samples[0]
	if first.ParticipantID != "007" {
		t.Errorf("participant = %q", first.ParticipantID)
	}
	if !first.HasGPS() || first.Speed == nil || *first.Speed != 42.5 {
		t.Errorf("GPS fields lost: %+v", first)
	}
	if samples[1].HasGPS() {
		t.Error("accel-only sample grew a GPS fix")
	}
	if !samples[1].HasAccel() {
		t.Error("accel fields lost")
	}
}

func TestDecodeSamplesBareArrayAndObject(t *testing.T) {
	arr := []byte(`[{"time": "2026-05-04T10:00:00Z", "participant_id": "007"}]`)
	samples, err := DecodeSamples(arr)
	if err != nil || len(samples) != 1 {
		t.Fatalf("bare array: %v, %d samples", err, len(samples))
	}
	if samples[0].ParticipantID != "007" {
		t.Errorf("participant_id spelling not accepted: %+v", samples[0])
	}

	obj := []byte(`{"time": "2026-05-04T10:00:00Z", "participantId": "007"}`)
	samples, err = DecodeSamples(obj)
	if err != nil || len(samples) != 1 {
		t.Fatalf("bare object: %v, %d samples", err, len(samples))
	}

	if _, err := DecodeSamples([]byte(`"what"`)); err == nil {
		t.Error("decoded a bare string")
	}
	if _, err := DecodeSamples([]byte(`[]`)); err == nil {
		t.Error("decoded an empty array")
	}
}

func TestDecodeSamplesLegacySpellings(t *testing.T) {
	// The first study build reported speed in Spanish and accel with
	// prefixed keys.
	body := []byte(`{"timestamp": "2026-05-04T10:00:00Z", "participant": "007",
		"latitude": 46.8, "longitude": -113.9, "velocidad": 61.0,
		"accelX": 0.5, "accelY": -0.25, "accelZ": 9.9}`)
	samples, err := DecodeSamples(body)
	if err != nil {
		t.Fatal(err)
	}
	s := samples[0]
	if s.Speed == nil || *s.Speed != 61.0 {
		t.Errorf("velocidad not mapped to speed: %+v", s)
	}
	if !s.HasGPS() {
		t.Errorf("latitude/longitude spellings not accepted: %+v", s)
	}
	if v := s.AccelVector(); v != [3]float64{0.5, -0.25, 9.9} {
		t.Errorf("accelX/Y/Z not mapped: %v", v)
	}
}

func TestDecodeSamplesTimes(t *testing.T) {
	ref := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	unixSec := []byte(`{"time": 1777888800, "participantId": "007"}`)
	samples, err := DecodeSamples(unixSec)
	if err != nil {
		t.Fatal(err)
	}
	if got := samples[0].Time; !got.Equal(time.Unix(1777888800, 0)) {
		t.Errorf("unix seconds: %v", got)
	}

	unixMilli := []byte(`{"timestamp": 1777888800000, "participantId": "007"}`)
	samples, err = DecodeSamples(unixMilli)
	if err != nil {
		t.Fatal(err)
	}
	if got := samples[0].Time; !got.Equal(time.UnixMilli(1777888800000)) {
		t.Errorf("unix milliseconds: %v", got)
	}

	rfc := []byte(`{"time": "2026-05-04T10:00:00Z", "participantId": "007"}`)
	samples, err = DecodeSamples(rfc)
	if err != nil {
		t.Fatal(err)
	}
	if got := samples[0].Time; !got.Equal(ref) {
		t.Errorf("RFC3339: %v, want %v", got, ref)
	}

	bad := []byte(`{"time": "yesterday-ish", "participantId": "007"}`)
	if _, err := DecodeSamples(bad); err == nil {
		t.Error("decoded an unparseable time string")
	}
}
