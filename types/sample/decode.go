package sample

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

var ErrDecodeSamples = fmt.Errorf("could not decode as sample object, sample array, or batch envelope")

// DecodeSamples attempts to turn a posted request body into raw samples.
// Recording clients have posted three shapes over the study's lifetime:
// a bare object, a bare array of objects, and a batch envelope
// {"samples": [...]}. All three are accepted here.
func DecodeSamples(data []byte) ([]RawSample, error) {
	parsed := gjson.ParseBytes(data)

	if res := parsed.Get("samples"); res.Exists() && res.IsArray() {
		return decodeArray(res)
	}
	if parsed.IsArray() {
		return decodeArray(parsed)
	}
	if parsed.IsObject() {
		s, err := decodeObject(parsed)
		if err != nil {
			return nil, err
		}
		return []RawSample{s}, nil
	}
	return nil, ErrDecodeSamples
}

func decodeArray(res gjson.Result) ([]RawSample, error) {
	arr := res.Array()
	if len(arr) == 0 {
		return nil, fmt.Errorf("empty sample set")
	}
	out := make([]RawSample, 0, len(arr))
	for _, el := range arr {
		if !el.IsObject() {
			return nil, fmt.Errorf("non-object element in sample array")
		}
		s, err := decodeObject(el)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// decodeObject extracts one RawSample from a JSON object, tolerating the
// field spellings the clients have actually used. The first study build
// reported speed as "velocidad"; timestamps arrive as RFC3339 strings,
// unix seconds, or unix milliseconds.
func decodeObject(el gjson.Result) (RawSample, error) {
	s := RawSample{}

	s.ParticipantID = firstString(el, "participantId", "participant_id", "participant")
	s.Group = Group(firstString(el, "group"))

	t, err := decodeTime(el)
	if err != nil {
		return s, err
	}
	s.Time = t

	s.Lat = floatPtr(el, "lat", "latitude")
	s.Lon = floatPtr(el, "lon", "lng", "longitude")
	s.Speed = floatPtr(el, "speed", "velocidad")
	s.X = floatPtr(el, "x", "accelX")
	s.Y = floatPtr(el, "y", "accelY")
	s.Z = floatPtr(el, "z", "accelZ")

	return s, nil
}

func decodeTime(el gjson.Result) (time.Time, error) {
	for _, key := range []string{"time", "timestamp"} {
		res := el.Get(key)
		if !res.Exists() {
			continue
		}
		if res.Type == gjson.String {
			if t, err := time.Parse(time.RFC3339, res.String()); err == nil {
				return t, nil
			}
			return time.Time{}, fmt.Errorf("unparseable time %q", res.String())
		}
		// Numeric. Values above 1e12 can only be unix milliseconds.
		n := res.Int()
		if n > 1e12 {
			return time.UnixMilli(n), nil
		}
		if n > 0 {
			return time.Unix(n, 0), nil
		}
	}
	// Zero time; Validate will reject it downstream.
	return time.Time{}, nil
}

func firstString(el gjson.Result, keys ...string) string {
	for _, k := range keys {
		if res := el.Get(k); res.Exists() && res.Type == gjson.String {
			return res.String()
		}
	}
	return ""
}

func floatPtr(el gjson.Result, keys ...string) *float64 {
	for _, k := range keys {
		res := el.Get(k)
		if res.Exists() && (res.Type == gjson.Number) {
			v := res.Float()
			return &v
		}
	}
	return nil
}
