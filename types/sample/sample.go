/*
Package sample defines the sensor observations the engine ingests and the
enriched, kinematics-bearing records it derives from them.

A RawSample is one reading merged from up to two independent sensor sources:
a GPS fix (lat/lon, reported speed) and a linear-acceleration vector
(including gravity). Either sensor group may be absent; the caller is
expected to fill-forward the last known fields of the missing group before
handing the sample over.
*/
package sample

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/paulmach/orb"
)

var (
	ErrMissingTime        = errors.New("sample missing timestamp")
	ErrMissingParticipant = errors.New("sample missing participant id")
)

// Group is the research arm a participant was assigned to.
type Group string

const (
	GroupControl      Group = "control"
	GroupExperimental Group = "experimental"
)

// Method tags which sensor evidence a sample's detection derived from.
type Method string

const (
	MethodGPSAccel  Method = "gps+accel"
	MethodAccelOnly Method = "accel-only"
)

// RawSample is one sensor observation as posted by the recording client.
// Pointer fields are optional; nil means the sensor did not report.
type RawSample struct {
	Time          time.Time `json:"time"`
	ParticipantID string    `json:"participantId"`
	Group         Group     `json:"group,omitempty"`
	Lat           *float64  `json:"lat,omitempty"`
	Lon           *float64  `json:"lon,omitempty"`
	Speed         *float64  `json:"speed,omitempty"` // km/h, GPS-reported
	X             *float64  `json:"x,omitempty"`     // m/s², includes gravity
	Y             *float64  `json:"y,omitempty"`
	Z             *float64  `json:"z,omitempty"`
}

// Validate reports whether the sample is structurally usable.
// Sensor absence is not an error; missing identity or time is.
func (s *RawSample) Validate() error {
	if s.Time.IsZero() {
		return ErrMissingTime
	}
	if s.ParticipantID == "" {
		return ErrMissingParticipant
	}
	return nil
}

func (s *RawSample) HasGPS() bool {
	return s.Lat != nil && s.Lon != nil
}

func (s *RawSample) HasAccel() bool {
	return s.X != nil && s.Y != nil && s.Z != nil
}

// Point returns the GPS fix as an orb.Point (lon, lat ordering).
// Only meaningful when HasGPS.
func (s *RawSample) Point() orb.Point {
	if !s.HasGPS() {
		return orb.Point{}
	}
	return orb.Point{*s.Lon, *s.Lat}
}

// AccelVector returns the raw acceleration triple.
// Only meaningful when HasAccel.
func (s *RawSample) AccelVector() [3]float64 {
	if !s.HasAccel() {
		return [3]float64{}
	}
	return [3]float64{*s.X, *s.Y, *s.Z}
}

// Context is a coarse driving environment inferred from speed,
// used to pick the applicable speed limit.
type Context int

const (
	ContextStationary Context = iota
	ContextResidential
	ContextUrban
	ContextUrbanFast
	ContextHighway
	// ContextSchool is never inferred automatically. It exists for manual
	// override when a study route passes a known school zone.
	ContextSchool
)

// String implements the Stringer interface.
func (c Context) String() string {
	switch c {
	case ContextStationary:
		return "stationary"
	case ContextResidential:
		return "residential"
	case ContextUrban:
		return "urban"
	case ContextUrbanFast:
		return "urban_fast"
	case ContextHighway:
		return "highway"
	case ContextSchool:
		return "school"
	}
	return "stationary"
}

func (c Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Context) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, v := range []Context{ContextStationary, ContextResidential, ContextUrban,
		ContextUrbanFast, ContextHighway, ContextSchool} {
		if v.String() == s {
			*c = v
			return nil
		}
	}
	*c = ContextStationary
	return nil
}

// ContextForSpeed buckets a speed (km/h) into a driving context.
func ContextForSpeed(kph float64) Context {
	switch {
	case kph > 90:
		return ContextHighway
	case kph > 50:
		return ContextUrbanFast
	case kph > 20:
		return ContextUrban
	case kph > 5:
		return ContextResidential
	}
	return ContextStationary
}

// EnrichedSample is a RawSample plus the kinematic quantities the event
// detector evaluates. All derived fields are computed once, at enrichment.
type EnrichedSample struct {
	RawSample

	// AccelMagnitude is sqrt(x²+y²+z²) of the raw vector, 0 without accel.
	AccelMagnitude float64 `json:"accelMagnitude"`

	// Filtered components are raw minus the at-rest baseline. Before the
	// baseline warms up they equal the raw components.
	FilteredX float64 `json:"filteredX"`
	FilteredY float64 `json:"filteredY"`
	FilteredZ float64 `json:"filteredZ"`

	// LongitudinalAccel is m/s², signed; positive means accelerating.
	LongitudinalAccel float64 `json:"longitudinalAccel"`
	// LateralAccel is m/s², signed; positive means a right turn.
	LateralAccel float64 `json:"lateralAccel"`

	// SpeedKPH is the GPS-reported speed when present, otherwise an
	// estimate from accelerometer variation.
	SpeedKPH       float64 `json:"speedKph"`
	SpeedEstimated bool    `json:"speedEstimated"`

	// SpeedSmoothedKPH is the Kalman-filtered GPS speed, 0 until the filter
	// has an estimate. Reporting only; detection evaluates SpeedKPH.
	SpeedSmoothedKPH float64 `json:"speedSmoothedKph"`

	SpeedLimit float64 `json:"speedLimit"`
	Context    Context `json:"context"`

	Moving     bool    `json:"moving"`
	Confidence float64 `json:"confidence"` // 0..100
	Method     Method  `json:"method"`
}

// Magnitude returns the Euclidean norm of an acceleration triple.
func Magnitude(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
