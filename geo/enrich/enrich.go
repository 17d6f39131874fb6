/*
Package enrich derives the kinematic quantities the detector evaluates:
baseline-filtered acceleration, measured-or-estimated speed, longitudinal
and lateral acceleration, and the speed-limit context.
*/
package enrich

import (
	"github.com/drivelab/drived/common"
	"github.com/drivelab/drived/geo/motion"
	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/types/sample"
)

// Enricher holds the sliding window of enriched samples used for
// finite-difference speed derivation, and the speed-limit table.
type Enricher struct {
	limits *params.SpeedLimits
	buffer *common.RingBuffer[*sample.EnrichedSample]

	// contextOverride pins the driving context (e.g. a known school zone
	// on the study route). nil means contexts are inferred from speed.
	contextOverride *sample.Context
}

func New(limits *params.SpeedLimits, bufferSize int) *Enricher {
	return &Enricher{
		limits: limits,
		buffer: common.NewRingBuffer[*sample.EnrichedSample](bufferSize),
	}
}

// Reset drops the sliding window.
func (e *Enricher) Reset() {
	e.buffer.Reset()
}

// SetContextOverride pins (or, with nil, unpins) the driving context.
func (e *Enricher) SetContextOverride(ctx *sample.Context) {
	e.contextOverride = ctx
}

// Window returns the sliding window contents, oldest first.
func (e *Enricher) Window() []*sample.EnrichedSample {
	return e.buffer.Get()
}

// Enrich derives an EnrichedSample and appends it to the sliding window.
func (e *Enricher) Enrich(raw sample.RawSample, cls *motion.Classifier, st motion.State) *sample.EnrichedSample {
	es := &sample.EnrichedSample{
		RawSample:  raw,
		Moving:     st.Moving,
		Confidence: st.Confidence,
		Method:     sample.MethodAccelOnly,
	}
	if st.GPSAvailable {
		es.Method = sample.MethodGPSAccel
	}

	if raw.HasAccel() {
		v := raw.AccelVector()
		es.AccelMagnitude = sample.Magnitude(v)
		// Before the baseline warms up it is the zero vector, so
		// filtered acceleration passes through as raw.
		baseline, _ := cls.Baseline()
		es.FilteredX = v[0] - baseline[0]
		es.FilteredY = v[1] - baseline[1]
		es.FilteredZ = v[2] - baseline[2]
	}

	es.SpeedKPH, es.SpeedEstimated = e.speed(raw, cls, st)
	es.SpeedSmoothedKPH = st.SmoothedSpeed
	es.LongitudinalAccel = e.longitudinal(es)
	es.LateralAccel = es.FilteredX

	ctx := sample.ContextForSpeed(es.SpeedKPH)
	if e.contextOverride != nil {
		ctx = *e.contextOverride
	}
	es.Context = ctx
	es.SpeedLimit = LimitFor(e.limits, ctx)

	e.buffer.Add(es)
	return es
}

// speed prefers the GPS-reported value. Without GPS, a moving vehicle's
// speed is estimated from the mean recent accelerometer variation by a
// fixed step function. That step function is a calibrated heuristic, not a
// physical integration; the detection thresholds were tuned against it.
func (e *Enricher) speed(raw sample.RawSample, cls *motion.Classifier, st motion.State) (kph float64, estimated bool) {
	if raw.Speed != nil {
		return *raw.Speed, false
	}
	if !st.Moving {
		return 0, true
	}
	return estimateSpeed(cls.MeanRecentVariation()), true
}

func estimateSpeed(variation float64) float64 {
	switch {
	case variation > 4.0:
		return 60
	case variation > 2.0:
		return 35
	case variation > 1.0:
		return 15
	}
	return 5
}

// longitudinal is the finite difference of consecutive speed values over
// elapsed time, converted from km/h-per-second to m/s². Zero with an empty
// window or a non-positive time delta.
func (e *Enricher) longitudinal(es *sample.EnrichedSample) float64 {
	if e.buffer.Len() == 0 {
		return 0
	}
	prev := e.buffer.Last()
	dt := es.Time.Sub(prev.Time)
	if dt <= 0 {
		return 0
	}
	return (es.SpeedKPH - prev.SpeedKPH) / dt.Seconds() / common.KPHPerMPS
}

// LimitFor looks up the speed limit for a context. A stationary context
// keeps the residential limit so that a sample straddling the stationary
// boundary cannot flag speeding against a zero limit.
func LimitFor(l *params.SpeedLimits, ctx sample.Context) float64 {
	switch ctx {
	case sample.ContextHighway:
		return l.Highway
	case sample.ContextUrbanFast:
		return l.UrbanFast
	case sample.ContextUrban:
		return l.Urban
	case sample.ContextResidential:
		return l.Residential
	case sample.ContextSchool:
		return l.School
	}
	return l.Residential
}
