package params

import "time"

// Thresholds are the calibrated trigger values the detector and movement
// classifier evaluate. They were tuned empirically against field recordings;
// see DESIGN.md before "correcting" any of them.
type Thresholds struct {
	// HarshAccel is the longitudinal acceleration trigger, m/s².
	HarshAccel float64
	// HarshBraking is the deceleration trigger magnitude, m/s².
	HarshBraking float64
	// AggressiveTurn is the lateral acceleration trigger magnitude, m/s².
	AggressiveTurn float64
	// SpeedingMargin is how far over the context speed limit counts as
	// speeding, km/h.
	SpeedingMargin float64

	// MinimumSpeed is the GPS reported-speed motion bar, km/h.
	MinimumSpeed float64
	// GPSNoiseSpeed is the displacement-derived speed below which GPS jitter
	// is treated as noise rather than motion, km/h.
	GPSNoiseSpeed float64
	// MotionThreshold is the accelerometer variation-from-baseline motion bar.
	MotionThreshold float64

	// StabilityTime is the per-type debounce interval between events.
	// Speeding uses three times this value.
	StabilityTime time.Duration

	// TurnMinSpeed gates aggressive-turn events; wheeling the car around at
	// a stop is not an event. km/h.
	TurnMinSpeed float64
	// SpeedingMinSpeed gates speeding events, km/h.
	SpeedingMinSpeed float64
}

var DefaultThresholds = Thresholds{
	HarshAccel:       2.0,
	HarshBraking:     2.0,
	AggressiveTurn:   3.0,
	SpeedingMargin:   25,
	MinimumSpeed:     3,
	GPSNoiseSpeed:    5,
	MotionThreshold:  1.5,
	StabilityTime:    2000 * time.Millisecond,
	TurnMinSpeed:     15,
	SpeedingMinSpeed: 30,
}

// ThresholdOverrides is a partial Thresholds; nil fields keep their
// current values. Merges are last-write-wins per field.
type ThresholdOverrides struct {
	HarshAccel       *float64
	HarshBraking     *float64
	AggressiveTurn   *float64
	SpeedingMargin   *float64
	MinimumSpeed     *float64
	GPSNoiseSpeed    *float64
	MotionThreshold  *float64
	StabilityTime    *time.Duration
	TurnMinSpeed     *float64
	SpeedingMinSpeed *float64
}

// Merge applies the overrides and returns the result.
func (t Thresholds) Merge(o ThresholdOverrides) Thresholds {
	if o.HarshAccel != nil {
		t.HarshAccel = *o.HarshAccel
	}
	if o.HarshBraking != nil {
		t.HarshBraking = *o.HarshBraking
	}
	if o.AggressiveTurn != nil {
		t.AggressiveTurn = *o.AggressiveTurn
	}
	if o.SpeedingMargin != nil {
		t.SpeedingMargin = *o.SpeedingMargin
	}
	if o.MinimumSpeed != nil {
		t.MinimumSpeed = *o.MinimumSpeed
	}
	if o.GPSNoiseSpeed != nil {
		t.GPSNoiseSpeed = *o.GPSNoiseSpeed
	}
	if o.MotionThreshold != nil {
		t.MotionThreshold = *o.MotionThreshold
	}
	if o.StabilityTime != nil {
		t.StabilityTime = *o.StabilityTime
	}
	if o.TurnMinSpeed != nil {
		t.TurnMinSpeed = *o.TurnMinSpeed
	}
	if o.SpeedingMinSpeed != nil {
		t.SpeedingMinSpeed = *o.SpeedingMinSpeed
	}
	return t
}

// SpeedLimits is the per-context speed limit table, km/h.
type SpeedLimits struct {
	Highway     float64
	UrbanFast   float64
	Urban       float64
	Residential float64
	School      float64
}

var DefaultSpeedLimits = SpeedLimits{
	Highway:     110,
	UrbanFast:   70,
	Urban:       60,
	Residential: 40,
	School:      20,
}

type SpeedLimitOverrides struct {
	Highway     *float64
	UrbanFast   *float64
	Urban       *float64
	Residential *float64
	School      *float64
}

func (l SpeedLimits) Merge(o SpeedLimitOverrides) SpeedLimits {
	if o.Highway != nil {
		l.Highway = *o.Highway
	}
	if o.UrbanFast != nil {
		l.UrbanFast = *o.UrbanFast
	}
	if o.Urban != nil {
		l.Urban = *o.Urban
	}
	if o.Residential != nil {
		l.Residential = *o.Residential
	}
	if o.School != nil {
		l.School = *o.School
	}
	return l
}

// MotionConfig sizes the movement classifier's rolling histories and sets
// its decision bars.
type MotionConfig struct {
	// AccelHistorySize is how many raw accelerometer vectors are retained.
	AccelHistorySize int
	// BaselineWindow is how many of the most recent vectors form the
	// at-rest baseline. No baseline exists until this many accumulate.
	BaselineWindow int
	// FlagHistorySize is how many motion flags are retained.
	FlagHistorySize int
	// SustainedWindow / SustainedMinFlags: sustained motion holds when at
	// least SustainedMinFlags of the last SustainedWindow flags are true.
	SustainedWindow   int
	SustainedMinFlags int

	// MovingConfidenceGPS is the moving-decision bar when GPS evidence is
	// available. MovingConfidenceNoGPS is the lower bar used without GPS,
	// where evidence is scarcer.
	MovingConfidenceGPS   float64
	MovingConfidenceNoGPS float64
}

var DefaultMotionConfig = MotionConfig{
	AccelHistorySize:      10,
	BaselineWindow:        5,
	FlagHistorySize:       20,
	SustainedWindow:       5,
	SustainedMinFlags:     3,
	MovingConfidenceGPS:   50,
	MovingConfidenceNoGPS: 40,
}

// EngineConfig configures one recording session's processor.
type EngineConfig struct {
	Thresholds  Thresholds
	SpeedLimits SpeedLimits
	Motion      MotionConfig

	// RecordInterval rate-gates ingest: samples arriving sooner than this
	// after the last accepted one are dropped before classification.
	RecordInterval time.Duration

	// BufferSize is the enriched-sample sliding window used for
	// finite-difference acceleration derivation.
	BufferSize int

	// DedupeSize bounds the exact-duplicate rejection LRU.
	DedupeSize int
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Thresholds:     DefaultThresholds,
		SpeedLimits:    DefaultSpeedLimits,
		Motion:         DefaultMotionConfig,
		RecordInterval: 1500 * time.Millisecond,
		BufferSize:     8,
		DedupeSize:     DedupeCacheSize,
	}
}
