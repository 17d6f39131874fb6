/*
Package motion decides, per sample, whether the vehicle is genuinely moving.

It fuses two independent evidence sources: GPS (reported speed and
displacement over time against the last fix) and accelerometer variation
against a rolling at-rest baseline. The fused confidence gates event
detection, which keeps engine vibration and phone handling from producing
events while parked.
*/
package motion

import (
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/drivelab/drived/common"
	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/types/sample"
)

// Confidence weights. GPS-backed evidence is trusted more, and the
// accelerometer carries most of the weight when GPS is absent.
const (
	weightGPSSpeed        = 40
	weightGPSDisplacement = 30
	weightAccelWithGPS    = 30
	weightAccelNoGPS      = 70
	weightSustainedNoGPS  = 30
)

// State is the movement decision for one observed sample.
type State struct {
	Moving       bool
	Confidence   float64 // 0..100
	GPSAvailable bool

	// SmoothedSpeed is the Kalman-filtered speed estimate, km/h.
	// Reporting only; it never feeds the confidence fusion, because the
	// calibrated thresholds were tuned without it.
	SmoothedSpeed float64
}

type gpsFix struct {
	pt orb.Point
	t  time.Time
}

// Classifier is the per-session movement classifier. Not safe for
// concurrent use; the session processes samples to completion, one at a
// time.
type Classifier struct {
	cfg *params.MotionConfig
	thr *params.Thresholds

	accelHist *common.RingBuffer[[3]float64]
	flagHist  *common.RingBuffer[bool]

	baseline   [3]float64
	baselineOK bool

	lastFix *gpsFix
	filter  *speedFilter

	state  State
	logger *slog.Logger
}

func NewClassifier(cfg *params.MotionConfig, thr *params.Thresholds) *Classifier {
	if cfg == nil {
		c := params.DefaultMotionConfig
		cfg = &c
	}
	return &Classifier{
		cfg:       cfg,
		thr:       thr,
		accelHist: common.NewRingBuffer[[3]float64](cfg.AccelHistorySize),
		flagHist:  common.NewRingBuffer[bool](cfg.FlagHistorySize),
		logger:    slog.With("c", "motion"),
	}
}

// Reset clears all rolling state. The baseline becomes undefined again
// until a fresh warm-up window accumulates.
func (c *Classifier) Reset() {
	c.accelHist.Reset()
	c.flagHist.Reset()
	c.baseline = [3]float64{}
	c.baselineOK = false
	c.lastFix = nil
	c.filter = nil
	c.state = State{}
}

// Baseline returns the current at-rest accelerometer baseline and whether
// it has warmed up yet.
func (c *Classifier) Baseline() ([3]float64, bool) {
	return c.baseline, c.baselineOK
}

// State returns the most recent movement decision.
func (c *Classifier) State() State {
	return c.state
}

// MeanRecentVariation is the mean Euclidean variation of the retained
// accelerometer history from the baseline. Zero before warm-up. The
// enricher uses it to coarsely estimate speed when GPS is absent.
func (c *Classifier) MeanRecentVariation() float64 {
	if !c.baselineOK || c.accelHist.Len() == 0 {
		return 0
	}
	sum, n := 0.0, 0
	c.accelHist.Scan(func(v [3]float64) bool {
		sum += common.VectorDistance(v, c.baseline)
		n++
		return true
	})
	return sum / float64(n)
}

// Observe folds one sample into the classifier and returns the updated
// movement state. Evidence absence (no GPS fix yet, baseline not warmed
// up) contributes zero confidence; it is never treated as evidence of
// stillness.
func (c *Classifier) Observe(s *sample.RawSample) State {
	gpsSpeedMotion := false
	gpsDisplacementMotion := false
	accelMotion := false
	accelEvidence := false

	gpsAvailable := s.HasGPS()
	if gpsAvailable {
		gpsSpeedMotion, gpsDisplacementMotion = c.observeGPS(s)
	}

	if s.HasAccel() {
		accelMotion, accelEvidence = c.observeAccel(s.AccelVector())
	}

	conf := 0.0
	if gpsAvailable {
		if gpsSpeedMotion {
			conf += weightGPSSpeed
		}
		if gpsDisplacementMotion {
			conf += weightGPSDisplacement
		}
		if accelEvidence && accelMotion {
			conf += weightAccelWithGPS
		}
	} else {
		if accelEvidence && accelMotion {
			conf += weightAccelNoGPS
		}
		if c.sustainedMotion() {
			conf += weightSustainedNoGPS
		}
	}
	conf = common.Clamp(conf, 0, 100)

	bar := c.cfg.MovingConfidenceNoGPS
	if gpsAvailable {
		bar = c.cfg.MovingConfidenceGPS
	}

	next := State{
		Moving:        conf > bar,
		Confidence:    conf,
		GPSAvailable:  gpsAvailable,
		SmoothedSpeed: c.smoothedSpeed(),
	}
	if next.Moving != c.state.Moving {
		c.logger.Debug("Movement state changed",
			"moving", next.Moving, "confidence", conf, "gps", gpsAvailable)
	}
	c.state = next
	return next
}

// observeGPS evaluates the two GPS motion tests and advances the last fix.
// The last fix is updated unconditionally; a parked vehicle must keep
// comparing against its most recent position, not its oldest.
func (c *Classifier) observeGPS(s *sample.RawSample) (speedMotion, displacementMotion bool) {
	if s.Speed != nil && *s.Speed > c.thr.MinimumSpeed {
		speedMotion = true
	}

	pt := s.Point()
	if c.lastFix != nil {
		dt := s.Time.Sub(c.lastFix.t)
		if dt > 0 {
			meters := geo.Distance(pt, c.lastFix.pt)
			calculated := meters / dt.Seconds() * common.KPHPerMPS
			if calculated > c.thr.GPSNoiseSpeed {
				displacementMotion = true
			}
		}
		c.filterObserve(s, dt)
	} else {
		c.filterInit(s)
	}
	c.lastFix = &gpsFix{pt: pt, t: s.Time}
	return speedMotion, displacementMotion
}

// observeAccel maintains the raw-vector history and baseline, and flags
// motion when the current reading varies from the baseline beyond the
// motion threshold. evidence is false until the baseline warms up.
func (c *Classifier) observeAccel(v [3]float64) (motion, evidence bool) {
	c.accelHist.Add(v)
	if c.accelHist.Len() < c.cfg.BaselineWindow {
		return false, false
	}
	c.baseline = common.VectorMean(c.accelHist.Tail(c.cfg.BaselineWindow))
	c.baselineOK = true

	variation := common.VectorDistance(v, c.baseline)
	motion = variation > c.thr.MotionThreshold
	c.flagHist.Add(motion)
	return motion, true
}

// sustainedMotion holds when enough of the most recent motion flags are true.
func (c *Classifier) sustainedMotion() bool {
	flags := c.flagHist.Tail(c.cfg.SustainedWindow)
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n >= c.cfg.SustainedMinFlags
}
