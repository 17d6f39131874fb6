package enrich

import (
	"math"
	"testing"
	"time"

	"github.com/drivelab/drived/geo/motion"
	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/types/sample"
)

func fp(v float64) *float64 { return &v }

func newTestEnricher() (*Enricher, *motion.Classifier) {
	limits := params.DefaultSpeedLimits
	thr := params.DefaultThresholds
	return New(&limits, 8), motion.NewClassifier(nil, &thr)
}

func accelSample(t time.Time, x, y, z float64) sample.RawSample {
	return sample.RawSample{
		Time:          t,
		ParticipantID: "007",
		X:             fp(x), Y: fp(y), Z: fp(z),
	}
}

func gpsSample(t time.Time, speed float64) sample.RawSample {
	return sample.RawSample{
		Time:          t,
		ParticipantID: "007",
		Lat:           fp(46.8), Lon: fp(-113.9), Speed: fp(speed),
	}
}

func almost(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestFilterPassthroughBeforeWarmup(t *testing.T) {
	e, cls := newTestEnricher()
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	raw := accelSample(t0, 0.3, 0.4, 9.8)
	st := cls.Observe(&raw)
	es := e.Enrich(raw, cls, st)

	if es.FilteredX != 0.3 || es.FilteredY != 0.4 || es.FilteredZ != 9.8 {
		t.Errorf("filtered != raw before warm-up: %v %v %v",
			es.FilteredX, es.FilteredY, es.FilteredZ)
	}
	if !almost(es.AccelMagnitude, math.Sqrt(0.3*0.3+0.4*0.4+9.8*9.8)) {
		t.Errorf("magnitude = %v", es.AccelMagnitude)
	}
}

func TestFilteredAgainstBaseline(t *testing.T) {
	e, cls := newTestEnricher()
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		raw := accelSample(t0.Add(time.Duration(i)*2*time.Second), 0, 0, 9.8)
		st := cls.Observe(&raw)
		e.Enrich(raw, cls, st)
	}

	burst := accelSample(t0.Add(10*time.Second), 0, 6.5, 9.8)
	st := cls.Observe(&burst)
	es := e.Enrich(burst, cls, st)

	// Baseline is the mean of the last five vectors including this one,
	// so y settles at 1.3 and the filtered component at 5.2.
	if !almost(es.FilteredY, 5.2) {
		t.Errorf("FilteredY = %v, want 5.2", es.FilteredY)
	}
	if !almost(es.FilteredZ, 0) {
		t.Errorf("FilteredZ = %v, want 0", es.FilteredZ)
	}
	if es.LateralAccel != es.FilteredX {
		t.Errorf("lateral %v != filtered x %v", es.LateralAccel, es.FilteredX)
	}
}

func TestSpeedSource(t *testing.T) {
	e, cls := newTestEnricher()
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	es := e.Enrich(gpsSample(t0, 42.5), cls, motion.State{Moving: true, GPSAvailable: true})
	if es.SpeedKPH != 42.5 || es.SpeedEstimated {
		t.Errorf("GPS speed not preferred: %v estimated=%v", es.SpeedKPH, es.SpeedEstimated)
	}
	if es.Method != sample.MethodGPSAccel {
		t.Errorf("method = %v", es.Method)
	}

	still := accelSample(t0.Add(2*time.Second), 0, 0, 9.8)
	es = e.Enrich(still, cls, motion.State{Moving: false})
	if es.SpeedKPH != 0 || !es.SpeedEstimated {
		t.Errorf("stationary accel-only speed = %v estimated=%v", es.SpeedKPH, es.SpeedEstimated)
	}
	if es.Method != sample.MethodAccelOnly {
		t.Errorf("method = %v", es.Method)
	}

	// Moving without GPS and with negligible variation sits at the floor
	// of the estimation steps.
	es = e.Enrich(still, cls, motion.State{Moving: true})
	if es.SpeedKPH != 5 || !es.SpeedEstimated {
		t.Errorf("estimated floor speed = %v estimated=%v", es.SpeedKPH, es.SpeedEstimated)
	}
}

func TestLongitudinalFromSpeedDeltas(t *testing.T) {
	e, cls := newTestEnricher()
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	st := motion.State{Moving: true, GPSAvailable: true}

	es := e.Enrich(gpsSample(t0, 10), cls, st)
	if es.LongitudinalAccel != 0 {
		t.Errorf("first sample longitudinal = %v, want 0", es.LongitudinalAccel)
	}

	es = e.Enrich(gpsSample(t0.Add(2*time.Second), 40), cls, st)
	// 30 km/h over 2s is 4.1667 m/s².
	if !almost(es.LongitudinalAccel, 30.0/2.0/3.6) {
		t.Errorf("longitudinal = %v, want %v", es.LongitudinalAccel, 30.0/2.0/3.6)
	}

	// Decelerating comes out negative.
	es = e.Enrich(gpsSample(t0.Add(4*time.Second), 10), cls, st)
	if !almost(es.LongitudinalAccel, -30.0/2.0/3.6) {
		t.Errorf("deceleration = %v", es.LongitudinalAccel)
	}
}

func TestContextAndLimit(t *testing.T) {
	e, cls := newTestEnricher()
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	st := motion.State{Moving: true, GPSAvailable: true}

	es := e.Enrich(gpsSample(t0, 100), cls, st)
	if es.Context != sample.ContextHighway || es.SpeedLimit != 110 {
		t.Errorf("100 km/h: context=%v limit=%v", es.Context, es.SpeedLimit)
	}

	// A stationary-bucket sample keeps the residential limit so it can
	// never flag speeding against a zero limit.
	es = e.Enrich(gpsSample(t0.Add(2*time.Second), 2), cls, motion.State{GPSAvailable: true})
	if es.Context != sample.ContextStationary || es.SpeedLimit != 40 {
		t.Errorf("2 km/h: context=%v limit=%v", es.Context, es.SpeedLimit)
	}
}

func TestContextOverride(t *testing.T) {
	e, cls := newTestEnricher()
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	st := motion.State{Moving: true, GPSAvailable: true}

	school := sample.ContextSchool
	e.SetContextOverride(&school)
	es := e.Enrich(gpsSample(t0, 45), cls, st)
	if es.Context != sample.ContextSchool || es.SpeedLimit != 20 {
		t.Errorf("override: context=%v limit=%v", es.Context, es.SpeedLimit)
	}

	e.SetContextOverride(nil)
	es = e.Enrich(gpsSample(t0.Add(2*time.Second), 45), cls, st)
	if es.Context != sample.ContextUrban {
		t.Errorf("after unpin: context=%v", es.Context)
	}
}

func TestSmoothedSpeedReachesSample(t *testing.T) {
	e, cls := newTestEnricher()
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	// Fixes stepping north at roughly 40 km/h; the Kalman filter needs a
	// few observations before its estimate settles.
	var es *sample.EnrichedSample
	for i := 0; i < 5; i++ {
		raw := sample.RawSample{
			Time:          t0.Add(time.Duration(i) * 2 * time.Second),
			ParticipantID: "007",
			Lat:           fp(46.8 + float64(i)*0.0002),
			Lon:           fp(-113.9),
			Speed:         fp(40),
		}
		st := cls.Observe(&raw)
		es = e.Enrich(raw, cls, st)
	}
	if es.SpeedSmoothedKPH <= 0 {
		t.Fatalf("smoothed speed = %v, want > 0 after repeated moving fixes", es.SpeedSmoothedKPH)
	}
	if es.SpeedSmoothedKPH > 80 {
		t.Errorf("smoothed speed %v implausible for a 40 km/h trace", es.SpeedSmoothedKPH)
	}
}

func TestWindow(t *testing.T) {
	e, cls := newTestEnricher()
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	st := motion.State{Moving: true, GPSAvailable: true}

	for i := 0; i < 10; i++ {
		e.Enrich(gpsSample(t0.Add(time.Duration(i)*2*time.Second), float64(10+i)), cls, st)
	}
	w := e.Window()
	if len(w) != 8 {
		t.Fatalf("window len = %d, want the buffer size", len(w))
	}
	if w[0].SpeedKPH != 12 || w[7].SpeedKPH != 19 {
		t.Errorf("window not oldest-first: %v .. %v", w[0].SpeedKPH, w[7].SpeedKPH)
	}

	e.Reset()
	if len(e.Window()) != 0 {
		t.Error("window survived reset")
	}
}
