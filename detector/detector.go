/*
Package detector evaluates enriched samples against the calibrated
thresholds and emits debounced, classified driving events.
*/
package detector

import (
	"log/slog"
	"math"
	"time"

	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

// speedingDebounceFactor stretches the speeding debounce window; a
// sustained speeding episode is one event, not one per sample.
const speedingDebounceFactor = 3

// Detector holds the per-type debounce clocks and the session counters.
// Not safe for concurrent use.
type Detector struct {
	thr       *params.Thresholds
	lastEvent map[driving.EventType]time.Time
	counters  driving.Counters
	logger    *slog.Logger
}

func New(thr *params.Thresholds) *Detector {
	return &Detector{
		thr:       thr,
		lastEvent: map[driving.EventType]time.Time{},
		counters:  driving.NewCounters(),
		logger:    slog.With("c", "detector"),
	}
}

// Reset clears the debounce clocks and zeroes the counters.
func (d *Detector) Reset() {
	d.lastEvent = map[driving.EventType]time.Time{}
	d.counters = driving.NewCounters()
}

// Counters returns a defensive copy of the session counters.
func (d *Detector) Counters() driving.Counters {
	return d.counters.Copy()
}

// Detect evaluates one enriched sample and returns zero or more events.
// No events are ever emitted while the vehicle is not moving.
func (d *Detector) Detect(es *sample.EnrichedSample) []*driving.Event {
	if !es.Moving {
		return nil
	}

	var out []*driving.Event

	if es.LongitudinalAccel > d.thr.HarshAccel {
		if ev := d.emit(es, driving.EventHarshAcceleration, es.LongitudinalAccel,
			driving.SeverityForRatio(es.LongitudinalAccel, d.thr.HarshAccel)); ev != nil {
			out = append(out, ev)
		}
	}

	if es.LongitudinalAccel < -d.thr.HarshBraking {
		mag := -es.LongitudinalAccel
		if ev := d.emit(es, driving.EventHarshBraking, mag,
			driving.SeverityForRatio(mag, d.thr.HarshBraking)); ev != nil {
			out = append(out, ev)
		}
	}

	if lat := math.Abs(es.LateralAccel); lat > d.thr.AggressiveTurn && es.SpeedKPH > d.thr.TurnMinSpeed {
		if ev := d.emit(es, driving.EventAggressiveTurn, lat,
			driving.SeverityForRatio(lat, d.thr.AggressiveTurn)); ev != nil {
			out = append(out, ev)
		}
	}

	if excess := es.SpeedKPH - es.SpeedLimit; excess > d.thr.SpeedingMargin && es.SpeedKPH > d.thr.SpeedingMinSpeed {
		if ev := d.emit(es, driving.EventSpeeding, excess,
			driving.SeverityForExcess(excess)); ev != nil {
			out = append(out, ev)
		}
	}

	return out
}

// emit constructs an event unless debounced, incrementing the counter.
func (d *Detector) emit(es *sample.EnrichedSample, t driving.EventType, value float64, sev driving.Severity) *driving.Event {
	if d.debounced(t, es.Time) {
		return nil
	}
	d.lastEvent[t] = es.Time
	d.counters.Increment(t)

	ev := &driving.Event{
		ParticipantID: es.ParticipantID,
		Type:          t,
		Severity:      sev,
		Value:         value,
		Time:          es.Time,
		Lat:           es.Lat,
		Lon:           es.Lon,
		Confidence:    es.Confidence,
	}
	d.logger.Debug("Event detected",
		"type", t, "severity", sev, "value", value, "speed", es.SpeedKPH)
	return ev
}

// debounced reports whether an event of this type fired too recently.
func (d *Detector) debounced(t driving.EventType, now time.Time) bool {
	last, ok := d.lastEvent[t]
	if !ok {
		return false
	}
	window := d.thr.StabilityTime
	if t == driving.EventSpeeding {
		window *= speedingDebounceFactor
	}
	return now.Sub(last) < window
}
