/*
Package report computes end-of-session statistics from the full list of
enriched samples a collaborator retained. The engine itself only keeps a
short sliding window; this is a pure read-only projection with no effect
on detector state.
*/
package report

import (
	"time"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb/geo"

	"github.com/drivelab/drived/common"
	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

// RiskLevel is the coarse session risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Risk breakpoints, total events per kilometer.
const (
	riskHighPerKM     = 3.0
	riskModeratePerKM = 1.0
)

// advisoryRatePerKM is the per-type rate past which a session report
// carries that type's recommendation.
const advisoryRatePerKM = 0.5

// Stats is the session summary handed to researchers and exporters.
type Stats struct {
	TotalRecords      int `json:"totalRecords"`
	MovingRecords     int `json:"movingRecords"`
	StationaryRecords int `json:"stationaryRecords"`

	Elapsed       time.Duration `json:"elapsed"`
	AvgConfidence float64       `json:"avgConfidence"`

	// MaxSpeedSmoothedKPH is the peak Kalman-smoothed speed over the
	// session, 0 when no sample carried a filter estimate.
	MaxSpeedSmoothedKPH float64 `json:"maxSpeedSmoothedKph"`

	// DistanceKM is the great-circle sum over consecutive GPS fixes.
	DistanceKM  float64          `json:"distanceKm"`
	EventCounts driving.Counters `json:"eventCounts"`
	EventsPerKM float64          `json:"eventsPerKm"`

	RiskScore       float64   `json:"riskScore"` // total events per km
	RiskLevel       RiskLevel `json:"riskLevel"`
	Recommendations []string  `json:"recommendations"`
}

var recommendations = map[driving.EventType]string{
	driving.EventHarshAcceleration: "Frequent harsh acceleration: encourage gradual throttle application after stops.",
	driving.EventHarshBraking:      "Frequent harsh braking: encourage larger following distances and earlier anticipation.",
	driving.EventAggressiveTurn:    "Frequent aggressive turns: encourage lower cornering speeds.",
	driving.EventSpeeding:          "Sustained speeding: review route speed limits with the participant.",
}

// Generate computes session statistics over externally retained history.
// counters are the session's final event counters; the engine does not
// retain the events themselves.
func Generate(samples []*sample.EnrichedSample, counters driving.Counters) *Stats {
	st := &Stats{
		TotalRecords: len(samples),
		EventCounts:  counters.Copy(),
		RiskLevel:    RiskLow,
	}
	if len(samples) == 0 {
		return st
	}

	confidences := make([]float64, 0, len(samples))
	for _, es := range samples {
		if es.Moving {
			st.MovingRecords++
		} else {
			st.StationaryRecords++
		}
		confidences = append(confidences, es.Confidence)
		if es.SpeedSmoothedKPH > st.MaxSpeedSmoothedKPH {
			st.MaxSpeedSmoothedKPH = es.SpeedSmoothedKPH
		}
	}
	st.Elapsed = samples[len(samples)-1].Time.Sub(samples[0].Time)

	mean, err := stats.Mean(stats.Float64Data(confidences))
	if err == nil {
		st.AvgConfidence = common.DecimalToFixed(mean, 1)
	}

	st.DistanceKM = distanceKM(samples)

	if st.DistanceKM > 0 {
		st.EventsPerKM = float64(st.EventCounts.Total()) / st.DistanceKM
	}
	st.RiskScore = st.EventsPerKM
	switch {
	case st.EventsPerKM > riskHighPerKM:
		st.RiskLevel = RiskHigh
	case st.EventsPerKM > riskModeratePerKM:
		st.RiskLevel = RiskModerate
	}

	st.Recommendations = recommend(st.EventCounts, st.DistanceKM)
	return st
}

// distanceKM sums great-circle distances between consecutive GPS-bearing
// samples. Accel-only stretches contribute nothing; the instrument makes
// no distance claims without fixes.
func distanceKM(samples []*sample.EnrichedSample) float64 {
	meters := 0.0
	var last *sample.EnrichedSample
	for _, es := range samples {
		if !es.HasGPS() {
			continue
		}
		if last != nil {
			meters += geo.Distance(last.Point(), es.Point())
		}
		last = es
	}
	return meters / 1000.0
}

func recommend(counters driving.Counters, distanceKM float64) []string {
	if distanceKM <= 0 {
		return nil
	}
	var out []string
	for _, t := range driving.AllEventTypes {
		if float64(counters[t])/distanceKM > advisoryRatePerKM {
			out = append(out, recommendations[t])
		}
	}
	return out
}
