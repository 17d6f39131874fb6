package motion

import (
	"log/slog"
	"time"

	rkalman "github.com/regnull/kalman"

	"github.com/drivelab/drived/common"
	"github.com/drivelab/drived/types/sample"
)

// speedFilter wraps a geodetic Kalman filter to smooth GPS speed for
// reporting. Browser GPS fixes are jumpy; the raw values still drive
// detection, the smoothed one is for researchers reading session output.
type speedFilter struct {
	filter *rkalman.GeoFilter
}

func newSpeedFilter(latitude, speedMPS float64) *speedFilter {
	processNoise := &rkalman.GeoProcessNoise{
		// We assume observations happen near the same location, so the
		// earth's curvature can be disregarded.
		BaseLat: latitude,
		// How far we expect the vehicle to move, meters per second.
		DistancePerSecond: speedMPS,
		// How much we expect the speed to change, meters per second squared.
		SpeedPerSecond: 0.5,
	}
	filter, err := rkalman.NewGeoFilter(processNoise)
	if err != nil {
		slog.Warn("Failed to initialize Kalman filter, smoothing disabled", "error", err)
		return nil
	}
	return &speedFilter{filter: filter}
}

func (c *Classifier) filterInit(s *sample.RawSample) {
	speedMPS := 0.0
	if s.Speed != nil {
		speedMPS = *s.Speed / common.KPHPerMPS
	}
	c.filter = newSpeedFilter(*s.Lat, speedMPS)
}

func (c *Classifier) filterObserve(s *sample.RawSample, dt time.Duration) {
	if c.filter == nil || c.filter.filter == nil {
		return
	}
	seconds := dt.Seconds()
	if seconds <= 0 {
		return
	}
	speedMPS := 0.0
	if s.Speed != nil {
		speedMPS = *s.Speed / common.KPHPerMPS
	}
	err := c.filter.filter.Observe(seconds, &rkalman.GeoObserved{
		Lat:                *s.Lat,
		Lng:                *s.Lon,
		Speed:              speedMPS,
		SpeedAccuracy:      0.2,
		HorizontalAccuracy: 10,
		VerticalAccuracy:   2.0,
	})
	if err != nil {
		slog.Error("Kalman.Observe failed", "error", err)
	}
}

// smoothedSpeed returns the filter's speed estimate in km/h, or 0 when the
// filter has no estimate yet.
func (c *Classifier) smoothedSpeed() float64 {
	if c.filter == nil || c.filter.filter == nil {
		return 0
	}
	est := c.filter.filter.Estimate()
	if est == nil {
		return 0
	}
	return est.Speed * common.KPHPerMPS
}
