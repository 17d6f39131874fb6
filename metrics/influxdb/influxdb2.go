package influxdb

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

// ExportRecords posts enriched samples to an InfluxDB Write API.
// Because it accepts a slice, use batches. The Write API will buffer and flush.
// The last error encountered is returned.
func ExportRecords(records []*sample.EnrichedSample) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(params.INFLUXDB_URL, params.INFLUXDB_TOKEN, opts)
	writeAPI := client.WriteAPI(params.INFLUXDB_ORG, params.INFLUXDB_BUCKET)

	// Errors returns a channel for reading errors which occur during async
	// writes. Must be called before performing any writes for errors to be
	// collected. The chan is unbuffered and must be drained or the writer
	// will block.
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, es := range records {
		p := influxdb2.NewPointWithMeasurement("driving_sample").
			SetTime(es.Time).
			AddTag("participant", es.ParticipantID).
			AddTag("group", string(es.Group)).
			AddTag("context", es.Context.String()).
			AddTag("method", string(es.Method)).
			AddField("speed_kph", es.SpeedKPH).
			AddField("speed_smoothed_kph", es.SpeedSmoothedKPH).
			AddField("speed_limit", es.SpeedLimit).
			AddField("longitudinal_accel", es.LongitudinalAccel).
			AddField("lateral_accel", es.LateralAccel).
			AddField("accel_magnitude", es.AccelMagnitude).
			AddField("confidence", es.Confidence).
			AddField("moving", es.Moving)

		if es.HasGPS() {
			p.AddField("latitude", *es.Lat)
			p.AddField("longitude", *es.Lon)
		}
		writeAPI.WritePoint(p)
	}

	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}

// ExportEvents posts classified driving events.
func ExportEvents(evs []*driving.Event) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(params.INFLUXDB_URL, params.INFLUXDB_TOKEN, opts)
	writeAPI := client.WriteAPI(params.INFLUXDB_ORG, params.INFLUXDB_BUCKET)

	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, ev := range evs {
		p := influxdb2.NewPointWithMeasurement("driving_event").
			SetTime(ev.Time).
			AddTag("participant", ev.ParticipantID).
			AddTag("type", ev.Type.String()).
			AddTag("severity", ev.Severity.String()).
			AddField("value", ev.Value).
			AddField("confidence", ev.Confidence)

		if ev.Lat != nil && ev.Lon != nil {
			p.AddField("latitude", *ev.Lat)
			p.AddField("longitude", *ev.Lon)
		}
		writeAPI.WritePoint(p)
	}

	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}
