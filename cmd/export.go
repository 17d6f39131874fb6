/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/drivelab/drived/metrics/influxdb"
	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/state"
	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

var optExportDataDir string
var optExportParticipant string
var optExportKind string
var optExportFormat string
var optExportInflux bool

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a participant's stored session data",
	Long: `Export reads a participant's session store and writes records or
events to stdout as CSV (for the study's analysis spreadsheets) or JSON.

Examples:

  drived export --participant 007 --kind records > 007-records.csv
  drived export --participant 007 --kind events --format json
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		if optExportParticipant == "" {
			log.Fatalln("--participant is required")
		}

		store, err := state.Open(optExportDataDir, optExportParticipant, true)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()

		switch optExportKind {
		case "records":
			records, err := store.ReadRecords()
			if err != nil {
				log.Fatalln(err)
			}
			if optExportInflux {
				if err := influxdb.ExportRecords(records); err != nil {
					log.Fatalln(err)
				}
				return
			}
			if optExportFormat == "json" {
				writeJSON(records)
				return
			}
			evs, err := store.ReadEvents()
			if err != nil {
				log.Fatalln(err)
			}
			if err := writeRecordsCSV(os.Stdout, records, evs); err != nil {
				log.Fatalln(err)
			}
		case "events":
			evs, err := store.ReadEvents()
			if err != nil {
				log.Fatalln(err)
			}
			if optExportInflux {
				if err := influxdb.ExportEvents(evs); err != nil {
					log.Fatalln(err)
				}
				return
			}
			if optExportFormat == "json" {
				writeJSON(evs)
				return
			}
			if err := writeEventsCSV(os.Stdout, evs); err != nil {
				log.Fatalln(err)
			}
		default:
			log.Fatalf("unknown kind %q (want records or events)", optExportKind)
		}
	},
}

func writeJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Println(string(b))
}

// csvCoord renders a coordinate with fixed precision. Raw float formatting
// leaks 15-digit noise that confuses the analysis spreadsheets.
func csvCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).Round(6).String()
}

func csvFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).String()
}

// writeRecordsCSV writes one row per enriched record, with per-type event
// columns marking the records whose timestamps triggered an event. The
// full recording is reconstructable from this file alone.
func writeRecordsCSV(w *os.File, records []*sample.EnrichedSample, evs []*driving.Event) error {
	eventsAt := map[time.Time]map[driving.EventType]bool{}
	for _, ev := range evs {
		if eventsAt[ev.Time] == nil {
			eventsAt[ev.Time] = map[driving.EventType]bool{}
		}
		eventsAt[ev.Time][ev.Type] = true
	}

	cw := csv.NewWriter(w)
	defer cw.Flush()
	header := []string{
		"time", "participant", "group", "lat", "lon", "x", "y", "z",
		"speed_kph", "speed_smoothed_kph", "speed_estimated", "speed_limit", "context",
		"moving", "confidence", "method",
		"accel_magnitude", "longitudinal_accel", "lateral_accel",
	}
	for _, t := range driving.AllEventTypes {
		header = append(header, t.String())
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, es := range records {
		row := []string{
			es.Time.Format(time.RFC3339),
			es.ParticipantID,
			string(es.Group),
			csvCoord(es.Lat),
			csvCoord(es.Lon),
			csvAxis(es.X),
			csvAxis(es.Y),
			csvAxis(es.Z),
			csvFloat(es.SpeedKPH, 2),
			csvFloat(es.SpeedSmoothedKPH, 2),
			strconv.FormatBool(es.SpeedEstimated),
			csvFloat(es.SpeedLimit, 0),
			es.Context.String(),
			strconv.FormatBool(es.Moving),
			csvFloat(es.Confidence, 0),
			string(es.Method),
			csvFloat(es.AccelMagnitude, 3),
			csvFloat(es.LongitudinalAccel, 3),
			csvFloat(es.LateralAccel, 3),
		}
		for _, t := range driving.AllEventTypes {
			row = append(row, strconv.FormatBool(eventsAt[es.Time][t]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func csvAxis(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).Round(3).String()
}

func writeEventsCSV(w *os.File, evs []*driving.Event) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write([]string{
		"time", "participant", "type", "severity", "value", "lat", "lon", "confidence",
	}); err != nil {
		return err
	}
	for _, ev := range evs {
		if err := cw.Write([]string{
			ev.Time.Format(time.RFC3339),
			ev.ParticipantID,
			ev.Type.String(),
			ev.Severity.String(),
			csvFloat(ev.Value, 3),
			csvCoord(ev.Lat),
			csvCoord(ev.Lon),
			csvFloat(ev.Confidence, 0),
		}); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)

	pFlags := exportCmd.PersistentFlags()
	pFlags.StringVar(&optExportDataDir, "datadir", params.DefaultDatadirRoot, "Participant session data directory")
	pFlags.StringVar(&optExportParticipant, "participant", "", "Participant to export")
	pFlags.StringVar(&optExportKind, "kind", "records", "records or events")
	pFlags.StringVar(&optExportFormat, "format", "csv", "csv or json")
	pFlags.BoolVar(&optExportInflux, "influx", false, "Write to InfluxDB instead of stdout")
}
