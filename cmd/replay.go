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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/drivelab/drived/api"
	"github.com/drivelab/drived/metrics/influxdb"
	"github.com/drivelab/drived/report"
	"github.com/drivelab/drived/stream"
	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

var optReplayInput string
var optReplayInflux bool
var optReplayEvents bool

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded samples through the engine",
	Long: `Replay reads newline-delimited JSON samples from stdin (or --input)
and runs them through the same engine the web daemon uses, one session per
participant, printing detected events and a per-participant report.

Sample files are the raw recorder output: one JSON object per line, in
recording order. Undecodable lines are skipped.

Examples:

  zcat study-week-12.ndjson.gz | drived replay --events
  drived replay --input participant-007.ndjson --influx
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var in io.Reader = os.Stdin
		if optReplayInput != "" && optReplayInput != "-" {
			f, err := os.Open(optReplayInput)
			if err != nil {
				log.Fatalln(err)
			}
			defer f.Close()
			in = f
		}

		meter := stream.NewTickMeter(5 * time.Second)
		defer meter.Stop()

		sessions := map[string]*api.Session{}
		windows := map[string][]*sample.EnrichedSample{}
		allEvents := map[string][]*driving.Event{}

		lines := stream.NDJSON[json.RawMessage](ctx, in)
		samples := stream.Transform(ctx, func(line json.RawMessage) *sample.RawSample {
			decoded, err := sample.DecodeSamples(line)
			if err != nil || len(decoded) == 0 {
				slog.Warn("Skipping undecodable line", "error", err)
				return nil
			}
			return &decoded[0]
		}, lines)
		usable := stream.Filter(ctx, func(s *sample.RawSample) bool {
			return s != nil
		}, samples)

		n := 0
		for raw := range usable {
			session, ok := sessions[raw.ParticipantID]
			if !ok {
				session = api.NewSession(nil)
				sessions[raw.ParticipantID] = session
			}

			result, err := session.ProcessSample(*raw)
			if err != nil {
				slog.Warn("Rejected sample", "participant", raw.ParticipantID, "error", err)
				continue
			}
			meter.Mark(raw.Time, lineSize(raw))
			if result == nil {
				continue
			}
			n++

			windows[raw.ParticipantID] = append(windows[raw.ParticipantID], result.Enriched)
			allEvents[raw.ParticipantID] = append(allEvents[raw.ParticipantID], result.Events...)

			if optReplayEvents {
				for _, ev := range result.Events {
					b, _ := json.Marshal(ev)
					fmt.Println(string(b))
				}
			}
		}

		slog.Info("Replay done", "participants", len(sessions), "accepted", n)

		for participantID, session := range sessions {
			stats := report.Generate(windows[participantID], session.Counters())
			b, _ := json.MarshalIndent(map[string]any{
				"participant": participantID,
				"stats":       stats,
			}, "", "  ")
			fmt.Println(string(b))
		}

		if optReplayInflux {
			for participantID := range sessions {
				if err := influxdb.ExportRecords(windows[participantID]); err != nil {
					slog.Error("Failed to export records", "participant", participantID, "error", err)
				}
				if err := influxdb.ExportEvents(allEvents[participantID]); err != nil {
					slog.Error("Failed to export events", "participant", participantID, "error", err)
				}
			}
		}
	},
}

// lineSize approximates the encoded size of a sample for the meter.
func lineSize(s *sample.RawSample) int {
	b, _ := json.Marshal(s)
	return len(b)
}

func init() {
	rootCmd.AddCommand(replayCmd)

	pFlags := replayCmd.PersistentFlags()
	pFlags.StringVar(&optReplayInput, "input", "-", "Input file, - for stdin")
	pFlags.BoolVar(&optReplayInflux, "influx", false, "Export processed output to InfluxDB")
	pFlags.BoolVar(&optReplayEvents, "events", true, "Print detected events as JSON lines")
}
