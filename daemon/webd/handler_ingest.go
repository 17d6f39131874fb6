package webd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/drivelab/drived/drivedb/cache"
	"github.com/drivelab/drived/events"
	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

type ingestResponse struct {
	Participant string           `json:"participant"`
	Received    int              `json:"received"`
	Accepted    int              `json:"accepted"`
	Dropped     int              `json:"dropped"`
	Invalid     int              `json:"invalid"`
	Events      []*driving.Event `json:"events"`
	Counters    driving.Counters `json:"counters"`
}

// handleIngest is where recording clients post their sample batches.
// It accepts a bare array, a single object, or a {"samples": [...]}
// envelope; the mobile recorder and the browser recorder disagree on
// payload shape and neither will change.
func (s *WebDaemon) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		s.logger.Error("No request body", "method", r.Method, "url", r.URL)
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("Failed to read request body", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.logger.Debug("Decoding ingest batch", "bytes", len(body),
		"peek", fmt.Sprintf("%s...", body[:int(math.Min(80, float64(len(body))))]))

	samples, err := sample.DecodeSamples(body)
	if err != nil || len(samples) == 0 {
		s.logger.Error("Failed to decode ingest batch", "error", err)
		http.Error(w, "Failed to decode", http.StatusUnprocessableEntity)
		return
	}

	// One batch, one participant. Mixed batches are a client bug.
	participantID := samples[0].ParticipantID
	for _, raw := range samples {
		if raw.ParticipantID != "" && raw.ParticipantID != participantID {
			s.logger.Error("Mixed participants in batch",
				"participant", participantID, "other", raw.ParticipantID)
			http.Error(w, "Mixed participants in batch", http.StatusBadRequest)
			return
		}
	}

	ls, err := s.getSession(participantID)
	if err != nil {
		s.logger.Error("Failed to open session", "participant", participantID, "error", err)
		http.Error(w, "Failed to open session", http.StatusInternalServerError)
		return
	}

	resp := ingestResponse{Participant: participantID, Received: len(samples)}
	var enriched []*sample.EnrichedSample

	for _, raw := range samples {
		result, err := ls.session.ProcessSample(raw)
		if err != nil {
			resp.Invalid++
			s.logger.Warn("Rejected sample", "participant", participantID, "error", err)
			continue
		}
		if result == nil {
			resp.Dropped++
			continue
		}
		resp.Accepted++
		resp.Counters = result.Counters
		resp.Events = append(resp.Events, result.Events...)
		enriched = append(enriched, result.Enriched)

		if err := ls.store.AppendRecord(result.Enriched); err != nil {
			s.logger.Error("Failed to persist record", "participant", participantID, "error", err)
			http.Error(w, "Failed to persist", http.StatusInternalServerError)
			return
		}
		for _, ev := range result.Events {
			if err := ls.store.AppendEvent(ev); err != nil {
				s.logger.Error("Failed to persist event", "participant", participantID, "error", err)
				http.Error(w, "Failed to persist", http.StatusInternalServerError)
				return
			}
		}
	}

	if resp.Counters == nil {
		resp.Counters = ls.session.Counters()
	}
	if err := ls.store.WriteCounters(resp.Counters); err != nil {
		s.logger.Error("Failed to persist counters", "participant", participantID, "error", err)
	}

	if len(enriched) > 0 {
		cache.SetLastKnown(participantID, enriched[len(enriched)-1])
		cache.SetLastPush(participantID, enriched)
		events.IngestFeed.Send(enriched)
	}

	s.logger.Info("Ingested batch", "participant", participantID,
		"received", resp.Received, "accepted", resp.Accepted,
		"dropped", resp.Dropped, "events", len(resp.Events))

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
