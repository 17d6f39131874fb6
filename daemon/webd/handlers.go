package webd

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/drivelab/drived/drivedb/cache"
	"github.com/drivelab/drived/report"
	"github.com/drivelab/drived/state"
	"github.com/drivelab/drived/types/sample"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

// handleLastKnown answers with the latest enriched sample per recently
// active participant, or for one participant with ?participant=.
func handleLastKnown(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participant")
	if participantID != "" {
		item := cache.LastKnownTTLCache.Get(participantID)
		if item == nil {
			http.Error(w, "Unknown participant", http.StatusNotFound)
			return
		}
		if err := json.NewEncoder(w).Encode(item.Value()); err != nil {
			slog.Warn("Failed to write response", "error", err)
		}
		return
	}

	result := map[string]*sample.EnrichedSample{}
	for _, item := range cache.LastKnownTTLCache.Items() {
		result[item.Key()] = item.Value()
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

// handleCounters answers with the participant's cumulative event counts.
// A warm session answers from memory; otherwise the persisted counters.
func (s *WebDaemon) handleCounters(w http.ResponseWriter, r *http.Request) {
	participantID := mux.Vars(r)["participant"]

	if ls, ok := s.sessions.Get(participantID); ok {
		if err := json.NewEncoder(w).Encode(ls.session.Counters()); err != nil {
			s.logger.Warn("Failed to write response", "error", err)
		}
		return
	}

	store, err := state.Open(s.Config.DataDir, participantID, true)
	if err != nil {
		s.logger.Warn("Failed to open session store", "participant", participantID, "error", err)
		http.Error(w, "Unknown participant", http.StatusNotFound)
		return
	}
	defer store.Close()

	counters, err := store.ReadCounters()
	if err != nil {
		s.logger.Error("Failed to read counters", "participant", participantID, "error", err)
		http.Error(w, "Failed to read counters", http.StatusInternalServerError)
		return
	}
	if err := json.NewEncoder(w).Encode(counters); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// handleStats generates a session report from the participant's
// persisted records and events.
func (s *WebDaemon) handleStats(w http.ResponseWriter, r *http.Request) {
	participantID := mux.Vars(r)["participant"]

	// A warm session holds the write lock on its db file, so read
	// through its store rather than opening a second handle.
	var store *state.SessionStore
	if ls, ok := s.sessions.Get(participantID); ok {
		if err := ls.store.WriteCounters(ls.session.Counters()); err != nil {
			s.logger.Warn("Failed to flush counters", "participant", participantID, "error", err)
		}
		store = ls.store
	} else {
		var err error
		store, err = state.Open(s.Config.DataDir, participantID, true)
		if err != nil {
			s.logger.Warn("Failed to open session store", "participant", participantID, "error", err)
			http.Error(w, "Unknown participant", http.StatusNotFound)
			return
		}
		defer store.Close()
	}

	records, err := store.ReadRecords()
	if err != nil {
		s.logger.Error("Failed to read records", "participant", participantID, "error", err)
		http.Error(w, "Failed to read records", http.StatusInternalServerError)
		return
	}
	counters, err := store.ReadCounters()
	if err != nil {
		s.logger.Error("Failed to read counters", "participant", participantID, "error", err)
		http.Error(w, "Failed to read counters", http.StatusInternalServerError)
		return
	}

	stats := report.Generate(records, counters)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
