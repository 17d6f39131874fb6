package webd

import (
	"encoding/json"
	"log"
	"log/slog"

	"github.com/olahol/melody"

	"github.com/drivelab/drived/drivedb/cache"
	"github.com/drivelab/drived/events"
	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

type websocketAction string

var (
	websocketActionPopulate websocketAction = "populate"
	websocketActionEvent    websocketAction = "event"
)

type broadcast struct {
	Action  websocketAction          `json:"action"`
	Samples []*sample.EnrichedSample `json:"samples,omitempty"`
	Event   *driving.Event           `json:"event,omitempty"`
}

// initMelody sets up the websocket handler.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	// New clients get the last push from every recently active participant
	// replayed so their map is not empty until someone drives.
	s.melodyInstance.HandleConnect(func(m *melody.Session) {
		log.Println("[websocket] connected", m.Request.RemoteAddr)
		for _, v := range cache.LastPushTTLCache.Items() {
			bc := broadcast{
				Action:  websocketActionPopulate,
				Samples: v.Value(),
			}
			b, _ := json.Marshal(bc)
			m.Write(b)
		}
	})

	// Right now don't care about incoming messages from clients. Log and drop.
	s.melodyInstance.HandleMessage(loggingHandler)

	s.melodyInstance.HandleDisconnect(func(m *melody.Session) {
		log.Println("[websocket] disconnected", m.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(m *melody.Session, e error) {
		log.Println("[websocket] error", e, m.Request.RemoteAddr)
	})

	// Broadcast processed sample batches as they come out of ingest.
	// These are engine outputs, not the raw client payloads; they have
	// been validated, deduped and rate-gated already.
	pushes := make(chan []*sample.EnrichedSample)
	pushSub := events.IngestFeed.Subscribe(pushes)

	// Driving events ride the same socket with their own action, so a
	// dashboard can flash an alert without diffing sample batches.
	detections := make(chan *driving.Event)
	detectSub := events.DetectedEventFeed.Subscribe(detections)

	go func() {
		for {
			select {
			case batch := <-pushes:
				bc := broadcast{
					Action:  websocketActionPopulate,
					Samples: batch,
				}
				b, err := json.Marshal(bc)
				if err != nil {
					slog.Error("Failed to marshal populate broadcast", "error", err)
					continue
				}
				if err := s.melodyInstance.Broadcast(b); err != nil {
					slog.Warn("Failed to broadcast samples", "error", err)
				}
			case ev := <-detections:
				bc := broadcast{
					Action: websocketActionEvent,
					Event:  ev,
				}
				b, err := json.Marshal(bc)
				if err != nil {
					slog.Error("Failed to marshal event broadcast", "error", err)
					continue
				}
				if err := s.melodyInstance.Broadcast(b); err != nil {
					slog.Warn("Failed to broadcast event", "error", err)
				}
			case err := <-pushSub.Err():
				slog.Error("Failed to subscribe to IngestFeed", "error", err)
				return
			case err := <-detectSub.Err():
				slog.Error("Failed to subscribe to DetectedEventFeed", "error", err)
				return
			}
		}
	}()
}

// on request
func loggingHandler(m *melody.Session, msg []byte) {
	log.Println("[websocket] message", string(msg))
}
