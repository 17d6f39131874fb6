package events

import (
	"github.com/ethereum/go-ethereum/event"

	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

// DetectedEventFeed is emitted once for every classified driving event,
// after the emitting session's counters have already been incremented.
// Collaborators (websocket broadcast, exporters) subscribe here; the
// engine holds no references to them.
var DetectedEventFeed = event.FeedOf[*driving.Event]{}

// IngestFeed is a feed of enriched samples as they come out of processing.
// Payloads are the processed result of what a participant posted; they have
// been validated, deduped and rate-gated, but not necessarily persisted yet.
var IngestFeed = event.FeedOf[[]*sample.EnrichedSample]{}
