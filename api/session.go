/*
Package api is the engine's boundary. A Session owns one participant's
recording: the movement classifier, the enricher, the detector, the rate
gate, the duplicate filter, and the observer list. Everything a caller
(web daemon, replay CLI) needs is on Session; nothing inside reaches back
out.
*/
package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/drivelab/drived/detector"
	"github.com/drivelab/drived/drivedb/cache"
	"github.com/drivelab/drived/events"
	"github.com/drivelab/drived/geo/enrich"
	"github.com/drivelab/drived/geo/motion"
	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

// ErrInvalidSample marks a structurally unusable sample: missing
// timestamp or participant id. Sensor absence is not invalid.
var ErrInvalidSample = errors.New("invalid sample")

// ProcessingResult is what one accepted sample yields.
type ProcessingResult struct {
	Enriched *sample.EnrichedSample `json:"enriched"`
	Events   []*driving.Event       `json:"events"`
	Counters driving.Counters       `json:"counters"`
}

// Observer receives each emitted event synchronously with ProcessSample.
// Observers must not call back into the session.
type Observer func(*driving.Event, driving.Counters, *sample.EnrichedSample)

// Session is one participant's processing session. It owns all its state
// exclusively and is not designed for concurrent callers; samples are
// processed to completion one at a time.
type Session struct {
	Config *params.EngineConfig

	thresholds params.Thresholds
	limits     params.SpeedLimits

	classifier *motion.Classifier
	enricher   *enrich.Enricher
	detector   *detector.Detector

	lastAccepted time.Time
	dedupePass   func(sample.RawSample) bool

	observers    map[int]Observer
	nextObserver int

	logger *slog.Logger
}

func NewSession(config *params.EngineConfig) *Session {
	if config == nil {
		config = params.DefaultEngineConfig()
	}
	s := &Session{
		Config:     config,
		thresholds: config.Thresholds,
		limits:     config.SpeedLimits,
		observers:  map[int]Observer{},
		logger:     slog.With("c", "session"),
	}
	s.classifier = motion.NewClassifier(&config.Motion, &s.thresholds)
	s.enricher = enrich.New(&s.limits, config.BufferSize)
	s.detector = detector.New(&s.thresholds)
	s.dedupePass = cache.NewDedupePassLRUFunc(config.DedupeSize)
	return s
}

// ProcessSample runs one raw sample through the engine.
//
// A nil result with a nil error means the sample was deliberately dropped:
// rate-gated, an exact duplicate, or behind the last accepted timestamp.
// A nil result with ErrInvalidSample means the sample was structurally
// unusable. Otherwise the result carries the enriched sample, any events
// it triggered, and a copy of the session counters.
func (s *Session) ProcessSample(raw sample.RawSample) (*ProcessingResult, error) {
	if err := raw.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidSample, err)
	}

	if !s.lastAccepted.IsZero() {
		// The engine derives finite differences assuming monotonic time;
		// a sample behind the cursor is dropped rather than poisoning them.
		if raw.Time.Before(s.lastAccepted) {
			s.logger.Warn("Dropping out-of-order sample",
				"participant", raw.ParticipantID, "time", raw.Time, "cursor", s.lastAccepted)
			return nil, nil
		}
		// Rate gate: backpressure against oversampling, not correctness.
		if raw.Time.Sub(s.lastAccepted) < s.Config.RecordInterval {
			return nil, nil
		}
	}

	if !s.dedupePass(raw) {
		s.logger.Debug("Dropping duplicate sample",
			"participant", raw.ParticipantID, "time", raw.Time)
		return nil, nil
	}

	state := s.classifier.Observe(&raw)
	enriched := s.enricher.Enrich(raw, s.classifier, state)
	detected := s.detector.Detect(enriched)
	counters := s.detector.Counters()

	for _, ev := range detected {
		s.notify(ev, counters, enriched)
		events.DetectedEventFeed.Send(ev)
	}

	s.lastAccepted = raw.Time
	return &ProcessingResult{
		Enriched: enriched,
		Events:   detected,
		Counters: counters,
	}, nil
}

// SetThresholds merges partial threshold overrides, last-write-wins per
// field. Takes effect from the next processed sample. The engine does not
// validate values; degenerate thresholds are the caller's to avoid.
func (s *Session) SetThresholds(o params.ThresholdOverrides) {
	s.thresholds = s.thresholds.Merge(o)
}

// SetSpeedLimits merges partial speed-limit overrides.
func (s *Session) SetSpeedLimits(o params.SpeedLimitOverrides) {
	s.limits = s.limits.Merge(o)
}

// SetContextOverride pins the driving context, e.g. a school zone on the
// study route. Pass nil to return to speed-inferred contexts.
func (s *Session) SetContextOverride(ctx *sample.Context) {
	s.enricher.SetContextOverride(ctx)
}

// Reset clears all session state: counters, buffers, baseline, movement
// state, debounce clocks, and the ingest cursor. Idempotent; the next
// sample starts a fresh session (baseline undefined again).
func (s *Session) Reset() {
	s.classifier.Reset()
	s.enricher.Reset()
	s.detector.Reset()
	s.lastAccepted = time.Time{}
	s.dedupePass = cache.NewDedupePassLRUFunc(s.Config.DedupeSize)
}

// Counters returns a defensive copy of the session's event counters.
func (s *Session) Counters() driving.Counters {
	return s.detector.Counters()
}

// Window returns the enricher's sliding window, oldest first.
func (s *Session) Window() []*sample.EnrichedSample {
	return s.enricher.Window()
}

// OnEvent registers an observer and returns its unsubscribe function.
// Notification is synchronous with ProcessSample, at most once per event.
func (s *Session) OnEvent(obs Observer) (unsubscribe func()) {
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = obs
	return func() {
		delete(s.observers, id)
	}
}

// notify invokes each observer, isolating failures: a panicking observer
// is logged and skipped, never propagated to the ProcessSample caller.
func (s *Session) notify(ev *driving.Event, counters driving.Counters, es *sample.EnrichedSample) {
	for id, obs := range s.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Observer panicked", "observer", id, "recovered", r)
				}
			}()
			obs(ev, counters.Copy(), es)
		}()
	}
}
