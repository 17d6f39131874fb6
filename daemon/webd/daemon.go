/*
Package webd is the ingest daemon: recording clients post sample batches
per participant, the daemon runs them through per-participant engine
sessions, persists what comes out, and broadcasts live events to
researcher dashboards over a websocket.
*/
package webd

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/olahol/melody"

	"github.com/drivelab/drived/api"
	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/state"
)

// liveSession pairs a participant's engine session with its open store.
type liveSession struct {
	session *api.Session
	store   *state.SessionStore
}

type WebDaemon struct {
	Config *params.WebDaemonConfig
	logger *slog.Logger

	melodyInstance *melody.Melody

	// sessions keeps recently active participants warm. Eviction closes
	// the store; a later post reopens it and continues the session's
	// persisted counters from scratch in memory (the store holds truth).
	sessions *lru.Cache[string, *liveSession]
}

func NewWebDaemon(config *params.WebDaemonConfig) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	d := &WebDaemon{
		Config: config,
		logger: slog.With("d", "web"),
	}
	sessions, err := lru.NewWithEvict[string, *liveSession](
		params.LiveSessionCacheSize, d.onEvictSession)
	if err != nil {
		return nil, err
	}
	d.sessions = sessions
	return d, nil
}

func (s *WebDaemon) onEvictSession(participantID string, ls *liveSession) {
	if err := ls.store.WriteCounters(ls.session.Counters()); err != nil {
		s.logger.Error("Failed to persist counters on eviction",
			"participant", participantID, "error", err)
	}
	if err := ls.store.Close(); err != nil {
		s.logger.Error("Failed to close session store",
			"participant", participantID, "error", err)
	}
}

// getSession returns the participant's live session, opening one if needed.
func (s *WebDaemon) getSession(participantID string) (*liveSession, error) {
	if ls, ok := s.sessions.Get(participantID); ok {
		return ls, nil
	}
	store, err := state.Open(s.Config.DataDir, participantID, false)
	if err != nil {
		return nil, err
	}
	ls := &liveSession{
		session: api.NewSession(params.DefaultEngineConfig()),
		store:   store,
	}
	s.sessions.Add(participantID, ls)
	return ls, nil
}

// Run starts the HTTP server (ListenAndServe) and waits for it,
// returning any server error.
func (s *WebDaemon) Run() error {
	router := s.NewRouter()
	listener, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return fmt.Errorf("webd listen: %w", err)
	}
	s.logger.Info("Starting web daemon", "addr", s.Config.Address)
	return http.Serve(listener, router)
}

// Close evicts (and thereby flushes and closes) all live sessions.
func (s *WebDaemon) Close() {
	s.sessions.Purge()
}

func (s *WebDaemon) NewRouter() *mux.Router {
	s.initMelody()

	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	router.Path("/live").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings; the recording client is
	// a browser page served from elsewhere.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	jsonMiddleware := contentTypeMiddlewareFunc("application/json")
	apiJSONRoutes.Use(jsonMiddleware)

	apiJSONRoutes.Path("/last").HandlerFunc(handleLastKnown).Methods(http.MethodGet)
	apiJSONRoutes.Path("/counters/{participant}").HandlerFunc(s.handleCounters).Methods(http.MethodGet)
	apiJSONRoutes.Path("/stats/{participant}").HandlerFunc(s.handleStats).Methods(http.MethodGet)

	authenticatedAPIRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedAPIRoutes.Use(s.tokenAuthenticationMiddleware)

	authenticatedAPIRoutes.Path("/ingest").HandlerFunc(s.handleIngest).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/ingest/").HandlerFunc(s.handleIngest).Methods(http.MethodPost)

	return router
}
