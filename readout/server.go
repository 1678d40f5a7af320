// Package readout exposes a running collector's structures over a local
// socket: current waits, the history ring, the profile table, and a
// profile reset. Readers go through the structures' shared locks and can
// never stall the sampler for longer than one copy-out.
package readout

import (
	"net"
	"net/http"
	"os"
	"sort"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/waitsampling-io/waitsampling"
	"github.com/waitsampling-io/waitsampling/collector"
)

// EventNamer translates an opaque wait-event code into a human-readable
// (type, event) pair. A nil namer leaves rows numeric.
type EventNamer func(code uint32) (eventType, event string)

// Option customizes a Server.
type Option func(*Server)

// WithEventNamer attaches a wait-event naming function.
func WithEventNamer(namer EventNamer) Option {
	return func(s *Server) { s.namer = namer }
}

// Server serves the readout API for one collector.
type Server struct {
	col    *collector.Collector
	namer  EventNamer
	router *mux.Router
	srv    *http.Server
}

// NewServer builds the API around the given collector.
func NewServer(col *collector.Collector, opts ...Option) *Server {
	s := &Server{
		col:    col,
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	s.srv = &http.Server{Handler: s.router}
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/v1/current", s.current).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/history", s.history).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/profile", s.profile).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/profile/reset", s.resetProfile).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/status", s.status).Methods(http.MethodGet)
}

// Handler returns the API as a plain http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections from ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	log.WithField("addr", ln.Addr().String()).Info("readout server listening")
	err := s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// ListenAndServe listens on the platform-local endpoint at path.
func (s *Server) ListenAndServe(path string) error {
	ln, err := listen(path)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Close stops accepting connections.
func (s *Server) Close() error { return s.srv.Close() }

func (s *Server) current(w http.ResponseWriter, r *http.Request) {
	reg := s.col.Registry()
	cfg := s.col.Config()
	rows := make([]waitsampling.WaitRow, 0, reg.Size())
	for i := 0; i < reg.Size(); i++ {
		snap := reg.Snapshot(i)
		if snap.PID == 0 || snap.WaitEvent == 0 {
			continue
		}
		row := waitsampling.WaitRow{PID: snap.PID, Code: snap.WaitEvent}
		if cfg.PerQuery {
			row.QueryID = snap.QueryID
		}
		s.name(&row.EventType, &row.Event, snap.WaitEvent)
		rows = append(rows, row)
	}
	s.respond(w, rows)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	items := s.col.History().Items()
	rows := make([]waitsampling.WaitRow, 0, len(items))
	for _, item := range items {
		row := waitsampling.WaitRow{
			PID:       item.PID,
			Code:      item.WaitEvent,
			QueryID:   item.QueryID,
			SampledAt: item.SampledAt,
		}
		s.name(&row.EventType, &row.Event, item.WaitEvent)
		rows = append(rows, row)
	}
	s.respond(w, rows)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	entries := s.col.Profile().Entries()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Counter > entries[j].Counter
	})
	rows := make([]waitsampling.ProfileRow, 0, len(entries))
	for _, e := range entries {
		row := waitsampling.ProfileRow{
			PID:     e.Key.PID,
			Code:    e.Key.WaitEvent,
			QueryID: e.Key.QueryID,
			Count:   e.Counter,
			Usage:   e.Usage,
		}
		s.name(&row.EventType, &row.Event, e.Key.WaitEvent)
		rows = append(rows, row)
	}
	s.respond(w, rows)
}

func (s *Server) resetProfile(w http.ResponseWriter, r *http.Request) {
	s.col.Profile().Reset()
	log.Info("profile reset requested")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.respond(w, waitsampling.Status{
		PID:            os.Getpid(),
		Config:         s.col.Config(),
		HistoryCursor:  s.col.History().Cursor(),
		HistoryLen:     s.col.History().Len(),
		ProfileEntries: s.col.Profile().Len(),
		Workers:        s.col.Registry().Size(),
	})
}

func (s *Server) name(eventType, event *string, code uint32) {
	if s.namer == nil {
		return
	}
	*eventType, *event = s.namer(code)
}

func (s *Server) respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}
