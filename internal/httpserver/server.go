// internal/httpserver/server.go
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tamzrod/ups-poller/internal/status"
	"github.com/tamzrod/ups-poller/internal/ups"
)

// Reader is the read side of the coordinator.
type Reader interface {
	Current() ups.Snapshot
	Status() status.Snapshot
}

// Field is one entry of the /snapshot response.
type Field struct {
	Key   string  `json:"key"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
	State string  `json:"state,omitempty"`
}

// SnapshotResponse is the /snapshot body.
type SnapshotResponse struct {
	At     string  `json:"at,omitempty"`
	Fields []Field `json:"fields"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	status.Diagnostic
	Uptime string `json:"uptime"`
}

// Server exposes health, snapshot and metrics over HTTP.
type Server struct {
	reader  Reader
	started time.Time
	log     zerolog.Logger
	srv     *http.Server
}

// New builds the server. gatherer may be nil to disable /metrics.
func New(addr string, reader Reader, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	s := &Server{reader: reader, started: time.Now(), log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the request multiplexer.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info().Str("addr", l.Addr().String()).Msg("http server listening")
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.reader.Status()

	code := http.StatusOK
	if st.Health != status.HealthOK {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Diagnostic: status.Encode(st),
		Uptime:     time.Since(s.started).Truncate(time.Second).String(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.reader.Current()
	if snap.IsEmpty() {
		writeJSON(w, http.StatusServiceUnavailable, SnapshotResponse{Fields: []Field{}})
		return
	}

	resp := SnapshotResponse{
		At:     snap.At().UTC().Format(time.RFC3339),
		Fields: make([]Field, 0, snap.Len()),
	}
	for _, k := range snap.Keys() {
		v, _ := snap.Get(k)
		f := Field{Key: k, Name: k, Value: v}
		if sensor, ok := ups.SensorByKey(k); ok {
			f.Name = sensor.Name
			f.Unit = sensor.Unit
		}
		if code, ok := snap.Code(k); ok {
			if name, isState := ups.StateName(k, code); isState {
				f.State = name
			}
		}
		resp.Fields = append(resp.Fields, f)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
