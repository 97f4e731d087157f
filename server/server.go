// Package server is the transport: a websocket status/parameter feed plus a
// small REST API for state inspection and external triggering.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bosley/hark/config"
	"github.com/bosley/hark/session"
)

// Trigger receives external trigger values.
type Trigger interface {
	External(on bool) bool
}

type Server struct {
	live        *config.Live
	state       *session.State
	trigger     Trigger
	router      *mux.Router
	upgrader    websocket.Upgrader
	subscribers *SubscriberList
}

// New builds the router. metrics may be nil to leave /metrics unrouted.
func New(live *config.Live, state *session.State, trigger Trigger, metrics http.Handler) *Server {
	s := &Server{
		live:        live,
		state:       state,
		trigger:     trigger,
		router:      mux.NewRouter(),
		subscribers: NewSubscriberList(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/api/state", s.handleState).Methods("GET")
	s.router.HandleFunc("/api/trigger", s.handleTrigger).Methods("POST")
	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods("GET")
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled. TLS is used when a certificate is
// configured.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.live.Load().Server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		var err error
		if cfg.CertFile != "" {
			err = srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	slog.Info("HTTP server listening", "addr", cfg.HTTPAddr, "tls", cfg.CertFile != "")

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.subscribers.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Subscribers reports how many websocket clients are connected.
func (s *Server) Subscribers() int {
	return s.subscribers.Len()
}

// Status broadcasts a status line to every subscriber.
func (s *Server) Status(msg string) {
	slog.Debug("Status", "text", msg)
	s.broadcast(Message{Type: TypeStatus, Text: msg})
}

// SetParameter broadcasts a named parameter value.
func (s *Server) SetParameter(name string, value any) {
	slog.Debug("Parameter", "name", name, "value", value)
	s.broadcast(Message{Type: TypeParameter, Name: name, Value: value})
}

func (s *Server) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode message", "error", err)
		return
	}
	s.subscribers.Broadcast(data)
}

func (s *Server) handleInbound(msg Message) {
	if msg.Type != TypeParameter {
		slog.Debug("Ignoring inbound message", "type", msg.Type)
		return
	}
	if !slices.Contains(s.live.Load().Trigger.Parameters, msg.Name) {
		slog.Debug("Ignoring unknown parameter", "name", msg.Name)
		return
	}
	s.trigger.External(truthy(msg.Value))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state.Snapshot()); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	raised := s.trigger.External(true)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]bool{"triggered": raised})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	sub := &Subscriber{
		ID:   uuid.New(),
		Addr: r.RemoteAddr,
		send: make(chan []byte, 256),
	}
	s.subscribers.Add(sub)
	slog.Info("Subscriber connected", "subscriberID", sub.ID, "addr", sub.Addr)

	c := &wsConnection{conn: conn, sub: sub, server: s}
	go c.writePump()
	go c.readPump()
}
