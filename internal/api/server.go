// Package api serves the coin list over HTTP and streams changes over a websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/engine"
	"github.com/serp1412/coinfeed/internal/telemetry"
)

// Engine is the part of the aggregation engine the API drives.
type Engine interface {
	Coins() []domain.Coin
	Coin(id string) (domain.Coin, bool)
	Status() engine.Status
	LoadNextPage(ctx context.Context) error
	RefreshCoin(ctx context.Context, id string) error
}

type Server struct {
	Engine Engine
	Hub    *Hub

	WriteTimeout time.Duration
	// OriginPatterns lists the cross-origin hosts allowed to open /ws.
	// Same-origin and non-browser clients are always accepted.
	OriginPatterns []string
}

func NewServer(e Engine, hub *Hub) *Server {
	return &Server{Engine: e, Hub: hub, WriteTimeout: 5 * time.Second}
}

// Routes returns the full router: health, API, stream and expvar.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.APIRequestMetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/debug/vars", expvar.Handler())
	r.Get("/ws", s.handleStream)
	s.Mount(r)
	return r
}

func (s *Server) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/coins", s.handleListCoins)
		r.Post("/coins/next", s.handleLoadNext)
		r.Get("/coins/{id}", s.handleGetCoin)
		r.Post("/coins/{id}/refresh", s.handleRefreshCoin)
	})
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, apiError{Error: message})
}

type coinListResponse struct {
	engine.Status
	Items []domain.Coin `json:"coins"`
}

func (s *Server) handleListCoins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, coinListResponse{
		Status: s.Engine.Status(),
		Items:  s.Engine.Coins(),
	})
}

func (s *Server) handleGetCoin(w http.ResponseWriter, r *http.Request) {
	coin, ok := s.Engine.Coin(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "coin not found")
		return
	}
	writeJSON(w, http.StatusOK, coin)
}

func (s *Server) handleLoadNext(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.LoadNextPage(r.Context()); err != nil {
		if errors.Is(err, engine.ErrStopped) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Status())
}

func (s *Server) handleRefreshCoin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Engine.RefreshCoin(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, engine.ErrUnknownCoin):
			writeError(w, http.StatusNotFound, "coin not found")
		case errors.Is(err, engine.ErrStopped):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	coin, _ := s.Engine.Coin(id)
	writeJSON(w, http.StatusOK, coin)
}

// handleStream sends the current list, then every change as one JSON coin per message.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.OriginPatterns,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server error")

	telemetry.WSConnectionOpened()
	defer telemetry.WSConnectionClosed()

	// Subscribe before the snapshot so nothing between the two is lost.
	sub := s.Hub.add()
	defer s.Hub.remove(sub)

	// Clients only listen; CloseRead handles control frames and cancels on close.
	ctx := conn.CloseRead(r.Context())

	for _, c := range s.Engine.Coins() {
		if err := s.write(ctx, conn, c); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case c := <-sub.ch:
			if err := s.write(ctx, conn, c); err != nil {
				slog.Debug("Stream write failed", slog.Any("error", err))
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, c domain.Coin) error {
	ctx, cancel := context.WithTimeout(ctx, s.WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, c)
}
