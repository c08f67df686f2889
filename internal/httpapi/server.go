package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/parsers"
	"github.com/austin-smith/fusion-bridge-sub012/internal/pipeline"
	"github.com/austin-smith/fusion-bridge-sub012/internal/store"
)

const maxWebhookBody = 1 << 20

// Store is the persistence surface the HTTP layer needs.
type Store interface {
	GetConnector(ctx context.Context, id uuid.UUID) (*store.Connector, error)
	GetArea(ctx context.Context, id uuid.UUID) (*store.Area, error)
}

// ArmingCache records area arming transitions.
type ArmingCache interface {
	SetAreaArmed(ctx context.Context, areaID uuid.UUID, mode model.ArmedState) error
	AreaArmed(ctx context.Context, areaID uuid.UUID) (model.ArmedState, error)
}

// EventFeed exposes the live event stream with a small replay buffer.
type EventFeed interface {
	Subscribe() (<-chan model.StandardizedEvent, func())
}

type Server struct {
	repo  Store
	cache ArmingCache
	feed  EventFeed
	pipe  *pipeline.Pipeline
	genea parsers.Parser
}

func New(repo Store, cache ArmingCache, feed EventFeed, pipe *pipeline.Pipeline, genea parsers.Parser) *Server {
	return &Server{repo: repo, cache: cache, feed: feed, pipe: pipe, genea: genea}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Post("/api/webhooks/genea/{connector_id}", s.handleGeneaWebhook)

	r.Route("/api/areas/{id}", func(r chi.Router) {
		r.Post("/arm", s.handleArm)
		r.Post("/disarm", s.handleDisarm)
		r.Get("/arming", s.handleGetArming)
	})

	r.Get("/api/events/ws", s.handleEventsWS)

	return r
}

// handleGeneaWebhook ingests pushed access-control events. The body may be a
// single event or a batch; a malformed entry never fails the whole request.
func (s *Server) handleGeneaWebhook(w http.ResponseWriter, r *http.Request) {
	connID, err := uuid.Parse(chi.URLParam(r, "connector_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid connector id")
		return
	}
	conn, err := s.repo.GetConnector(r.Context(), connID)
	if err != nil || conn == nil {
		writeError(w, http.StatusNotFound, "connector not found")
		return
	}
	if conn.Category != string(model.ConnectorGenea) || !conn.Enabled {
		writeError(w, http.StatusNotFound, "connector not found")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}

	events := s.genea.Parse(conn.ID.String(), body)
	if len(events) > 0 {
		s.pipe.Process(r.Context(), conn, events...)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": len(events)})
}

type armRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	area, ok := s.areaFromPath(w, r)
	if !ok {
		return
	}
	var req armRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	mode := model.ArmedState(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = model.ArmedAway
	}
	if !mode.Armed() {
		writeError(w, http.StatusBadRequest, "mode must be an armed state")
		return
	}
	if err := s.cache.SetAreaArmed(r.Context(), area.ID, mode); err != nil {
		slog.Error("arming write failed", "area_id", area.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "arming state unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"area_id": area.ID, "mode": mode})
}

func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	area, ok := s.areaFromPath(w, r)
	if !ok {
		return
	}
	if err := s.cache.SetAreaArmed(r.Context(), area.ID, model.Disarmed); err != nil {
		slog.Error("arming write failed", "area_id", area.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "arming state unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"area_id": area.ID, "mode": model.Disarmed})
}

func (s *Server) handleGetArming(w http.ResponseWriter, r *http.Request) {
	area, ok := s.areaFromPath(w, r)
	if !ok {
		return
	}
	mode, err := s.cache.AreaArmed(r.Context(), area.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "arming state unavailable")
		return
	}
	if mode == "" {
		mode = model.Disarmed
	}
	writeJSON(w, http.StatusOK, map[string]any{"area_id": area.ID, "mode": mode})
}

func (s *Server) areaFromPath(w http.ResponseWriter, r *http.Request) (*store.Area, bool) {
	areaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid area id")
		return nil, false
	}
	area, err := s.repo.GetArea(r.Context(), areaID)
	if err != nil || area == nil {
		writeError(w, http.StatusNotFound, "area not found")
		return nil, false
	}
	return area, true
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := s.feed.Subscribe()
	defer cancel()

	// Read pump just to detect disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Periodic ping to keep intermediaries alive.
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(2*time.Second)); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				slog.Debug("ws write failed", "error", err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "code": status})
}
