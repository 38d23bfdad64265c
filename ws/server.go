package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"edu-relay/auth"
	"edu-relay/domain"
	"edu-relay/errors"
	"edu-relay/services"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Server exposes the websocket endpoint and the read-only HTTP surface.
type Server struct {
	log        *slog.Logger
	service    services.IChatService
	tokens     auth.TokenManager
	upgrader   websocket.Upgrader
	validate   *validator.Validate
	bufferSize int
}

func NewServer(log *slog.Logger, service services.IChatService,
	tokens auth.TokenManager, allowedOrigins []string, bufferSize int) *Server {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Server{
		log:     log,
		service: service,
		tokens:  tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
		validate:   validator.New(),
		bufferSize: bufferSize,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws", s.HandleWebSocket).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/rooms", s.handleRooms).Methods(http.MethodGet)
	router.HandleFunc("/rooms/{roomId}/messages", s.handleHistory).Methods(http.MethodGet)
	router.HandleFunc("/auth/guest", s.handleGuestToken).Methods(http.MethodPost)
	return router
}

// HandleWebSocket handles GET /ws. An optional ?token= JWT binds the session
// to an authenticated principal; without one the session runs as a guest
// with a generated id.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	principal := s.principalFrom(r.URL.Query().Get("token"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	session := NewSession(principal, conn, s.service, s.validate, s.log, s.bufferSize)
	s.log.Info("Session connected",
		"session_id", session.ID,
		"guest", principal.Guest,
		"remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	session.cancel = cancel
	go session.writePump(ctx)
	session.readPump(ctx)

	s.log.Info("Session disconnected", "session_id", session.ID)
}

func (s *Server) principalFrom(token string) domain.Participant {
	if token != "" {
		claims, err := s.tokens.Validate(token)
		if err == nil {
			return domain.Participant{ID: claims.UserID, DisplayName: claims.DisplayName}
		}
		s.log.Warn("Invalid session token, downgrading to guest", "error", err)
	}
	return domain.Participant{ID: uuid.NewString(), Guest: true}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type roomDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	rooms := lo.Map(s.service.Rooms(), func(room domain.Room, _ int) roomDTO {
		return roomDTO{
			ID:        string(room.ID),
			Name:      room.Name,
			CreatedAt: room.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	})
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// handleHistory serves newest-first cursor pagination over a room's history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	messages, next, err := s.service.History(domain.RoomID(roomID), cursor)
	if err != nil {
		if stderrors.Is(err, errors.ErrStoreUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable"})
			return
		}
		s.log.Error("History read failed", "room_id", roomID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages":   toMessageDTOs(messages),
		"nextCursor": next,
	})
}

type guestTokenRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// handleGuestToken lets the SPA obtain a short-lived identity before opening
// the websocket, so even unregistered users get a stable sender id.
func (s *Server) handleGuestToken(w http.ResponseWriter, r *http.Request) {
	var req guestTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	token, err := s.tokens.Generate(uuid.NewString(), req.Name)
	if err != nil {
		s.log.Error("Token generation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
