// Package handlers exposes the REST and WebSocket surface of the service.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/ub-detected/football-bot/internal/cache"
	mw "github.com/ub-detected/football-bot/internal/middleware"
	"github.com/ub-detected/football-bot/internal/room"
)

// Server holds the service dependencies shared by every handler.
type Server struct {
	svc    *room.Service
	store  room.Store
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewServer wires a Server. The cache may be nil; leaderboard caching is then
// skipped.
func NewServer(svc *room.Service, c *cache.Cache, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{svc: svc, store: svc.Store(), cache: c, logger: logger}
}

// Routes builds the chi router with CORS, logging and metrics middleware.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.LogMiddleware(s.logger))
	r.Use(mw.MetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", mw.MetricsHandler())

	r.Route("/api", func(api chi.Router) {
		api.Route("/users", func(u chi.Router) {
			u.Get("/", s.handleListUsers)
			u.Post("/login", s.handleLogin)
			u.Get("/me", s.handleCurrentUser)
			u.Post("/theme-preference", s.handleThemePreference)
			u.Get("/game-history", s.handleOwnGameHistory)
			u.Get("/{id}", s.handleUserByID)
			u.Get("/{id}/game-history", s.handleUserGameHistory)
		})

		api.Get("/leaderboard", s.handleLeaderboard)
		api.Get("/user-active-rooms", s.handleUserActiveRooms)

		api.Route("/game-rooms", func(g chi.Router) {
			g.Get("/", s.handleListRooms)
			g.Post("/", s.handleCreateRoom)
			g.Get("/{id}", s.handleGetRoom)
			g.Delete("/{id}", s.handleDeleteRoom)
			g.Get("/{id}/ws", s.handleRoomWatch)
			g.Post("/{id}/join", s.handleJoinRoom)
			g.Post("/{id}/leave", s.handleLeaveRoom)
			g.Post("/{id}/start-team-selection", s.handleStartTeamSelection)
			g.Post("/{id}/start-game", s.handleStartGame)
			g.Post("/{id}/end-game", s.handleEndGame)
			g.Post("/{id}/submit-score", s.handleSubmitScore)
			g.Post("/{id}/report-player", s.handleReportPlayer)
		})

		api.Get("/locations", s.handleLocations)
		api.Get("/locations/search", s.handleLocationSearch)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Membership and capacity
// conflicts carry extra fields the client navigates on.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *room.ValidationError
		authErr       *room.AuthorizationError
		notFoundErr   *room.NotFoundError
		stateErr      *room.StateConflictError
		fullErr       *room.RoomFullError
		memberErr     *room.MembershipConflictError
		submittedErr  *room.AlreadySubmittedError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationErr.Msg})
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": authErr.Msg})
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFoundErr.Error()})
	case errors.As(err, &fullErr):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":      "room is full",
			"roomIsFull": true,
		})
	case errors.As(err, &memberErr):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":        "you are already in an active game room",
			"activeRoomId": memberErr.ActiveRoomID,
		})
	case errors.As(err, &submittedErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "you already submitted a score for this attempt"})
	case errors.As(err, &stateErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": stateErr.Error()})
	default:
		s.logger.WithError(err).Error("internal error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// pagination holds the page metadata every list endpoint returns.
type pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func newPagination(page, perPage, total int) pagination {
	totalPages := (total + perPage - 1) / perPage
	return pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// parsePagination reads page/per_page query params; per_page is capped at 50.
func parsePagination(r *http.Request) (page, perPage int) {
	page = queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage = queryInt(r, "per_page", 10)
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 50 {
		perPage = 50
	}
	return page, perPage
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}
