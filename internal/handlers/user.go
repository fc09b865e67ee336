package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ub-detected/football-bot/internal/auth"
	"github.com/ub-detected/football-bot/internal/models"
	"github.com/ub-detected/football-bot/internal/room"
)

func setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   auth.TokenExpireSec,
	})
}

// ensureUser resolves the caller from the auth_token cookie. A request with
// no token, or a token whose user no longer exists, gets a fresh guest user
// and a new cookie, so the Mini-App works before the Telegram handshake runs.
func (s *Server) ensureUser(w http.ResponseWriter, r *http.Request) (*models.User, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "auth_token=") {
		token := extractCookieToken(cookieHeader, "auth_token")
		if idStr, err := auth.AuthenticateJWT(token); err == nil {
			if id, parseErr := uuid.Parse(idStr); parseErr == nil {
				if u, dbErr := s.store.UserByID(r.Context(), id); dbErr == nil {
					return u, nil
				}
			}
		}
	}

	guest := &models.User{
		ID:              uuid.New(),
		Username:        "Guest",
		ThemePreference: "light",
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), guest); err != nil {
		return nil, fmt.Errorf("failed to create guest user: %w", err)
	}
	token, err := auth.CreateJWT(guest.ID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create guest JWT: %w", err)
	}
	setAuthCookie(w, token)
	return guest, nil
}

type loginRequest struct {
	TelegramID string `json:"telegramId"`
	Username   string `json:"username"`
	PhotoURL   string `json:"photoUrl"`
}

// handleLogin upserts the user by their Telegram identity and sets the auth
// cookie. Profile fields refresh on every login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &room.ValidationError{Msg: "invalid request payload"})
		return
	}
	req.TelegramID = strings.TrimSpace(req.TelegramID)
	req.Username = strings.TrimSpace(req.Username)
	if req.TelegramID == "" {
		s.writeError(w, &room.ValidationError{Msg: "telegramId is required"})
		return
	}

	ctx := r.Context()
	user, err := s.store.UserByTelegramID(ctx, req.TelegramID)
	if err != nil {
		user = &models.User{
			ID:              uuid.New(),
			Username:        req.Username,
			PhotoURL:        req.PhotoURL,
			ThemePreference: "light",
			TelegramID:      req.TelegramID,
			CreatedAt:       time.Now().UTC(),
		}
		if user.Username == "" {
			user.Username = "Player"
		}
		if createErr := s.store.CreateUser(ctx, user); createErr != nil {
			s.writeError(w, createErr)
			return
		}
	} else if (req.Username != "" && req.Username != user.Username) || req.PhotoURL != user.PhotoURL {
		if req.Username != "" {
			user.Username = req.Username
		}
		user.PhotoURL = req.PhotoURL
		if saveErr := s.store.SaveUser(ctx, user); saveErr != nil {
			s.writeError(w, saveErr)
			return
		}
	}

	token, err := auth.CreateJWT(user.ID.String())
	if err != nil {
		s.writeError(w, err)
		return
	}
	setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, &room.ValidationError{Msg: "invalid user id"})
		return
	}
	user, err := s.store.UserByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type themePreferenceRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) handleThemePreference(w http.ResponseWriter, r *http.Request) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req themePreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &room.ValidationError{Msg: "invalid request payload"})
		return
	}
	if req.Theme != "light" && req.Theme != "dark" {
		s.writeError(w, &room.ValidationError{Msg: `theme must be "light" or "dark"`})
		return
	}
	user.ThemePreference = req.Theme
	if err := s.store.SaveUser(r.Context(), user); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleOwnGameHistory(w http.ResponseWriter, r *http.Request) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeGameHistory(w, r, user.ID)
}

func (s *Server) handleUserGameHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, &room.ValidationError{Msg: "invalid user id"})
		return
	}
	if _, err := s.store.UserByID(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeGameHistory(w, r, id)
}

func (s *Server) writeGameHistory(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	page, perPage := parsePagination(r)
	history, total, err := s.store.HistoryForUser(r.Context(), userID, page, perPage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if history == nil {
		history = []*models.GameHistory{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history":    history,
		"pagination": newPagination(page, perPage, total),
	})
}

// handleLeaderboard serves score-ordered user pages, cached in Redis for the
// polling clients.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	if data, ok := s.cache.GetLeaderboardPage(r.Context(), page, perPage); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	users, total, err := s.store.Leaderboard(r.Context(), page, perPage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"users":      users,
		"pagination": newPagination(page, perPage, total),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.cache.SetLeaderboardPage(r.Context(), page, perPage, body)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// handleUserActiveRooms lists every unfinished room the caller belongs to.
func (s *Server) handleUserActiveRooms(w http.ResponseWriter, r *http.Request) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rooms, err := s.svc.ActiveRoomsFor(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rooms == nil {
		rooms = []*models.GameRoom{}
	}
	writeJSON(w, http.StatusOK, rooms)
}
