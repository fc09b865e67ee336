package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ub-detected/football-bot/internal/models"
	"github.com/ub-detected/football-bot/internal/room"
)

func roomID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, &room.ValidationError{Msg: "invalid room id"}
	}
	return id, nil
}

type createRoomRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"maxPlayers"`
	Location   string `json:"location"`
	TimeRange  string `json:"timeRange"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &room.ValidationError{Msg: "invalid request payload"})
		return
	}
	created, err := s.svc.CreateRoom(r.Context(), user.ID, req.Name, req.MaxPlayers, req.Location, req.TimeRange)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListRooms filters by name, location and timeRange query params. The
// timeRange param accepts a comma-separated list matched as OR.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := room.RoomFilter{
		Name:     strings.TrimSpace(q.Get("name")),
		Location: strings.TrimSpace(q.Get("location")),
	}
	if tr := strings.TrimSpace(q.Get("timeRange")); tr != "" {
		for _, part := range strings.Split(tr, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.TimeRanges = append(filter.TimeRanges, part)
			}
		}
	}
	rooms, err := s.svc.ListRooms(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rooms == nil {
		rooms = []*models.GameRoom{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := roomID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rm, err := s.svc.GetRoom(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := roomID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.DeleteRoom(r.Context(), id, user.ID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "room deleted"})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := roomID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.svc.Join(r.Context(), id, user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"room":       res.Room,
		"roomIsFull": res.RoomIsFull,
	})
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := roomID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	deleted, err := s.svc.Leave(r.Context(), id, user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	msg := "left the room"
	if deleted {
		msg = "left the room; empty room deleted"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     msg,
		"roomDeleted": deleted,
	})
}

func (s *Server) handleStartTeamSelection(w http.ResponseWriter, r *http.Request) {
	s.roomTransition(w, r, s.svc.StartTeamSelection)
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	s.roomTransition(w, r, s.svc.StartGame)
}

func (s *Server) handleEndGame(w http.ResponseWriter, r *http.Request) {
	s.roomTransition(w, r, s.svc.EndGame)
}

// roomTransition handles the bodyless lifecycle POSTs that all share the
// same caller/room/response shape.
func (s *Server) roomTransition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, roomID, userID uuid.UUID) (*models.GameRoom, error)) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := roomID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rm, err := fn(r.Context(), id, user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

type submitScoreRequest struct {
	Score string `json:"score"`
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := roomID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req submitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &room.ValidationError{Msg: "invalid request payload"})
		return
	}
	res, err := s.svc.SubmitScore(r.Context(), id, user.ID, req.Score)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       res.Message,
		"room":          res.Room,
		"scoreMismatch": res.Mismatch,
		"settled":       res.Settled,
	})
}

type reportPlayerRequest struct {
	ReportedUserID uuid.UUID `json:"reportedUserId"`
	Reason         string    `json:"reason"`
}

func (s *Server) handleReportPlayer(w http.ResponseWriter, r *http.Request) {
	user, err := s.ensureUser(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := roomID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req reportPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &room.ValidationError{Msg: "invalid request payload"})
		return
	}
	if err := s.svc.ReportPlayer(r.Context(), id, user.ID, req.ReportedUserID, req.Reason); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "report filed"})
}
