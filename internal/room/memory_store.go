package room

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ub-detected/football-bot/internal/models"
)

// MemoryStore is an in-memory Store used by tests and by dev mode when no
// DATABASE_URL is configured. All reads return deep copies so callers never
// share mutable state with the store.
type MemoryStore struct {
	mu          sync.Mutex
	rooms       map[uuid.UUID]*models.GameRoom
	users       map[uuid.UUID]*models.User
	byTelegram  map[string]uuid.UUID
	activeRooms map[uuid.UUID]uuid.UUID
	history     map[uuid.UUID][]*models.GameHistory
	complaints  []*models.Complaint
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:       make(map[uuid.UUID]*models.GameRoom),
		users:       make(map[uuid.UUID]*models.User),
		byTelegram:  make(map[string]uuid.UUID),
		activeRooms: make(map[uuid.UUID]uuid.UUID),
		history:     make(map[uuid.UUID][]*models.GameHistory),
	}
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room *models.GameRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room.Version = 1
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryStore) RoomByID(ctx context.Context, id uuid.UUID) (*models.GameRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, &NotFoundError{Resource: "room", ID: id}
	}
	return r.Clone(), nil
}

func (s *MemoryStore) ListRooms(ctx context.Context, filter RoomFilter) ([]*models.GameRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.GameRoom
	for _, r := range s.rooms {
		if matchesFilter(r, filter) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func matchesFilter(r *models.GameRoom, f RoomFilter) bool {
	if !f.IncludeCompleted && r.Status == models.StatusCompleted {
		return false
	}
	if !f.IncludeFull && r.IsFull() {
		return false
	}
	if f.Name != "" && !containsFold(r.Name, f.Name) {
		return false
	}
	if f.Location != "" && !containsFold(r.Location, f.Location) {
		return false
	}
	if len(f.TimeRanges) > 0 {
		matched := false
		for _, tr := range f.TimeRanges {
			if containsFold(r.TimeRange, tr) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

func (s *MemoryStore) SaveRoom(ctx context.Context, room *models.GameRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRoomLocked(room)
}

// saveRoomLocked is the version-checked room write. Callers hold s.mu.
func (s *MemoryStore) saveRoomLocked(room *models.GameRoom) error {
	cur, ok := s.rooms[room.ID]
	if !ok {
		return &NotFoundError{Resource: "room", ID: room.ID}
	}
	if cur.Version != room.Version {
		return ErrVersionConflict
	}
	room.Version++
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryStore) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
	for uid, rid := range s.activeRooms {
		if rid == id {
			delete(s.activeRooms, uid)
		}
	}
	return nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user.Clone()
	if user.TelegramID != "" {
		s.byTelegram[user.TelegramID] = user.ID
	}
	return nil
}

func (s *MemoryStore) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, &NotFoundError{Resource: "user", ID: id}
	}
	return u.Clone(), nil
}

func (s *MemoryStore) UserByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byTelegram[telegramID]
	if !ok {
		return nil, &NotFoundError{Resource: "user", ID: uuid.Nil}
	}
	return s.users[id].Clone(), nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return &NotFoundError{Resource: "user", ID: user.ID}
	}
	s.users[user.ID] = user.Clone()
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Leaderboard(ctx context.Context, page, perPage int) ([]*models.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Username < all[j].Username
	})
	total := len(all)
	start := (page - 1) * perPage
	if start >= total {
		return nil, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *MemoryStore) ActiveRoom(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.activeRooms[userID]
	return id, ok, nil
}

// ActivateRoom saves the room and binds its players to it. Under the single
// store mutex the two writes are one atomic step.
func (s *MemoryStore) ActivateRoom(ctx context.Context, room *models.GameRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveRoomLocked(room); err != nil {
		return err
	}
	for _, uid := range room.PlayerIDs() {
		s.activeRooms[uid] = room.ID
	}
	return nil
}

// SettleRoom applies a settlement as one atomic step: users, history, the
// active-room release and the completed room row. All checks run before any
// write so a failure leaves the store untouched.
func (s *MemoryStore) SettleRoom(ctx context.Context, room *models.GameRoom, users []*models.User, entries []*models.GameHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rooms[room.ID]
	if !ok {
		return &NotFoundError{Resource: "room", ID: room.ID}
	}
	if cur.Version != room.Version {
		return ErrVersionConflict
	}
	for _, u := range users {
		if _, ok := s.users[u.ID]; !ok {
			return &NotFoundError{Resource: "user", ID: u.ID}
		}
	}

	for _, u := range users {
		s.users[u.ID] = u.Clone()
	}
	for _, e := range entries {
		s.history[e.User.ID] = append(s.history[e.User.ID], e)
	}
	for _, uid := range room.PlayerIDs() {
		delete(s.activeRooms, uid)
	}
	return s.saveRoomLocked(room)
}

func (s *MemoryStore) HistoryForUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*models.GameHistory, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.history[userID]
	// newest first, matching the leaderboard client
	sorted := make([]*models.GameHistory, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PlayedAt.After(sorted[j].PlayedAt)
	})
	total := len(sorted)
	start := (page - 1) * perPage
	if start >= total {
		return nil, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return sorted[start:end], total, nil
}

func (s *MemoryStore) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complaints = append(s.complaints, c)
	return nil
}

// Complaints returns every filed complaint, oldest first. Test helper.
func (s *MemoryStore) Complaints() []*models.Complaint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Complaint, len(s.complaints))
	copy(out, s.complaints)
	return out
}

func (s *MemoryStore) StaleSubmissions(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for id, r := range s.rooms {
		if r.Status == models.StatusScoreSubmission && r.EndTime != nil && r.EndTime.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}
