package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
)

type cardKey struct {
	roomID, userID int64
}

// MemoryStore keeps every record in process. Rooms are serialized by a
// per-room mutex so different rooms never wait on each other.
type MemoryStore struct {
	mu  sync.RWMutex
	seq int64
	now func() time.Time

	users      map[int64]*models.User
	rooms      map[int64]*models.Room
	roomByCode map[string]int64
	players    map[int64]map[int64]time.Time
	cards      map[cardKey]*models.Card
	cardByID   map[int64]*models.Card
	draws      map[int64][]models.Draw
	winners    map[int64]*models.Winner

	roomLocks sync.Map // roomID -> *sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        time.Now,
		users:      make(map[int64]*models.User),
		rooms:      make(map[int64]*models.Room),
		roomByCode: make(map[string]int64),
		players:    make(map[int64]map[int64]time.Time),
		cards:      make(map[cardKey]*models.Card),
		cardByID:   make(map[int64]*models.Card),
		draws:      make(map[int64][]models.Draw),
		winners:    make(map[int64]*models.Winner),
	}
}

func (s *MemoryStore) nextID() int64 {
	s.seq++
	return s.seq
}

func copyRoom(r *models.Room) *models.Room {
	c := *r
	return &c
}

func copyCard(c *models.Card) *models.Card {
	out := *c
	out.Cells = append([]bingo.Cell(nil), c.Cells...)
	return &out
}

func (s *MemoryStore) UpsertUser(ctx context.Context, u models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.users[u.UserId]
	if !ok {
		u.CreatedAt, u.UpdatedAt = now, now
		if u.Role == "" {
			u.Role = models.RolePlayer
		}
		s.users[u.UserId] = &u
		out := u
		return &out, nil
	}

	if u.Name != "" {
		existing.Name = u.Name
	}
	if u.Email != "" {
		existing.Email = u.Email
	}
	if u.Role != "" {
		existing.Role = u.Role
	}
	existing.UpdatedAt = now
	out := *existing
	return &out, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, bingo.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		c := *u
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].UserId > users[j].UserId
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.roomByCode[room.Code]; taken {
		return bingo.ErrDuplicateCode
	}
	room.ID = s.nextID()
	room.CreatedAt = s.now()
	if room.Status == "" {
		room.Status = bingo.StatusWaiting
	}
	s.rooms[room.ID] = copyRoom(room)
	s.roomByCode[room.Code] = room.ID
	return nil
}

func (s *MemoryStore) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roomByCode[code]
	return ok, nil
}

func (s *MemoryStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.roomByCode[code]
	if !ok {
		return nil, bingo.ErrRoomNotFound
	}
	return copyRoom(s.rooms[id]), nil
}

func (s *MemoryStore) ListRooms(ctx context.Context) ([]*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]*models.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, copyRoom(r))
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID > rooms[j].ID })
	return rooms, nil
}

func (s *MemoryStore) RoomPlayers(ctx context.Context, roomID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.players[roomID]))
	for id := range s.players[roomID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) GetWinner(ctx context.Context, roomID int64) (*models.Winner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.winnerLocked(roomID), nil
}

func (s *MemoryStore) winnerLocked(roomID int64) *models.Winner {
	w, ok := s.winners[roomID]
	if !ok {
		return nil
	}
	out := *w
	if u, ok := s.users[w.UserID]; ok {
		out.User = &models.UserRef{UserId: u.UserId, Name: u.Name, Email: u.Email}
	}
	return &out
}

func (s *MemoryStore) ListDraws(ctx context.Context, roomID int64) ([]models.Draw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.draws[roomID]
	out := make([]models.Draw, len(src))
	for i, d := range src {
		out[len(src)-1-i] = d
	}
	return out, nil
}

func (s *MemoryStore) AddPlayer(ctx context.Context, roomID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return bingo.ErrRoomNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return bingo.ErrUserNotFound
	}
	members, ok := s.players[roomID]
	if !ok {
		members = make(map[int64]time.Time)
		s.players[roomID] = members
	}
	if _, joined := members[userID]; !joined {
		members[userID] = s.now()
	}
	return nil
}

func (s *MemoryStore) GetCard(ctx context.Context, roomID, userID int64) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[cardKey{roomID, userID}]
	if !ok {
		return nil, nil
	}
	return copyCard(c), nil
}

func (s *MemoryStore) CreateCard(ctx context.Context, card *models.Card) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cardKey{card.RoomID, card.UserID}
	if existing, ok := s.cards[key]; ok {
		return copyCard(existing), nil
	}
	if len(card.Cells) != bingo.GridSize {
		return nil, fmt.Errorf("%w: card needs %d cells, got %d", bingo.ErrValidation, bingo.GridSize, len(card.Cells))
	}
	room, ok := s.rooms[card.RoomID]
	if !ok {
		return nil, bingo.ErrRoomNotFound
	}
	if err := room.Status.EnsureOpen(); err != nil {
		return nil, err
	}

	stored := copyCard(card)
	stored.ID = s.nextID()
	stored.CreatedAt = s.now()
	sort.Slice(stored.Cells, func(i, j int) bool { return stored.Cells[i].Position < stored.Cells[j].Position })
	s.cards[key] = stored
	s.cardByID[stored.ID] = stored
	return copyCard(stored), nil
}

func (s *MemoryStore) SetCellMarked(ctx context.Context, cardID int64, position int, marked bool) (*bingo.Cell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cardByID[cardID]
	if !ok {
		return nil, bingo.ErrNoCard
	}
	if err := s.rooms[card.RoomID].Status.EnsureOpen(); err != nil {
		return nil, err
	}
	for i := range card.Cells {
		if card.Cells[i].Position == position {
			card.Cells[i].Marked = marked
			cell := card.Cells[i]
			return &cell, nil
		}
	}
	return nil, bingo.ErrInvalidPosition
}

func (s *MemoryStore) FinishedRoomsFor(ctx context.Context, userID int64) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rooms []*models.Room
	for roomID, members := range s.players {
		if _, joined := members[userID]; !joined {
			continue
		}
		if r := s.rooms[roomID]; r.Status == bingo.StatusFinished {
			rooms = append(rooms, r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID > rooms[j].ID })

	history := make([]models.HistoryEntry, 0, len(rooms))
	for _, r := range rooms {
		entry := models.HistoryEntry{
			RoomID:     r.ID,
			Code:       r.Code,
			Name:       r.Name,
			Prize:      r.Prize,
			FinishedAt: r.FinishedAt,
		}
		if w, ok := s.winners[r.ID]; ok {
			at := w.CreatedAt
			entry.FinishedAt = &at
			entry.Won = w.UserID == userID
		}
		history = append(history, entry)
	}
	return history, nil
}

func (s *MemoryStore) roomLock(roomID int64) *sync.Mutex {
	l, _ := s.roomLocks.LoadOrStore(roomID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (s *MemoryStore) WithRoomLock(ctx context.Context, code string, fn func(tx RoomTx) error) error {
	s.mu.RLock()
	id, ok := s.roomByCode[code]
	s.mu.RUnlock()
	if !ok {
		return bingo.ErrRoomNotFound
	}

	lock := s.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	tx := &memoryTx{store: s, room: copyRoom(s.rooms[id])}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// memoryTx stages writes and applies them on commit.
type memoryTx struct {
	store *MemoryStore
	room  *models.Room

	draws  []models.Draw
	winner *models.Winner
	status bingo.Status
}

func (tx *memoryTx) Room() *models.Room { return copyRoom(tx.room) }

func (tx *memoryTx) DrawnNumbers(ctx context.Context) (bingo.NumberSet, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	set := bingo.NewNumberSet()
	for _, d := range tx.store.draws[tx.room.ID] {
		set.Add(d.Number)
	}
	for _, d := range tx.draws {
		set.Add(d.Number)
	}
	return set, nil
}

func (tx *memoryTx) InsertDraw(ctx context.Context, number int) (*models.Draw, error) {
	drawn, err := tx.DrawnNumbers(ctx)
	if err != nil {
		return nil, err
	}
	if drawn.Has(number) {
		return nil, fmt.Errorf("%w: number %d already drawn in room %s", bingo.ErrStoreFailure, number, tx.room.Code)
	}
	d := models.Draw{RoomID: tx.room.ID, Number: number, DrawnAt: tx.store.now()}
	tx.draws = append(tx.draws, d)
	return &d, nil
}

func (tx *memoryTx) CardFor(ctx context.Context, userID int64) (*models.Card, error) {
	return tx.store.GetCard(ctx, tx.room.ID, userID)
}

func (tx *memoryTx) InsertWinner(ctx context.Context, userID int64, pattern bingo.Pattern) (*models.Winner, error) {
	tx.store.mu.RLock()
	_, exists := tx.store.winners[tx.room.ID]
	tx.store.mu.RUnlock()
	if exists || tx.winner != nil {
		return nil, bingo.ErrAlreadyFinished
	}
	tx.winner = &models.Winner{RoomID: tx.room.ID, UserID: userID, Pattern: pattern, CreatedAt: tx.store.now()}
	out := *tx.winner
	return &out, nil
}

func (tx *memoryTx) SetStatus(ctx context.Context, status bingo.Status) error {
	if err := checkTransition(tx.room.Status, status); err != nil {
		return err
	}
	tx.room.Status = status
	tx.status = status
	return nil
}

func (tx *memoryTx) commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.rooms[tx.room.ID]
	if tx.status != "" {
		if err := checkTransition(room.Status, tx.status); err != nil {
			return err
		}
		room.Status = tx.status
		if tx.status == bingo.StatusFinished {
			at := s.now()
			room.FinishedAt = &at
		}
	}
	s.draws[room.ID] = append(s.draws[room.ID], tx.draws...)
	if tx.winner != nil {
		s.winners[room.ID] = tx.winner
	}
	return nil
}
