package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func constraintViolated(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
	}
	return false
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u models.User) (*models.User, error) {
	// an empty role keeps the stored one and defaults new users to PLAYER
	const query = `
		INSERT INTO users (user_id, name, email, role)
		VALUES ($1, $2, $3, COALESCE(NULLIF($4::text, ''), 'PLAYER'))
		ON CONFLICT (user_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			role = COALESCE(NULLIF($4::text, ''), users.role),
			updated_at = now()
		RETURNING user_id, name, email, role, created_at, updated_at
	`
	out := &models.User{}
	err := s.db.QueryRow(ctx, query, u.UserId, u.Name, u.Email, string(u.Role)).Scan(
		&out.UserId,
		&out.Name,
		&out.Email,
		&out.Role,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return nil, wrapErr(fmt.Errorf("upsert user %d: %w", u.UserId, err))
	}
	return out, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, name, email, role, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`, userID)

	u := &models.User{}
	err := row.Scan(&u.UserId, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bingo.ErrUserNotFound
		}
		return nil, wrapErr(fmt.Errorf("get user %d: %w", userID, err))
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, name, email, role, created_at, updated_at
		FROM users
		ORDER BY created_at DESC, user_id DESC
	`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.UserId, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, wrapErr(err)
		}
		users = append(users, u)
	}
	return users, wrapErr(rows.Err())
}

func (s *PostgresStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.Status == "" {
		room.Status = bingo.StatusWaiting
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO rooms (code, name, prize, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, room.Code, room.Name, room.Prize, string(room.Status)).Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		if constraintViolated(err, "unique_room_code") {
			return bingo.ErrDuplicateCode
		}
		return wrapErr(fmt.Errorf("create room %s: %w", room.Code, err))
	}
	return nil
}

func (s *PostgresStore) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)`, code).Scan(&exists)
	return exists, wrapErr(err)
}

const roomColumns = `id, code, name, prize, status, created_at, finished_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	r := &models.Room{}
	var status string
	if err := row.Scan(&r.ID, &r.Code, &r.Name, &r.Prize, &status, &r.CreatedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	st, err := bingo.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	r.Status = st
	return r, nil
}

func (s *PostgresStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	room, err := scanRoom(s.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bingo.ErrRoomNotFound
		}
		return nil, wrapErr(fmt.Errorf("get room %s: %w", code, err))
	}
	return room, nil
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]*models.Room, error) {
	rows, err := s.db.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		rooms = append(rooms, r)
	}
	return rooms, wrapErr(rows.Err())
}

func (s *PostgresStore) RoomPlayers(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM room_players WHERE room_id = $1 ORDER BY user_id`, roomID)
	if err != nil {
		return nil, wrapErr(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return ids, wrapErr(err)
}

func (s *PostgresStore) GetWinner(ctx context.Context, roomID int64) (*models.Winner, error) {
	return getWinner(ctx, s.db, roomID)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getWinner(ctx context.Context, q querier, roomID int64) (*models.Winner, error) {
	w := &models.Winner{RoomID: roomID}
	ref := &models.UserRef{}
	var positions []int32
	err := q.QueryRow(ctx, `
		SELECT w.user_id, w.pattern, w.created_at, u.name, u.email
		FROM winners w
		JOIN users u ON u.user_id = w.user_id
		WHERE w.room_id = $1
	`, roomID).Scan(&w.UserID, &positions, &w.CreatedAt, &ref.Name, &ref.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(fmt.Errorf("get winner for room %d: %w", roomID, err))
	}

	ints := make([]int, len(positions))
	for i, p := range positions {
		ints[i] = int(p)
	}
	if w.Pattern, err = bingo.NewPattern(ints); err != nil {
		return nil, wrapErr(fmt.Errorf("stored pattern for room %d: %w", roomID, err))
	}
	ref.UserId = w.UserID
	w.User = ref
	return w, nil
}

func (s *PostgresStore) ListDraws(ctx context.Context, roomID int64) ([]models.Draw, error) {
	rows, err := s.db.Query(ctx, `
		SELECT number, drawn_at
		FROM draws
		WHERE room_id = $1
		ORDER BY drawn_at DESC, id DESC
	`, roomID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	draws := []models.Draw{}
	for rows.Next() {
		d := models.Draw{RoomID: roomID}
		if err := rows.Scan(&d.Number, &d.DrawnAt); err != nil {
			return nil, wrapErr(err)
		}
		draws = append(draws, d)
	}
	return draws, wrapErr(rows.Err())
}

func (s *PostgresStore) AddPlayer(ctx context.Context, roomID, userID int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO room_players (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`, roomID, userID)
	return wrapErr(err)
}

func (s *PostgresStore) GetCard(ctx context.Context, roomID, userID int64) (*models.Card, error) {
	return getCard(ctx, s.db, roomID, userID)
}

func getCard(ctx context.Context, q querier, roomID, userID int64) (*models.Card, error) {
	card := &models.Card{RoomID: roomID, UserID: userID}
	err := q.QueryRow(ctx, `SELECT id, created_at FROM cards WHERE room_id = $1 AND user_id = $2`, roomID, userID).
		Scan(&card.ID, &card.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(fmt.Errorf("get card room=%d user=%d: %w", roomID, userID, err))
	}

	rows, err := q.Query(ctx, `
		SELECT position, value, marked
		FROM card_cells
		WHERE card_id = $1
		ORDER BY position
	`, card.ID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var c bingo.Cell
		if err := rows.Scan(&c.Position, &c.Value, &c.Marked); err != nil {
			return nil, wrapErr(err)
		}
		card.Cells = append(card.Cells, c)
	}
	return card, wrapErr(rows.Err())
}

func (s *PostgresStore) CreateCard(ctx context.Context, card *models.Card) (*models.Card, error) {
	if len(card.Cells) != bingo.GridSize {
		return nil, fmt.Errorf("%w: card needs %d cells, got %d", bingo.ErrValidation, bingo.GridSize, len(card.Cells))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, wrapErr(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	// FOR SHARE waits out a draw, claim or close holding the room
	if err := roomOpen(ctx, tx, `SELECT status FROM rooms WHERE id = $1 FOR SHARE`, card.RoomID); err != nil {
		if !errors.Is(err, bingo.ErrRoomClosed) {
			return nil, err
		}
		existing, gerr := getCard(ctx, tx, card.RoomID, card.UserID)
		if gerr != nil || existing == nil {
			return nil, err
		}
		return existing, nil
	}

	created := &models.Card{RoomID: card.RoomID, UserID: card.UserID}
	err = tx.QueryRow(ctx, `
		INSERT INTO cards (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT unique_room_user_card DO NOTHING
		RETURNING id, created_at
	`, card.RoomID, card.UserID).Scan(&created.ID, &created.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// another request created it first
		tx.Rollback(ctx)
		return s.GetCard(ctx, card.RoomID, card.UserID)
	}
	if err != nil {
		return nil, wrapErr(fmt.Errorf("insert card: %w", err))
	}

	rows := make([][]any, len(card.Cells))
	for i, c := range card.Cells {
		rows[i] = []any{created.ID, int16(c.Position), int16(c.Value), c.Marked}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"card_cells"},
		[]string{"card_id", "position", "value", "marked"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return nil, wrapErr(fmt.Errorf("insert card cells: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapErr(fmt.Errorf("commit tx: %w", err))
	}

	created.Cells = append([]bingo.Cell(nil), card.Cells...)
	return created, nil
}

func (s *PostgresStore) SetCellMarked(ctx context.Context, cardID int64, position int, marked bool) (*bingo.Cell, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, wrapErr(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	err = roomOpen(ctx, tx, `
		SELECT r.status
		FROM cards c
		JOIN rooms r ON r.id = c.room_id
		WHERE c.id = $1
		FOR SHARE OF r
	`, cardID)
	if errors.Is(err, bingo.ErrRoomNotFound) {
		return nil, bingo.ErrNoCard
	}
	if err != nil {
		return nil, err
	}

	cell := &bingo.Cell{}
	err = tx.QueryRow(ctx, `
		UPDATE card_cells
		SET marked = $3
		WHERE card_id = $1 AND position = $2
		RETURNING position, value, marked
	`, cardID, position, marked).Scan(&cell.Position, &cell.Value, &cell.Marked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bingo.ErrInvalidPosition
		}
		return nil, wrapErr(fmt.Errorf("mark cell card=%d position=%d: %w", cardID, position, err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapErr(fmt.Errorf("commit tx: %w", err))
	}
	return cell, nil
}

// roomOpen runs a single-row status query and fails with bingo.ErrRoomClosed
// once the room is finished.
func roomOpen(ctx context.Context, q querier, query string, arg any) error {
	var status string
	err := q.QueryRow(ctx, query, arg).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bingo.ErrRoomNotFound
		}
		return wrapErr(fmt.Errorf("room status: %w", err))
	}
	return bingo.Status(status).EnsureOpen()
}

func (s *PostgresStore) FinishedRoomsFor(ctx context.Context, userID int64) ([]models.HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.code, r.name, r.prize,
		       COALESCE(w.created_at, r.finished_at),
		       COALESCE(w.user_id = $1, false)
		FROM rooms r
		JOIN room_players rp ON rp.room_id = r.id AND rp.user_id = $1
		LEFT JOIN winners w ON w.room_id = r.id
		WHERE r.status = 'FINISHED'
		ORDER BY r.created_at DESC, r.id DESC
	`, userID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	history := []models.HistoryEntry{}
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.RoomID, &h.Code, &h.Name, &h.Prize, &h.FinishedAt, &h.Won); err != nil {
			return nil, wrapErr(err)
		}
		history = append(history, h)
	}
	return history, wrapErr(rows.Err())
}

// WithRoomLock holds the room row with SELECT ... FOR NO KEY UPDATE for the length
// of one transaction.
func (s *PostgresStore) WithRoomLock(ctx context.Context, code string, fn func(tx RoomTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return wrapErr(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	room, err := scanRoom(tx.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = $1 FOR NO KEY UPDATE`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bingo.ErrRoomNotFound
		}
		return wrapErr(fmt.Errorf("lock room %s: %w", code, err))
	}

	if err := fn(&postgresTx{tx: tx, room: room}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

type postgresTx struct {
	tx   pgx.Tx
	room *models.Room
}

func (t *postgresTx) Room() *models.Room { return copyRoom(t.room) }

func (t *postgresTx) DrawnNumbers(ctx context.Context) (bingo.NumberSet, error) {
	rows, err := t.tx.Query(ctx, `SELECT number FROM draws WHERE room_id = $1`, t.room.ID)
	if err != nil {
		return nil, wrapErr(err)
	}
	numbers, err := pgx.CollectRows(rows, pgx.RowTo[int16])
	if err != nil {
		return nil, wrapErr(err)
	}

	set := bingo.NewNumberSet()
	for _, n := range numbers {
		set.Add(int(n))
	}
	return set, nil
}

func (t *postgresTx) InsertDraw(ctx context.Context, number int) (*models.Draw, error) {
	d := &models.Draw{RoomID: t.room.ID, Number: number}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO draws (room_id, number)
		VALUES ($1, $2)
		RETURNING drawn_at
	`, t.room.ID, int16(number)).Scan(&d.DrawnAt)
	if err != nil {
		return nil, wrapErr(fmt.Errorf("insert draw %d in room %s: %w", number, t.room.Code, err))
	}
	return d, nil
}

func (t *postgresTx) CardFor(ctx context.Context, userID int64) (*models.Card, error) {
	return getCard(ctx, t.tx, t.room.ID, userID)
}

func (t *postgresTx) InsertWinner(ctx context.Context, userID int64, pattern bingo.Pattern) (*models.Winner, error) {
	positions := make([]int32, len(pattern))
	for i, p := range pattern {
		positions[i] = int32(p)
	}

	w := &models.Winner{RoomID: t.room.ID, UserID: userID, Pattern: pattern}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO winners (room_id, user_id, pattern)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, t.room.ID, userID, positions).Scan(&w.CreatedAt)
	if err != nil {
		if constraintViolated(err, "winners_pkey") {
			return nil, bingo.ErrAlreadyFinished
		}
		return nil, wrapErr(fmt.Errorf("insert winner room %s: %w", t.room.Code, err))
	}
	return w, nil
}

func (t *postgresTx) SetStatus(ctx context.Context, status bingo.Status) error {
	if err := checkTransition(t.room.Status, status); err != nil {
		return err
	}

	var finishedAt *time.Time
	if status == bingo.StatusFinished {
		now := time.Now().UTC()
		finishedAt = &now
	}

	res, err := t.tx.Exec(ctx, `
		UPDATE rooms
		SET status = $2, finished_at = COALESCE($3, finished_at)
		WHERE id = $1 AND status = $4
	`, t.room.ID, string(status), finishedAt, string(t.room.Status))
	if err != nil {
		return wrapErr(fmt.Errorf("update room %s status: %w", t.room.Code, err))
	}
	if res.RowsAffected() != 1 {
		// the row moved under us; the lock should make this unreachable
		return bingo.ErrAlreadyFinished
	}

	t.room.Status = status
	if finishedAt != nil {
		t.room.FinishedAt = finishedAt
	}
	return nil
}
