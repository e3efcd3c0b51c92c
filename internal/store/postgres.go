package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/AdDoha0/realtime-chat/internal/models"
)

// PostgresStore is the production message store, backed by a pgx
// connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	// Drop stale presence rows left behind by a previous process.
	if _, err := pool.Exec(ctx, `DELETE FROM room_online`); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT UNIQUE NOT NULL,
		created_at TIMESTAMPTZ DEFAULT now(),
		last_active_at TIMESTAMPTZ DEFAULT now(),
		message_count BIGINT DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id UUID NOT NULL REFERENCES rooms(id),
		author TEXT NOT NULL,
		body TEXT NOT NULL,
		ts BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS room_online (
		room_id UUID NOT NULL REFERENCES rooms(id),
		username TEXT NOT NULL,
		PRIMARY KEY (room_id, username)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages(room_id, ts);

	INSERT INTO rooms (id, name)
	VALUES ('00000000-0000-0000-0000-000000000001', 'public-chat')
	ON CONFLICT (name) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FindRoom retrieves a room by name. Returns (nil, nil) if absent.
func (s *PostgresStore) FindRoom(ctx context.Context, name string) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at, last_active_at, message_count
		FROM rooms WHERE name = $1
	`, name).Scan(&room.ID, &room.Name, &room.CreatedAt, &room.LastActiveAt, &room.MessageCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// CreateRoom creates a new room with the given name.
func (s *PostgresStore) CreateRoom(ctx context.Context, name string) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (name)
		VALUES ($1)
		RETURNING id, name, created_at, last_active_at, message_count
	`, name).Scan(&room.ID, &room.Name, &room.CreatedAt, &room.LastActiveAt, &room.MessageCount)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ListRooms returns all rooms ordered by most recent activity.
func (s *PostgresStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_at, last_active_at, message_count
		FROM rooms ORDER BY last_active_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt, &room.LastActiveAt, &room.MessageCount); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// CreateMessage appends a message to the room's log, assigning a ULID and
// timestamp, and bumps the room's activity counters.
func (s *PostgresStore) CreateMessage(ctx context.Context, room *models.Room, author, body string) (*models.Message, error) {
	msg := &models.Message{
		ID:        ulid.Make().String(),
		RoomID:    room.ID.String(),
		RoomName:  room.Name,
		Author:    author,
		Body:      body,
		Timestamp: time.Now().UnixMilli(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, room_id, author, body, ts)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, room.ID, msg.Author, msg.Body, msg.Timestamp)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE rooms SET message_count = message_count + 1, last_active_at = now() WHERE id = $1
	`, room.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage retrieves a message by ID. Returns (nil, nil) if absent.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT m.id, m.room_id, r.name, m.author, m.body, m.ts
		FROM messages m JOIN rooms r ON r.id = m.room_id
		WHERE m.id = $1
	`, id).Scan(&msg.ID, &msg.RoomID, &msg.RoomName, &msg.Author, &msg.Body, &msg.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// RecentMessages returns the newest messages of a room, newest first.
func (s *PostgresStore) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.room_id, r.name, m.author, m.body, m.ts
		FROM messages m JOIN rooms r ON r.id = m.room_id
		WHERE m.room_id = $1
		ORDER BY m.ts DESC LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0, limit)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.RoomName, &msg.Author, &msg.Body, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AddOnlineUser records user as online in the room's durable mirror.
func (s *PostgresStore) AddOnlineUser(ctx context.Context, roomID, user string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO room_online (room_id, username) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roomID, user)
	return err
}

// RemoveOnlineUser removes user from the room's durable mirror.
func (s *PostgresStore) RemoveOnlineUser(ctx context.Context, roomID, user string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM room_online WHERE room_id = $1 AND username = $2
	`, roomID, user)
	return err
}

// OnlineUserCount returns the mirrored online-user count for a room.
func (s *PostgresStore) OnlineUserCount(ctx context.Context, roomID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM room_online WHERE room_id = $1
	`, roomID).Scan(&count)
	return count, err
}
