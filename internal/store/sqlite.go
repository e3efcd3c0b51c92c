package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/AdDoha0/realtime-chat/internal/models"
)

// SQLiteStore is the default message store for development and
// single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and initializes) a SQLite-backed message store.
// If dbPath is empty, defaults to "./data/chat.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	// Presence rows from a previous process are stale: every live
	// connection died with the process.
	if _, err := db.ExecContext(ctx, `DELETE FROM room_online`); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_active_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		message_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		author TEXT NOT NULL,
		body TEXT NOT NULL,
		ts INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS room_online (
		room_id TEXT NOT NULL REFERENCES rooms(id),
		username TEXT NOT NULL,
		PRIMARY KEY (room_id, username)
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_name ON rooms(name);
	CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages(room_id, ts);

	-- Seed the default room if not exists
	INSERT OR IGNORE INTO rooms (id, name)
	VALUES ('00000000-0000-0000-0000-000000000001', 'public-chat');
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindRoom retrieves a room by name. Returns (nil, nil) if absent.
func (s *SQLiteStore) FindRoom(ctx context.Context, name string) (*models.Room, error) {
	room := &models.Room{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, last_active_at, message_count
		FROM rooms WHERE name = ?
	`, name).Scan(&idStr, &room.Name, &room.CreatedAt, &room.LastActiveAt, &room.MessageCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	room.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// CreateRoom creates a new room with the given name.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string) (*models.Room, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, name, created_at, last_active_at)
		VALUES (?, ?, ?, ?)
	`, id, name, now, now)
	if err != nil {
		return nil, err
	}

	return s.FindRoom(ctx, name)
}

// ListRooms returns all rooms ordered by most recent activity.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var idStr string
		if err := rows.Scan(&idStr, &room.Name, &room.CreatedAt, &room.LastActiveAt, &room.MessageCount); err != nil {
			return nil, err
		}
		if room.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// CreateMessage appends a message to the room's log, assigning a ULID and
// timestamp, and bumps the room's activity counters.
func (s *SQLiteStore) CreateMessage(ctx context.Context, room *models.Room, author, body string) (*models.Message, error) {
	msg := &models.Message{
		ID:        ulid.Make().String(),
		RoomID:    room.ID.String(),
		RoomName:  room.Name,
		Author:    author,
		Body:      body,
		Timestamp: time.Now().UnixMilli(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, author, body, ts)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID, msg.Author, msg.Body, msg.Timestamp)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rooms SET message_count = message_count + 1, last_active_at = ? WHERE id = ?
	`, time.Now(), msg.RoomID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage retrieves a message by ID. Returns (nil, nil) if absent.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.room_id, r.name, m.author, m.body, m.ts
		FROM messages m JOIN rooms r ON r.id = m.room_id
		WHERE m.id = ?
	`, id).Scan(&msg.ID, &msg.RoomID, &msg.RoomName, &msg.Author, &msg.Body, &msg.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// RecentMessages returns the newest messages of a room, newest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.room_id, r.name, m.author, m.body, m.ts
		FROM messages m JOIN rooms r ON r.id = m.room_id
		WHERE m.room_id = ?
		ORDER BY m.ts DESC LIMIT ?
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
func (s *SQLiteStore) AddOnlineUser(ctx context.Context, roomID, user string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO room_online (room_id, username) VALUES (?, ?)
	`, roomID, user)
	return err
}

// RemoveOnlineUser removes user from the room's durable mirror.
func (s *SQLiteStore) RemoveOnlineUser(ctx context.Context, roomID, user string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM room_online WHERE room_id = ? AND username = ?
	`, roomID, user)
	return err
}

// OnlineUserCount returns the mirrored online-user count for a room.
func (s *SQLiteStore) OnlineUserCount(ctx context.Context, roomID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM room_online WHERE room_id = ?
	`, roomID).Scan(&count)
	return count, err
}
