package store

import (
	"context"

	"github.com/AdDoha0/realtime-chat/internal/models"
)

// MessageStore defines the durable storage consumed by the chat core:
// rooms, the append-only message log, and a durable mirror of per-room
// presence. Both SQLiteStore and PostgresStore implement this interface.
//
// Lookup methods return (nil, nil) when the entity does not exist.
type MessageStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Room operations
	FindRoom(ctx context.Context, name string) (*models.Room, error)
	CreateRoom(ctx context.Context, name string) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)

	// Message operations
	CreateMessage(ctx context.Context, room *models.Room, author, body string) (*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)

	// Presence mirror (the in-memory tracker is the read/write path;
	// these keep a durable copy alongside the messages)
	AddOnlineUser(ctx context.Context, roomID, user string) error
	RemoveOnlineUser(ctx context.Context, roomID, user string) error
	OnlineUserCount(ctx context.Context, roomID string) (int, error)
}
