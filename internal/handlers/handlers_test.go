package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/AdDoha0/realtime-chat/internal/chat"
	"github.com/AdDoha0/realtime-chat/internal/models"
	"github.com/AdDoha0/realtime-chat/internal/render"
)

// stubStore is an in-memory MessageStore for handler tests.
type stubStore struct {
	mu       sync.Mutex
	rooms    map[string]*models.Room
	messages []models.Message
	online   map[string]map[string]struct{}
}

func newStubStore(roomNames ...string) *stubStore {
	s := &stubStore{
		rooms:  make(map[string]*models.Room),
		online: make(map[string]map[string]struct{}),
	}
	for _, name := range roomNames {
		s.rooms[name] = &models.Room{ID: uuid.New(), Name: name}
	}
	return s
}

func (s *stubStore) Close() {}

func (s *stubStore) Ping(context.Context) error { return nil }

func (s *stubStore) FindRoom(_ context.Context, name string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[name]
	if !ok {
		return nil, nil
	}
	copied := *room
	return &copied, nil
}

func (s *stubStore) CreateRoom(_ context.Context, name string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := &models.Room{ID: uuid.New(), Name: name}
	s.rooms[name] = room
	return room, nil
}

func (s *stubStore) ListRooms(context.Context) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, *room)
	}
	return rooms, nil
}

func (s *stubStore) CreateMessage(_ context.Context, room *models.Room, author, body string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := models.Message{
		ID:       ulid.Make().String(),
		RoomID:   room.ID.String(),
		RoomName: room.Name,
		Author:   author,
		Body:     body,
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *stubStore) GetMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			copied := msg
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubStore) RecentMessages(_ context.Context, roomID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if s.messages[i].RoomID == roomID {
			out = append(out, s.messages[i])
		}
	}
	return out, nil
}

func (s *stubStore) AddOnlineUser(_ context.Context, roomID, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online[roomID] == nil {
		s.online[roomID] = make(map[string]struct{})
	}
	s.online[roomID][user] = struct{}{}
	return nil
}

func (s *stubStore) RemoveOnlineUser(_ context.Context, roomID, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.online[roomID], user)
	return nil
}

func (s *stubStore) OnlineUserCount(_ context.Context, roomID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.online[roomID]), nil
}

func newTestRouter(st *stubStore) *chi.Mux {
	log := zerolog.Nop()
	svc := chat.NewService(st, nil, chat.NewRegistry(log), chat.NewPresence(), render.NewJSON(), log, chat.Options{})
	h := NewHandler(svc, st, nil, log, []string{"*"})

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Get("/ws/chat/{room}", h.ServeWS)
	r.Get("/rooms", h.ListRooms)
	r.Post("/rooms", h.CreateRoom)
	r.Get("/rooms/{room}/messages", h.GetRoomMessages)
	r.Post("/rooms/{room}/messages", h.PostMessage)
	return r
}

func TestHealth(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(newStubStore("public-chat"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	req.Equal(http.StatusOK, rec.Code)

	var resp HealthResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal("healthy", resp.Status)
	req.Equal("pass", resp.Checks["store"].Status)
	req.NotContains(resp.Checks, "redis")
}

func TestListRooms(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(newStubStore("public-chat", "games"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	req.Equal(http.StatusOK, rec.Code)

	var resp map[string][]RoomInfo
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Len(resp["rooms"], 2)
}

func TestCreateRoom(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(newStubStore())

	body := bytes.NewBufferString(`{"name":"team-chat"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms", body))

	req.Equal(http.StatusCreated, rec.Code)

	var resp RoomInfo
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal("team-chat", resp.Name)
	req.NotEmpty(resp.ID)
}

func TestCreateRoom_Invalid(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(newStubStore("public-chat"))

	cases := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"empty name", `{"name":"  "}`, http.StatusBadRequest},
		{"bad characters", `{"name":"no spaces!"}`, http.StatusBadRequest},
		{"duplicate", `{"name":"public-chat"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(tc.body)))
			req.Equal(tc.code, rec.Code, tc.name)
		})
	}
}

func TestGetRoomMessages(t *testing.T) {
	req := require.New(t)
	st := newStubStore("public-chat")
	router := newTestRouter(st)

	room, err := st.FindRoom(context.Background(), "public-chat")
	req.NoError(err)
	_, err = st.CreateMessage(context.Background(), room, "alice", "hello")
	req.NoError(err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/public-chat/messages", nil))

	req.Equal(http.StatusOK, rec.Code)

	var resp RoomMessagesResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal("public-chat", resp.Room.Name)
	req.Len(resp.Messages, 1)
	req.Equal("alice", resp.Messages[0].Author)
	req.Equal("hello", resp.Messages[0].Body)
}

func TestGetRoomMessages_UnknownRoom(t *testing.T) {
	router := newTestRouter(newStubStore("public-chat"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/ghost-room/messages", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostMessage(t *testing.T) {
	req := require.New(t)
	st := newStubStore("public-chat")
	router := newTestRouter(st)

	r := httptest.NewRequest(http.MethodPost, "/rooms/public-chat/messages", bytes.NewBufferString(`{"body":"over http"}`))
	r.Header.Set("X-Chat-User", "carol")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	req.Equal(http.StatusCreated, rec.Code)

	var resp PostMessageResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.NotEmpty(resp.ID)

	msg, err := st.GetMessage(context.Background(), resp.ID)
	req.NoError(err)
	req.NotNil(msg)
	req.Equal("carol", msg.Author)
	req.Equal("over http", msg.Body)
}

func TestPostMessage_Errors(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(newStubStore("public-chat"))

	cases := []struct {
		name string
		path string
		user string
		body string
		code int
	}{
		{"no identity", "/rooms/public-chat/messages", "", `{"body":"x"}`, http.StatusUnauthorized},
		{"unknown room", "/rooms/ghost-room/messages", "carol", `{"body":"x"}`, http.StatusNotFound},
		{"missing body", "/rooms/public-chat/messages", "carol", `{"other":"x"}`, http.StatusBadRequest},
		{"bad json", "/rooms/public-chat/messages", "carol", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tc.path, bytes.NewBufferString(tc.body))
			if tc.user != "" {
				r.Header.Set("X-Chat-User", tc.user)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, r)
			req.Equal(tc.code, rec.Code, tc.name)
		})
	}
}
