package chat

import "sync"

// Presence tracks which users are currently online in each room.
// A user is present at most once per room regardless of how it was
// reported; the changed return values let callers suppress redundant
// presence broadcasts.
type Presence struct {
	mu    sync.Mutex
	rooms map[string]map[string]struct{}
}

// NewPresence creates an empty presence tracker.
func NewPresence() *Presence {
	return &Presence{rooms: make(map[string]map[string]struct{})}
}

// MarkOnline records user as online in room. It returns false when the
// user was already online, true when the set changed.
func (p *Presence) MarkOnline(room, user string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.rooms[room]
	if !ok {
		users = make(map[string]struct{})
		p.rooms[room] = users
	}
	if _, online := users[user]; online {
		return false
	}
	users[user] = struct{}{}
	return true
}

// MarkOffline removes user from room's online set. It returns false when
// the user was not online.
func (p *Presence) MarkOffline(room, user string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.rooms[room]
	if !ok {
		return false
	}
	if _, online := users[user]; !online {
		return false
	}
	delete(users, user)
	if len(users) == 0 {
		delete(p.rooms, room)
	}
	return true
}

// Count returns the number of users currently online in room. It reflects
// every Mark operation that completed before the call.
func (p *Presence) Count(room string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rooms[room])
}
