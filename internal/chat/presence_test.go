package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresence_MarkOnline_Changes(t *testing.T) {
	req := require.New(t)
	p := NewPresence()

	// Given an empty room
	req.Equal(0, p.Count("lobby"))

	// When a user comes online
	req.True(p.MarkOnline("lobby", "alice"))

	// Then the count reflects it
	req.Equal(1, p.Count("lobby"))
}

func TestPresence_MarkOnline_Redundant(t *testing.T) {
	req := require.New(t)
	p := NewPresence()

	req.True(p.MarkOnline("lobby", "alice"))

	// Marking the same user online again must not report a change
	req.False(p.MarkOnline("lobby", "alice"))
	req.Equal(1, p.Count("lobby"))
}

func TestPresence_MarkOffline(t *testing.T) {
	req := require.New(t)
	p := NewPresence()

	p.MarkOnline("lobby", "alice")
	p.MarkOnline("lobby", "bob")

	req.True(p.MarkOffline("lobby", "alice"))
	req.Equal(1, p.Count("lobby"))

	// Offline users and unknown rooms are no-ops
	req.False(p.MarkOffline("lobby", "alice"))
	req.False(p.MarkOffline("ghost-room", "alice"))
	req.Equal(1, p.Count("lobby"))
}

func TestPresence_RoomsAreIndependent(t *testing.T) {
	req := require.New(t)
	p := NewPresence()

	p.MarkOnline("lobby", "alice")
	p.MarkOnline("games", "alice")

	req.Equal(1, p.Count("lobby"))
	req.Equal(1, p.Count("games"))

	p.MarkOffline("lobby", "alice")
	req.Equal(0, p.Count("lobby"))
	req.Equal(1, p.Count("games"))
}

func TestPresence_ConcurrentMarks(t *testing.T) {
	req := require.New(t)
	p := NewPresence()

	const users = 50
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			req.True(p.MarkOnline("lobby", user))
		}(i)
	}
	wg.Wait()
	req.Equal(users, p.Count("lobby"))

	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			req.True(p.MarkOffline("lobby", user))
		}(i)
	}
	wg.Wait()
	req.Equal(0, p.Count("lobby"))
}
