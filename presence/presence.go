package presence

import "sync"

// Tracker is the process-wide set of users with at least one live
// connection. It reference-counts per user: a user stays online until the
// last of their connections (match or presence) closes.
type Tracker struct {
	mu     sync.Mutex
	online map[uint]int
}

func NewTracker() *Tracker {
	return &Tracker{
		online: make(map[uint]int),
	}
}

func (t *Tracker) Add(userId uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online[userId]++
}

func (t *Tracker) Remove(userId uint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	count, ok := t.online[userId]
	if !ok {
		return
	}
	if count <= 1 {
		delete(t.online, userId)
		return
	}
	t.online[userId] = count - 1
}

func (t *Tracker) IsOnline(userId uint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.online[userId]
	return ok
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.online)
}
