package service

import (
	"iter"
	"sync"
	"time"
)

type User struct {
	ID       int64
	Handle   string
	JoinedAt time.Time
}

// UserRegistry is the append-only set of everyone who has talked to the bot.
// Records are never overwritten or removed.
type UserRegistry struct {
	mu    sync.RWMutex
	users map[int64]User
	order []int64
	now   func() time.Time
}

func NewUserRegistry() *UserRegistry {
	return &UserRegistry{
		users: make(map[int64]User),
		now:   time.Now,
	}
}

// Register stores the user if the id is unseen and reports whether a record
// was created. The first handle seen for an id is kept.
func (r *UserRegistry) Register(id int64, handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[id]; exists {
		return false
	}
	r.users[id] = User{ID: id, Handle: handle, JoinedAt: r.now()}
	r.order = append(r.order, id)
	return true
}

func (r *UserRegistry) Lookup(id int64) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	return u, ok
}

func (r *UserRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users)
}

// IDs returns a snapshot of the known ids in registration order. The
// sequence can be ranged over any number of times and never sees users
// registered after the call.
func (r *UserRegistry) IDs() iter.Seq[int64] {
	r.mu.RLock()
	snapshot := make([]int64, len(r.order))
	copy(snapshot, r.order)
	r.mu.RUnlock()

	return func(yield func(int64) bool) {
		for _, id := range snapshot {
			if !yield(id) {
				return
			}
		}
	}
}
