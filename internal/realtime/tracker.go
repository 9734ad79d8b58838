package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PresenceSink receives online/offline transitions derived from connection
// counts.
type PresenceSink interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
}

// Tracker counts live connections per user. A user with several devices is
// online while any connection remains; the offline write fires only when the
// last one drops. This is what makes the disconnect write reliable: the
// server observes the socket close, the client does not have to say goodbye.
type Tracker struct {
	sink PresenceSink

	mu    sync.Mutex
	users map[uuid.UUID]*userState
}

// userState carries the connection count and a per-user mutex that serializes
// sink writes. Without it, the offline write of a dropped socket can land
// after the online write of a reconnect and leave a connected user marked
// offline.
type userState struct {
	count   int
	writeMu sync.Mutex
}

func NewTracker(sink PresenceSink) *Tracker {
	return &Tracker{
		sink:  sink,
		users: make(map[uuid.UUID]*userState),
	}
}

// Attach records a new connection for the user. The first connection marks
// the user online. The returned detach function must be called exactly once
// when the connection ends; the last detach marks the user offline.
func (t *Tracker) Attach(ctx context.Context, userID uuid.UUID) (func(ctx context.Context) error, error) {
	t.mu.Lock()
	st, ok := t.users[userID]
	if !ok {
		st = &userState{}
		t.users[userID] = st
	}
	st.count++
	first := st.count == 1
	t.mu.Unlock()

	if first {
		st.writeMu.Lock()
		err := t.sink.SetOnline(ctx, userID)
		st.writeMu.Unlock()
		if err != nil {
			t.mu.Lock()
			st.count--
			if st.count == 0 {
				delete(t.users, userID)
			}
			t.mu.Unlock()
			return nil, err
		}
	}

	var once sync.Once
	detach := func(ctx context.Context) error {
		var err error
		once.Do(func() {
			t.mu.Lock()
			st.count--
			last := st.count == 0
			t.mu.Unlock()

			if !last {
				return
			}

			st.writeMu.Lock()
			t.mu.Lock()
			// A reconnect raced in between the decrement and here; its
			// online write is the newer truth, so the offline is dropped.
			stale := st.count > 0
			t.mu.Unlock()
			if !stale {
				err = t.sink.SetOffline(ctx, userID)
			}
			st.writeMu.Unlock()

			t.mu.Lock()
			if st.count == 0 {
				delete(t.users, userID)
			}
			t.mu.Unlock()
		})
		return err
	}
	return detach, nil
}

// Connections reports the live connection count for a user.
func (t *Tracker) Connections(userID uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.users[userID]; ok {
		return st.count
	}
	return 0
}
