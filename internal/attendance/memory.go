package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/andresmejia3/rollcall/internal/types"
)

// MemoryStore keeps events in process memory. It backs `recognize --dry-run`.
type MemoryStore struct {
	mu     sync.Mutex
	events []types.AttendanceEvent
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) AttendanceExists(_ context.Context, studentID string, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.StudentID == studentID && sameDay(ev.Date, date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) InsertAttendance(_ context.Context, ev types.AttendanceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.events {
		if existing.StudentID == ev.StudentID && sameDay(existing.Date, ev.Date) {
			return ErrAlreadyRecorded
		}
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (m *MemoryStore) Events() []types.AttendanceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.AttendanceEvent(nil), m.events...)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
