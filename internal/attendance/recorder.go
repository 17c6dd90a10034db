// Package attendance writes at most one attendance event per student per calendar day.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andresmejia3/rollcall/internal/types"
)

// ErrAlreadyRecorded may be returned by Store.InsertAttendance when a concurrent writer won the race.
// The recorder treats it the same as a positive existence check.
var ErrAlreadyRecorded = errors.New("attendance already recorded for this date")

// Store is the part of the attendance store the recorder needs.
type Store interface {
	AttendanceExists(ctx context.Context, studentID string, date time.Time) (bool, error)
	InsertAttendance(ctx context.Context, ev types.AttendanceEvent) error
}

// Recorder performs the idempotent "first event of the day" write.
type Recorder struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogger sets the logger used to report new events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

// NewRecorder returns a Recorder writing to store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores an event for studentID, tagged with sessionID, unless one already exists for today.
// It reports whether a new event was written. "Already recorded" is not an error.
func (r *Recorder) Record(ctx context.Context, studentID, sessionID string) (bool, error) {
	if studentID == "" || studentID == types.UnknownIdentity {
		return false, fmt.Errorf("cannot record attendance for %q", studentID)
	}

	now := r.now()
	day := Day(now)

	exists, err := r.store.AttendanceExists(ctx, studentID, day)
	if err != nil {
		return false, fmt.Errorf("check attendance for %s: %w", studentID, err)
	}
	if exists {
		return false, nil
	}

	err = r.store.InsertAttendance(ctx, types.AttendanceEvent{
		StudentID:  studentID,
		Date:       day,
		RecordedAt: now,
		SessionID:  sessionID,
	})
	if errors.Is(err, ErrAlreadyRecorded) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert attendance for %s: %w", studentID, err)
	}

	r.log.Info("attendance recorded", "student_id", studentID, "date", day.Format(time.DateOnly), "time", now.Format(time.TimeOnly))
	return true, nil
}

// Day truncates t to midnight in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
