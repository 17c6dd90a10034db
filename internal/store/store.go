package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresmejia3/rollcall/internal/attendance"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStudentNotFound is returned by rename and delete when the student is not registered.
var ErrStudentNotFound = errors.New("student not found")

// Store manages the PostgreSQL pool holding students and attendance.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// initSchema creates the tables if they don't exist (Auto-Migration).
// attendance has no foreign key to students: a face can be trained and recognized
// before anyone registers a name for it.
func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS students (
			student_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			registered_at DATE NOT NULL DEFAULT CURRENT_DATE
		);
		CREATE TABLE IF NOT EXISTS attendance (
			id BIGSERIAL PRIMARY KEY,
			student_id TEXT NOT NULL,
			attendance_date DATE NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			UNIQUE (student_id, attendance_date)
		);
		CREATE INDEX IF NOT EXISTS attendance_date_idx ON attendance (attendance_date);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// AttendanceExists reports whether studentID already has an event on date's calendar day.
func (s *Store) AttendanceExists(ctx context.Context, studentID string, date time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM attendance WHERE student_id = $1 AND attendance_date = $2::date)",
		studentID, date.Format(time.DateOnly),
	).Scan(&exists)
	return exists, err
}

// InsertAttendance writes ev unless the student already has an event that day.
// Returns attendance.ErrAlreadyRecorded in that case, including when a concurrent writer won.
func (s *Store) InsertAttendance(ctx context.Context, ev types.AttendanceEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	day := ev.Date.Format(time.DateOnly)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM attendance WHERE student_id = $1 AND attendance_date = $2::date)",
		ev.StudentID, day,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return attendance.ErrAlreadyRecorded
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO attendance (student_id, attendance_date, recorded_at, session_id)
		VALUES ($1, $2::date, $3, $4)
	`, ev.StudentID, day, ev.RecordedAt, ev.SessionID)
	if isUniqueViolation(err) {
		return attendance.ErrAlreadyRecorded
	}
	if err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if isUniqueViolation(err) {
		return attendance.ErrAlreadyRecorded
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Filter narrows SearchAttendance. Zero values mean "no constraint".
type Filter struct {
	StudentID string
	From      time.Time // inclusive calendar day
	To        time.Time // inclusive calendar day
	Limit     int
}

// SearchAttendance returns matching events, newest first, with the registered name when known.
func (s *Store) SearchAttendance(ctx context.Context, f Filter) ([]types.AttendanceEvent, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.StudentID != "" {
		where = append(where, "a.student_id = "+arg(f.StudentID))
	}
	if !f.From.IsZero() {
		where = append(where, "a.attendance_date >= "+arg(f.From.Format(time.DateOnly))+"::date")
	}
	if !f.To.IsZero() {
		where = append(where, "a.attendance_date <= "+arg(f.To.Format(time.DateOnly))+"::date")
	}

	query := `
		SELECT a.student_id, COALESCE(s.name, ''), a.attendance_date, a.recorded_at, a.session_id
		FROM attendance a
		LEFT JOIN students s ON s.student_id = a.student_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY a.attendance_date DESC, a.recorded_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []types.AttendanceEvent
	for rows.Next() {
		var ev types.AttendanceEvent
		if err := rows.Scan(&ev.StudentID, &ev.Name, &ev.Date, &ev.RecordedAt, &ev.SessionID); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// RecentAttendance returns the events of the last days calendar days, today included.
func (s *Store) RecentAttendance(ctx context.Context, days int, now time.Time) ([]types.AttendanceEvent, error) {
	if days < 1 {
		days = 1
	}
	today := attendance.Day(now)
	return s.SearchAttendance(ctx, Filter{From: today.AddDate(0, 0, -(days - 1))})
}

// TodayCount returns how many students were recorded on now's calendar day.
func (s *Store) TodayCount(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM attendance WHERE attendance_date = $1::date",
		now.Format(time.DateOnly),
	).Scan(&n)
	return n, err
}

// ListStudents returns all registered students ordered by ID.
func (s *Store) ListStudents(ctx context.Context) ([]types.Student, error) {
	rows, err := s.pool.Query(ctx, "SELECT student_id, name, registered_at FROM students ORDER BY student_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []types.Student
	for rows.Next() {
		var st types.Student
		if err := rows.Scan(&st.StudentID, &st.Name, &st.RegisteredAt); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// GetStudent returns one registered student.
func (s *Store) GetStudent(ctx context.Context, studentID string) (types.Student, error) {
	var st types.Student
	err := s.pool.QueryRow(ctx,
		"SELECT student_id, name, registered_at FROM students WHERE student_id = $1", studentID,
	).Scan(&st.StudentID, &st.Name, &st.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	return st, err
}

// UpsertStudent registers a student or updates the name of an existing one.
func (s *Store) UpsertStudent(ctx context.Context, studentID, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (student_id, name)
		VALUES ($1, $2)
		ON CONFLICT (student_id) DO UPDATE SET name = EXCLUDED.name
	`, studentID, name)
	return err
}

// RenameStudent updates the display name of a registered student.
func (s *Store) RenameStudent(ctx context.Context, studentID, name string) error {
	tag, err := s.pool.Exec(ctx, "UPDATE students SET name = $1 WHERE student_id = $2", name, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	return nil
}

// DeleteStudent removes the student and all of their attendance in one transaction.
// It returns the number of attendance rows removed. Deleting an unregistered student
// that still has attendance is allowed.
func (s *Store) DeleteStudent(ctx context.Context, studentID string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	att, err := tx.Exec(ctx, "DELETE FROM attendance WHERE student_id = $1", studentID)
	if err != nil {
		return 0, err
	}
	st, err := tx.Exec(ctx, "DELETE FROM students WHERE student_id = $1", studentID)
	if err != nil {
		return 0, err
	}
	if st.RowsAffected() == 0 && att.RowsAffected() == 0 {
		return 0, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}

	return att.RowsAffected(), tx.Commit(ctx)
}

// ClearAttendance deletes every attendance record and returns how many were removed.
func (s *Store) ClearAttendance(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM attendance")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Reset drops all application tables to clear the database state.
// The next New call recreates them.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		DROP TABLE IF EXISTS attendance CASCADE;
		DROP TABLE IF EXISTS students CASCADE;
	`)
	return err
}

var _ attendance.Store = (*Store)(nil)
