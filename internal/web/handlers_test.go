package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresmejia3/rollcall/internal/store"
	"github.com/andresmejia3/rollcall/internal/types"
)

type mockStore struct {
	pingErr   error
	students  []types.Student
	records   []types.AttendanceEvent
	err       error
	today     int
	cleared   int64
	lastQuery store.Filter
	lastDays  int
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) ListStudents(context.Context) ([]types.Student, error) {
	return m.students, m.err
}

func (m *mockStore) SearchAttendance(_ context.Context, f store.Filter) ([]types.AttendanceEvent, error) {
	m.lastQuery = f
	return m.records, m.err
}

func (m *mockStore) RecentAttendance(_ context.Context, days int, _ time.Time) ([]types.AttendanceEvent, error) {
	m.lastDays = days
	return m.records, m.err
}

func (m *mockStore) TodayCount(context.Context, time.Time) (int, error) { return m.today, m.err }

func (m *mockStore) ClearAttendance(context.Context) (int64, error) {
	n := m.cleared
	m.records = nil
	return n, m.err
}

func newTestServer(st *mockStore) *Server {
	s := NewServer(st, "127.0.0.1", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.Local) }
	return s
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func assertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func parseJSONResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&mockStore{})
	assertStatusCode(t, do(t, s, "GET", "/api/v1/health"), http.StatusOK)

	s = newTestServer(&mockStore{pingErr: errors.New("down")})
	assertStatusCode(t, do(t, s, "GET", "/api/v1/health"), http.StatusServiceUnavailable)
}

func TestListStudents(t *testing.T) {
	st := &mockStore{students: []types.Student{{StudentID: "S001", Name: "Alice"}}}
	rec := do(t, newTestServer(st), "GET", "/api/v1/students")
	assertStatusCode(t, rec, http.StatusOK)

	var resp StudentsResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Count != 1 || resp.Students[0].Name != "Alice" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestListStudentsEmptyIsArray(t *testing.T) {
	rec := do(t, newTestServer(&mockStore{}), "GET", "/api/v1/students")
	assertStatusCode(t, rec, http.StatusOK)

	var raw map[string]json.RawMessage
	parseJSONResponse(t, rec, &raw)
	if string(raw["students"]) != "[]" {
		t.Errorf("expected empty array, got %s", raw["students"])
	}
}

func TestSearchAttendanceFilters(t *testing.T) {
	st := &mockStore{records: []types.AttendanceEvent{{StudentID: "S001"}}}
	s := newTestServer(st)

	rec := do(t, s, "GET", "/api/v1/attendance?student_id=S001&from=2026-03-01&to=2026-03-09")
	assertStatusCode(t, rec, http.StatusOK)

	var resp AttendanceResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Count != 1 {
		t.Errorf("expected 1 record, got %d", resp.Count)
	}
	if st.lastQuery.StudentID != "S001" {
		t.Errorf("student filter not passed: %+v", st.lastQuery)
	}
	if st.lastQuery.From.Format(time.DateOnly) != "2026-03-01" || st.lastQuery.To.Format(time.DateOnly) != "2026-03-09" {
		t.Errorf("date range not passed: %+v", st.lastQuery)
	}

	// A single date sets both bounds
	do(t, s, "GET", "/api/v1/attendance?date=2026-03-05")
	if !st.lastQuery.From.Equal(st.lastQuery.To) || st.lastQuery.From.Day() != 5 {
		t.Errorf("single date not applied: %+v", st.lastQuery)
	}
}

func TestSearchAttendanceBadInput(t *testing.T) {
	s := newTestServer(&mockStore{})
	for _, target := range []string{
		"/api/v1/attendance?from=yesterday",
		"/api/v1/attendance?to=2026-13-01",
		"/api/v1/attendance?date=03/09/2026",
		"/api/v1/attendance?from=2026-03-09&to=2026-03-01",
	} {
		assertStatusCode(t, do(t, s, "GET", target), http.StatusBadRequest)
	}
}

func TestRecentAttendance(t *testing.T) {
	st := &mockStore{}
	s := newTestServer(st)

	assertStatusCode(t, do(t, s, "GET", "/api/v1/attendance/recent"), http.StatusOK)
	if st.lastDays != defaultRecentDays {
		t.Errorf("expected default of %d days, got %d", defaultRecentDays, st.lastDays)
	}

	assertStatusCode(t, do(t, s, "GET", "/api/v1/attendance/recent?days=30"), http.StatusOK)
	if st.lastDays != 30 {
		t.Errorf("expected 30 days, got %d", st.lastDays)
	}

	assertStatusCode(t, do(t, s, "GET", "/api/v1/attendance/recent?days=0"), http.StatusBadRequest)
	assertStatusCode(t, do(t, s, "GET", "/api/v1/attendance/recent?days=abc"), http.StatusBadRequest)
}

func TestTodayStats(t *testing.T) {
	st := &mockStore{today: 2, students: []types.Student{{StudentID: "S001"}, {StudentID: "S002"}, {StudentID: "S003"}}}
	rec := do(t, newTestServer(st), "GET", "/api/v1/stats/today")
	assertStatusCode(t, rec, http.StatusOK)

	var resp TodayResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Date != "2026-03-09" || resp.Present != 2 || resp.Registered != 3 {
		t.Errorf("unexpected stats: %+v", resp)
	}
}

func TestClearAttendance(t *testing.T) {
	st := &mockStore{cleared: 4}
	rec := do(t, newTestServer(st), "DELETE", "/api/v1/attendance")
	assertStatusCode(t, rec, http.StatusOK)

	var resp map[string]int64
	parseJSONResponse(t, rec, &resp)
	if resp["deleted"] != 4 {
		t.Errorf("expected 4 deleted, got %d", resp["deleted"])
	}
}

func TestStoreErrors(t *testing.T) {
	s := newTestServer(&mockStore{err: errors.New("connection reset")})
	for _, tc := range []struct{ method, target string }{
		{"GET", "/api/v1/students"},
		{"GET", "/api/v1/attendance"},
		{"GET", "/api/v1/attendance/recent"},
		{"GET", "/api/v1/stats/today"},
		{"DELETE", "/api/v1/attendance"},
	} {
		rec := do(t, s, tc.method, tc.target)
		assertStatusCode(t, rec, http.StatusInternalServerError)

		var resp map[string]string
		parseJSONResponse(t, rec, &resp)
		if resp["error"] == "" {
			t.Errorf("%s %s: expected error message", tc.method, tc.target)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(&mockStore{})
	assertStatusCode(t, do(t, s, "POST", "/api/v1/attendance"), http.StatusMethodNotAllowed)
}
