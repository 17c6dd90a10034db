package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andresmejia3/rollcall/internal/store"
	"github.com/andresmejia3/rollcall/internal/types"
)

const (
	defaultRecentDays = 7
	maxRecentDays     = 366
)

// AttendanceResponse is returned by the attendance listing endpoints.
type AttendanceResponse struct {
	Records []types.AttendanceEvent `json:"records"`
	Count   int                     `json:"count"`
}

// StudentsResponse is returned by GET /students.
type StudentsResponse struct {
	Students []types.Student `json:"students"`
	Count    int             `json:"count"`
}

// TodayResponse is returned by GET /stats/today.
type TodayResponse struct {
	Date       string `json:"date"`
	Present    int    `json:"present"`
	Registered int    `json:"registered"`
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, what string, err error) {
	s.log.Error(what, "path", sanitizeForLog(r.URL.Path), "error", err)
	respondError(w, http.StatusInternalServerError, what)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.store.ListStudents(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list students", err)
		return
	}
	if students == nil {
		students = []types.Student{}
	}
	respondJSON(w, http.StatusOK, StudentsResponse{Students: students, Count: len(students)})
}

func (s *Server) searchAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{StudentID: strings.TrimSpace(q.Get("student_id"))}

	var err error
	if f.From, err = parseDate(q.Get("from")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
		return
	}
	if f.To, err = parseDate(q.Get("to")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
		return
	}
	if d := q.Get("date"); d != "" {
		day, err := parseDate(d)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		f.From, f.To = day, day
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		respondError(w, http.StatusBadRequest, "to date is before from date")
		return
	}

	records, err := s.store.SearchAttendance(r.Context(), f)
	if err != nil {
		s.internalError(w, r, "failed to search attendance", err)
		return
	}
	respondAttendance(w, records)
}

func (s *Server) recentAttendance(w http.ResponseWriter, r *http.Request) {
	days := defaultRecentDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRecentDays {
			respondError(w, http.StatusBadRequest, "days must be an integer between 1 and 366")
			return
		}
		days = n
	}

	records, err := s.store.RecentAttendance(r.Context(), days, s.now())
	if err != nil {
		s.internalError(w, r, "failed to load recent attendance", err)
		return
	}
	respondAttendance(w, records)
}

func (s *Server) clearAttendance(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.ClearAttendance(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to clear attendance", err)
		return
	}
	s.log.Warn("attendance cleared via API", "deleted", n, "remote", sanitizeForLog(r.RemoteAddr))
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) todayStats(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	present, err := s.store.TodayCount(r.Context(), now)
	if err != nil {
		s.internalError(w, r, "failed to count attendance", err)
		return
	}
	students, err := s.store.ListStudents(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list students", err)
		return
	}
	respondJSON(w, http.StatusOK, TodayResponse{
		Date:       now.Format(time.DateOnly),
		Present:    present,
		Registered: len(students),
	})
}

func respondAttendance(w http.ResponseWriter, records []types.AttendanceEvent) {
	if records == nil {
		records = []types.AttendanceEvent{}
	}
	respondJSON(w, http.StatusOK, AttendanceResponse{Records: records, Count: len(records)})
}

// parseDate accepts an empty string (zero time) or YYYY-MM-DD in local time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.Local)
}
