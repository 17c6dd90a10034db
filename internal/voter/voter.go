// Package voter confirms an identity only after it has been seen on several consecutive frames.
package voter

import "github.com/andresmejia3/rollcall/internal/types"

const (
	// DefaultCapacity is how many recent results the history keeps.
	DefaultCapacity = 5
	// DefaultWindow is how many of the most recent results must agree.
	DefaultWindow = 3
)

// History is a fixed-capacity ring buffer of identities. When full, Push evicts the oldest entry.
type History struct {
	buf   []string
	start int
	size  int
}

// NewHistory returns an empty history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]string, capacity)}
}

// Push appends id, evicting the oldest entry if the history is full.
func (h *History) Push(id string) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = id
		h.size++
		return
	}
	h.buf[h.start] = id
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of entries currently held.
func (h *History) Len() int { return h.size }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }

// Recent returns up to n of the newest entries, oldest first.
func (h *History) Recent(n int) []string {
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	first := h.size - n
	for i := 0; i < n; i++ {
		out[i] = h.buf[(h.start+first+i)%len(h.buf)]
	}
	return out
}

// Reset drops every entry.
func (h *History) Reset() {
	h.start, h.size = 0, 0
}

// Voter keeps the recognition history of one session.
type Voter struct {
	history *History
	window  int
}

// New returns a voter with the given history capacity and agreement window.
// A window larger than the capacity is clamped to it.
func New(capacity, window int) *Voter {
	h := NewHistory(capacity)
	if window < 1 {
		window = 1
	}
	if window > h.Cap() {
		window = h.Cap()
	}
	return &Voter{history: h, window: window}
}

// NewDefault returns a voter with capacity 5 and window 3.
func NewDefault() *Voter {
	return New(DefaultCapacity, DefaultWindow)
}

// Observe records id and returns it as confirmed when the newest window entries are identical,
// non-empty and not unknown. Unknown is kept in the history so it breaks streaks.
func (v *Voter) Observe(id string) (string, bool) {
	v.history.Push(id)
	return v.Confirmed()
}

// Confirmed evaluates the current history without adding to it.
func (v *Voter) Confirmed() (string, bool) {
	recent := v.history.Recent(v.window)
	if len(recent) < v.window {
		return "", false
	}
	first := recent[0]
	if first == "" || first == types.UnknownIdentity {
		return "", false
	}
	for _, id := range recent[1:] {
		if id != first {
			return "", false
		}
	}
	return first, true
}

// History exposes the underlying buffer for inspection.
func (v *Voter) History() *History { return v.history }

// Window returns the number of agreeing entries needed for confirmation.
func (v *Voter) Window() int { return v.window }
