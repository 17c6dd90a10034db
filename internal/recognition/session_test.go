package recognition

import (
	"errors"
	"testing"

	"github.com/andresmejia3/rollcall/internal/identity"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, threshold float64, p prediction) *Session {
	t.Helper()
	mapping, err := identity.Build([]string{"S001", "S002"})
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Threshold = threshold
	return NewSession("s", cfg, &fakeClassifier{script: []prediction{p}}, mapping)
}

func TestSessionClassify(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		pred      prediction
		outcome   types.Outcome
		identity  string
	}{
		{"below threshold", 65, prediction{label: 1, distance: 64.9}, types.OutcomeMatch, "S002"},
		{"at threshold", 65, prediction{label: 1, distance: 65}, types.OutcomeNoMatch, types.UnknownIdentity},
		{"above threshold regardless of label", 65, prediction{label: 0, distance: 70}, types.OutcomeNoMatch, types.UnknownIdentity},
		{"unmapped label", 65, prediction{label: 5, distance: 10}, types.OutcomeFailed, ""},
		{"classifier error", 65, prediction{err: errors.New("boom")}, types.OutcomeFailed, ""},
		{"zero threshold accepts nothing", 0, prediction{label: 0, distance: 0}, types.OutcomeNoMatch, types.UnknownIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, tt.threshold, tt.pred)
			res := s.Classify(faceCrop())
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.identity, res.Identity)
			if tt.outcome == types.OutcomeFailed {
				assert.Error(t, res.Err)
			} else {
				assert.NoError(t, res.Err)
			}
		})
	}
}

func TestSessionUnmappedLabelWrapsError(t *testing.T) {
	s := newTestSession(t, 65, prediction{label: 9, distance: 1})
	res := s.Classify(faceCrop())
	assert.ErrorIs(t, res.Err, identity.ErrUnknownLabel)
}

func TestSessionAdjustThresholdClamps(t *testing.T) {
	s := newTestSession(t, 95, prediction{})
	assert.InDelta(t, 100.0, s.AdjustThreshold(1), 1e-9)
	assert.InDelta(t, 100.0, s.AdjustThreshold(1), 1e-9)

	s = newTestSession(t, 5, prediction{})
	assert.InDelta(t, 0.0, s.AdjustThreshold(-1), 1e-9)
	assert.InDelta(t, 0.0, s.AdjustThreshold(-1), 1e-9)
	assert.InDelta(t, 5.0, s.AdjustThreshold(1), 1e-9)
}

func TestSessionClampsInitialThreshold(t *testing.T) {
	s := newTestSession(t, 140, prediction{})
	assert.InDelta(t, 100.0, s.Threshold(), 1e-9)
}

func TestCommandForKey(t *testing.T) {
	tests := map[int]Command{
		-1:  CommandNone,
		'q': CommandQuit,
		'Q': CommandQuit,
		27:  CommandQuit,
		'+': CommandThresholdUp,
		'=': CommandThresholdUp,
		'-': CommandThresholdDown,
		'_': CommandThresholdDown,
		'x': CommandNone,
	}
	// Some HighGUI backends set modifier bits above the low byte.
	tests[0x100000|'q'] = CommandQuit

	for key, want := range tests {
		assert.Equal(t, want, CommandForKey(key), "key %d", key)
	}
}
