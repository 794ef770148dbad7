package exam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "enrolling", StateEnrolling.String())
	assert.Equal(t, "capturing", StateCapturing.String())
	assert.Equal(t, "submitted", StateSubmitted.String())
	assert.Equal(t, "reported", StateReported.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestTransition_HappyPath(t *testing.T) {
	sess := &Session{state: StateEnrolling}

	require.NoError(t, sess.transition(StateEnrolling, StateCapturing))
	assert.Equal(t, StateCapturing, sess.State())

	require.NoError(t, sess.transition(StateCapturing, StateSubmitted))
	assert.Equal(t, StateSubmitted, sess.State())
}

func TestTransition_RejectsWrongCurrentState(t *testing.T) {
	sess := &Session{state: StateSubmitted}

	err := sess.transition(StateCapturing, StateSubmitted)
	require.ErrorIs(t, err, ErrSessionState)
	assert.Equal(t, StateSubmitted, sess.State(), "a rejected transition must not change state")
}

func TestTransition_ErrorNamesStates(t *testing.T) {
	sess := &Session{state: StateReported}

	err := sess.transition(StateSubmitted, StateReported)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submitted -> reported")
	assert.Contains(t, err.Error(), "while reported")
}

func TestElapsed(t *testing.T) {
	sess := &Session{StartedAt: time.Now().Add(-2 * time.Second)}
	elapsed := sess.Elapsed()
	assert.GreaterOrEqual(t, elapsed, 2.0)
	assert.Less(t, elapsed, 10.0)
}
