package push

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	want := map[State]string{
		StateOpened:     "opened",
		StateInfoSet:    "infoset",
		StateConnecting: "connecting",
		StateStreaming:  "streaming",
		StateClosing:    "closing",
		StateClosed:     "closed",
		StateFailed:     "failed",
		State(42):       "unknown",
	}
	for s, str := range want {
		require.Equal(t, str, s.String())
	}
}

func TestStateTransitions(t *testing.T) {
	for _, s := range []State{StateOpened, StateInfoSet} {
		require.True(t, s.canSetInfo(), s)
		require.True(t, s.canConnect(), s)
		require.False(t, s.terminal(), s)
	}
	for _, s := range []State{StateConnecting, StateStreaming} {
		require.False(t, s.canSetInfo(), s)
		require.False(t, s.canConnect(), s)
		require.False(t, s.terminal(), s)
	}
	for _, s := range []State{StateClosing, StateClosed, StateFailed} {
		require.False(t, s.canSetInfo(), s)
		require.False(t, s.canConnect(), s)
		require.True(t, s.terminal(), s)
	}
}
