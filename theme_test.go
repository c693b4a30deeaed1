package relay_test

import (
	"testing"

	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
)

func TestTheme_StateColor(t *testing.T) {
	t.Parallel()

	theme := relay.DefaultTheme()

	tests := []struct {
		state relay.State
		want  int
	}{
		{relay.StateDone, theme.Done},
		{relay.StateError, theme.Failed},
		{relay.StateAborted, theme.Stopped},
		{relay.StateRunning, theme.Muted},
		{relay.StateIdle, theme.Muted},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, theme.StateColor(tt.state))
		})
	}
}

func TestDefaultTheme_EndMarkersAreDistinct(t *testing.T) {
	t.Parallel()

	theme := relay.DefaultTheme()

	assert.NotEqual(t, theme.Done, theme.Failed)
	assert.NotEqual(t, theme.Failed, theme.Stopped)
	assert.NotEqual(t, theme.Stopped, theme.Muted)
}
