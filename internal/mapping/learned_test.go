package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PixPMusic/gopher-learn/internal/event"
	"github.com/PixPMusic/gopher-learn/internal/source"
)

func TestSourceConfigRoundTrip(t *testing.T) {
	for _, ev := range []event.Raw{
		event.MidiEvent(event.StatusControlChange, 3, 21, 64),
		event.MidiEvent(event.StatusNoteOn, 0, 60, 100),
		event.MidiEvent(event.StatusPitchBend, 15, 0, 64),
		event.OscEvent("/mute", event.BoolArg(true)),
		event.OscEvent("/fader/1", event.FloatArg(0.3)),
	} {
		learned, ok := source.FromEvent(ev)
		require.True(t, ok, ev.String())

		sc := SourceConfig(&learned)
		rebuilt, err := buildSource(&sc)
		require.NoError(t, err, ev.String())
		assert.Equal(t, learned, rebuilt, ev.String())
		assert.True(t, rebuilt.Matches(ev, nil), ev.String())
	}
}

func TestLearned(t *testing.T) {
	s, ok := source.FromEvent(event.MidiEvent(event.StatusControlChange, 0, 7, 1))
	require.True(t, ok)

	mc := Learned(&s, "", "volume")
	assert.NotEmpty(t, mc.Key)
	assert.Equal(t, "cc", mc.Source.Kind)
	require.NotNil(t, mc.Source.Number)
	assert.Equal(t, 7, *mc.Source.Number)
	assert.Equal(t, "volume", mc.Target.Param)
}
