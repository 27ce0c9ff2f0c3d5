package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PixPMusic/gopher-learn/internal/control"
	"github.com/PixPMusic/gopher-learn/internal/event"
)

func cc(ch, num, val uint8) event.Raw {
	return event.MidiEvent(event.StatusControlChange, ch, num, val)
}

func TestDecodeControlChangeCharacters(t *testing.T) {
	tests := []struct {
		name      string
		character Character
		value     uint8
		want      control.Value
		ok        bool
	}{
		{"range", CharacterRange, 64, control.Discrete(64, 127), true},
		{"button pressed", CharacterButton, 10, control.Absolute(1), true},
		{"button released", CharacterButton, 0, control.Absolute(0), true},
		{"relative1 up", CharacterRelative1, 1, control.Relative(1), true},
		{"relative1 down", CharacterRelative1, 127, control.Relative(-1), true},
		{"relative1 none", CharacterRelative1, 0, control.Value{}, false},
		{"relative2 up", CharacterRelative2, 66, control.Relative(2), true},
		{"relative2 down", CharacterRelative2, 63, control.Relative(-1), true},
		{"relative2 none", CharacterRelative2, 64, control.Value{}, false},
		{"relative3 up", CharacterRelative3, 3, control.Relative(3), true},
		{"relative3 down", CharacterRelative3, 65, control.Relative(-1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Source{Kind: KindMidiControlChange, Channel: 0, Number: 7, Character: tt.character}
			asm := NewAssembler()
			got, ok := s.Decode(cc(0, 7, tt.value), &asm, 0)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDecodeMismatch(t *testing.T) {
	s := Source{Kind: KindMidiControlChange, Channel: 2, Number: 7}
	asm := NewAssembler()

	_, ok := s.Decode(cc(0, 7, 1), &asm, 0)
	assert.False(t, ok, "wrong channel")
	_, ok = s.Decode(cc(2, 8, 1), &asm, 0)
	assert.False(t, ok, "wrong controller")
	_, ok = s.Decode(event.MidiEvent(event.StatusNoteOn, 2, 7, 1), &asm, 0)
	assert.False(t, ok, "wrong status")
	_, ok = s.Decode(event.OscEvent("/x", event.FloatArg(1)), &asm, 0)
	assert.False(t, ok, "wrong protocol")

	anyCh := Source{Kind: KindMidiControlChange, Channel: Any, Number: Any}
	_, ok = anyCh.Decode(cc(9, 100, 3), &asm, 0)
	assert.True(t, ok)
}

func TestDecodeFourteenBit(t *testing.T) {
	s := Source{Kind: KindMidiControlChange, Channel: 0, Number: 1, FourteenBit: true}
	asm := NewAssembler()

	_, ok := s.Decode(cc(0, 1, 0x40), &asm, 0)
	require.False(t, ok, "MSB alone must not emit")
	require.True(t, asm.Pending())

	v, ok := s.Decode(cc(0, 33, 0x00), &asm, time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, control.Discrete(0x40<<7, 16383), v)
	assert.False(t, asm.Pending())

	t.Run("timeout discards silently", func(t *testing.T) {
		asm := NewAssembler()
		_, ok := s.Decode(cc(0, 1, 0x7F), &asm, 0)
		require.False(t, ok)
		_, ok = s.Decode(cc(0, 33, 0x7F), &asm, 20*time.Millisecond)
		assert.False(t, ok)
		assert.False(t, asm.Pending())
	})

	t.Run("expire on tick", func(t *testing.T) {
		asm := NewAssembler()
		_, _ = s.Decode(cc(0, 1, 0x7F), &asm, 0)
		asm.Expire(time.Millisecond)
		assert.True(t, asm.Pending())
		asm.Expire(time.Second)
		assert.False(t, asm.Pending())
	})
}

func TestDecodeParameterNumber(t *testing.T) {
	s := Source{Kind: KindMidiParameterNumber, Channel: 0, Number: 130, FourteenBit: true}
	asm := NewAssembler()

	for _, ev := range []event.Raw{cc(0, 99, 1), cc(0, 98, 2)} {
		_, ok := s.Decode(ev, &asm, 0)
		require.False(t, ok)
	}
	_, ok := s.Decode(cc(0, 6, 0x7F), &asm, 0)
	require.False(t, ok)
	v, ok := s.Decode(cc(0, 38, 0x7F), &asm, 0)
	require.True(t, ok)
	assert.Equal(t, control.Discrete(16383, 16383), v)

	v, ok = s.Decode(cc(0, 96, 0), &asm, 0)
	require.True(t, ok)
	assert.Equal(t, control.Relative(1), v)

	other := Source{Kind: KindMidiParameterNumber, Channel: 0, Number: 131}
	_, ok = other.Decode(cc(0, 6, 3), &asm, 0)
	assert.False(t, ok, "different parameter selected")
}

func TestParameterNumberMatchesSelectedOnly(t *testing.T) {
	s := Source{Kind: KindMidiParameterNumber, Channel: 0, Number: 130}
	asm := NewAssembler()

	assert.False(t, s.Matches(cc(0, 6, 10), &asm), "nothing selected yet")
	for _, ev := range []event.Raw{cc(0, 99, 1), cc(0, 98, 3)} {
		assert.True(t, s.Matches(ev, &asm), "selection always reaches the assembler")
		s.Decode(ev, &asm, 0)
	}
	assert.False(t, s.Matches(cc(0, 6, 10), &asm), "parameter 131 is selected")
	assert.False(t, s.Matches(cc(0, 96, 0), &asm))

	s.Decode(cc(0, 98, 2), &asm, 0)
	assert.True(t, s.Matches(cc(0, 6, 10), &asm))
	assert.True(t, s.Matches(cc(0, 97, 0), &asm))

	rpn := Source{Kind: KindMidiParameterNumber, Channel: 0, Number: 130, Registered: true}
	assert.False(t, rpn.Matches(cc(0, 6, 10), &asm), "an NRPN is selected, not an RPN")
}

func TestDecodeNotesAndPitchBend(t *testing.T) {
	asm := NewAssembler()
	note := Source{Kind: KindMidiNoteVelocity, Channel: Any, Number: 60, Character: CharacterButton}

	v, ok := note.Decode(event.MidiEvent(event.StatusNoteOn, 0, 60, 100), &asm, 0)
	require.True(t, ok)
	assert.Equal(t, control.Absolute(1), v)
	v, ok = note.Decode(event.MidiEvent(event.StatusNoteOff, 0, 60, 64), &asm, 0)
	require.True(t, ok)
	assert.Equal(t, control.Absolute(0), v)

	bend := Source{Kind: KindMidiPitchBend, Channel: 0}
	v, ok = bend.Decode(event.MidiEvent(event.StatusPitchBend, 0, 0x00, 0x40), &asm, 0)
	require.True(t, ok)
	assert.InDelta(t, 8192.0/16383.0, v.Unit(), 1e-9)
}

func TestDecodeOsc(t *testing.T) {
	asm := NewAssembler()
	s := Source{Kind: KindOsc, Address: "/mixer/*/fader", ArgIndex: 1, RangeMin: -1, RangeMax: 1}

	v, ok := s.Decode(event.OscEvent("/mixer/3/fader", event.StringArg("x"), event.FloatArg(0)), &asm, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.5, v.Unit(), 1e-9)

	_, ok = s.Decode(event.OscEvent("/mixer/3/fader", event.FloatArg(0)), &asm, 0)
	assert.False(t, ok, "argument index out of range")

	_, ok = s.Decode(event.OscEvent("/mixer/3/4/fader", event.FloatArg(0), event.FloatArg(0)), &asm, 0)
	assert.False(t, ok, "star does not cross segments")

	rel := Source{Kind: KindOsc, Address: "/enc", RangeMin: 0, RangeMax: 1, Relative: true}
	v, ok = rel.Decode(event.OscEvent("/enc", event.IntArg(-2)), &asm, 0)
	require.True(t, ok)
	assert.Equal(t, control.Relative(-2), v)
}

func TestMatchAddress(t *testing.T) {
	tests := []struct {
		pattern, addr string
		want          bool
	}{
		{"/a/b", "/a/b", true},
		{"/a/b", "/a/c", false},
		{"/a/*", "/a/anything", true},
		{"/a/*", "/a/b/c", false},
		{"/a/?x", "/a/yx", true},
		{"/a/*/c", "/a/xy/c", true},
		{"/*", "/", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchAddress(tt.pattern, tt.addr), "%s vs %s", tt.pattern, tt.addr)
	}
}

func TestEncodeClampsToRepresentable(t *testing.T) {
	s := Source{Kind: KindMidiControlChange, Channel: 1, Number: 7}
	out := s.Encode(nil, 1.7)
	require.Len(t, out, 1)
	assert.Equal(t, cc(1, 7, 127), out[0])

	button := Source{Kind: KindMidiNoteVelocity, Channel: 0, Number: 36, Character: CharacterButton}
	out = button.Encode(nil, 0.4)
	require.Len(t, out, 1)
	assert.Equal(t, uint8(0), out[0].Midi.Data2)
	out = button.Encode(out[:0], 0.6)
	assert.Equal(t, uint8(127), out[0].Midi.Data2)

	wide := Source{Kind: KindMidiControlChange, Channel: 0, Number: 1, FourteenBit: true}
	out = wide.Encode(nil, 1)
	require.Len(t, out, 2)
	assert.Equal(t, cc(0, 1, 127), out[0])
	assert.Equal(t, cc(0, 33, 127), out[1])

	anyNumber := Source{Kind: KindMidiControlChange, Channel: 0, Number: Any}
	assert.Empty(t, anyNumber.Encode(nil, 1))

	osc := Source{Kind: KindOsc, Address: "/vol", ArgIndex: 0, RangeMin: 0, RangeMax: 10}
	out = osc.Encode(nil, 0.5)
	require.Len(t, out, 1)
	assert.True(t, out[0].Equal(event.OscEvent("/vol", event.FloatArg(5))), out[0].String())

	second := Source{Kind: KindOsc, Address: "/mix", ArgIndex: 1, RangeMin: 0, RangeMax: 1, Character: CharacterButton}
	out = second.Encode(nil, 1)
	require.Len(t, out, 1)
	assert.Equal(t, []event.Arg{{}, event.BoolArg(true)}, out[0].Osc.Arguments())
	allocs := testing.AllocsPerRun(100, func() { out = second.Encode(out[:0], 0.3) })
	assert.Zero(t, allocs)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := Source{Kind: KindMidiPitchBend, Channel: 3}
	asm := NewAssembler()
	for _, v := range []float64{0, 0.25, 0.5, 1} {
		out := s.Encode(nil, v)
		require.Len(t, out, 1)
		got, ok := s.Decode(out[0], &asm, 0)
		require.True(t, ok)
		assert.InDelta(t, v, got.Unit(), 1.0/16383)
	}
}

func TestFromEvent(t *testing.T) {
	s, ok := FromEvent(cc(4, 21, 90))
	require.True(t, ok)
	assert.Equal(t, KindMidiControlChange, s.Kind)
	assert.Equal(t, 4, s.Channel)
	assert.Equal(t, 21, s.Number)
	assert.NoError(t, s.Validate())
	assert.True(t, s.Matches(cc(4, 21, 0), nil))

	s, ok = FromEvent(event.OscEvent("/btn/1", event.BoolArg(true)))
	require.True(t, ok)
	assert.Equal(t, CharacterButton, s.Character)
	assert.NoError(t, s.Validate())
}

func TestValidate(t *testing.T) {
	bad := []Source{
		{Kind: KindMidiControlChange, Channel: 16, Number: 1},
		{Kind: KindMidiControlChange, Channel: 0, Number: 40, FourteenBit: true},
		{Kind: KindMidiParameterNumber, Channel: 0, Number: Any},
		{Kind: KindOsc, Address: "noslash", RangeMax: 1},
		{Kind: KindOsc, Address: "/x"},
		{Kind: KindVirtual},
		{},
	}
	for _, s := range bad {
		assert.ErrorIs(t, s.Validate(), ErrInvalidSource, "%+v", s)
	}
}
