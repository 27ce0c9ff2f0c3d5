package mapping

import (
	"github.com/PixPMusic/gopher-learn/internal/config"
	"github.com/PixPMusic/gopher-learn/internal/source"
)

// SourceConfig is the inverse of buildSource: it renders a source, such as a
// learned one, as configuration. "Any" channels and numbers are omitted.
func SourceConfig(s *source.Source) config.SourceConfig {
	sc := config.SourceConfig{
		Kind:        s.Kind.String(),
		FourteenBit: s.FourteenBit,
		Registered:  s.Registered,
		Address:     s.Address,
		Arg:         s.ArgIndex,
		Relative:    s.Relative,
		VirtualID:   s.VirtualID,
	}
	if s.Character != source.CharacterRange {
		sc.Character = s.Character.String()
	}
	switch s.Feedback {
	case source.FeedbackPreventEcho:
		sc.Feedback = "prevent_echo"
	case source.FeedbackSendAfterControl:
		sc.Feedback = "send_after_control"
	}
	if s.Kind.IsMidi() {
		if s.Channel != source.Any {
			ch := s.Channel
			sc.Channel = &ch
		}
		if s.Number != source.Any {
			n := s.Number
			sc.Number = &n
		}
	}
	if s.Kind == source.KindOsc && (s.RangeMin != 0 || s.RangeMax != 1) {
		lo, hi := s.RangeMin, s.RangeMax
		sc.Min, sc.Max = &lo, &hi
	}
	return sc
}

// Learned builds the configuration of a mapping from a learned source to a
// target parameter
func Learned(s *source.Source, targetKind, param string) config.MappingConfig {
	mc := config.NewMappingConfig("learned " + s.String())
	mc.Source = SourceConfig(s)
	mc.Target = config.TargetConfig{Kind: targetKind, Param: param}
	return mc
}
