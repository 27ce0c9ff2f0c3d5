package mapping

import (
	"errors"
	"fmt"
	"time"

	"github.com/PixPMusic/gopher-learn/internal/config"
	"github.com/PixPMusic/gopher-learn/internal/formula"
	"github.com/PixPMusic/gopher-learn/internal/mode"
	"github.com/PixPMusic/gopher-learn/internal/source"
	"github.com/PixPMusic/gopher-learn/internal/target"
)

var (
	// ErrInvalidModeConfig marks a mapping that was disabled at load because
	// its mode cannot work. The rest of the configuration still loads.
	ErrInvalidModeConfig = mode.ErrInvalidConfig
	// ErrInvalidConfig marks a structural configuration error. A load with
	// any such error is rejected as a whole.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Build compiles a configuration into a plan, resolving every non-virtual
// target through res. Structural errors are all returned joined and no plan
// is produced. Mappings with an invalid mode are left out of the plan and
// reported in disabled.
func Build(cfg *config.Config, res target.Resolver) (plan *Plan, disabled []error, err error) {
	b := &builder{
		res: res,
		plan: &Plan{
			BindingIndex: make(map[string]int),
			Emitters:     make(map[string][]*Mapping),
			Params:       len(cfg.Parameters),
		},
	}
	for i := range cfg.Compartments {
		b.compartment(&cfg.Compartments[i])
	}
	if len(b.errs) > 0 {
		return nil, nil, errors.Join(b.errs...)
	}
	b.plan.Targeting = make([][]*Mapping, len(b.plan.Bindings))
	b.plan.Mappings(func(_ *Compartment, m *Mapping) {
		if m.Binding >= 0 {
			b.plan.Targeting[m.Binding] = append(b.plan.Targeting[m.Binding], m)
		}
	})
	return b.plan, b.disabled, nil
}

type builder struct {
	res      target.Resolver
	plan     *Plan
	errs     []error
	disabled []error
}

func (b *builder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
}

func (b *builder) compartment(cc *config.CompartmentConfig) {
	comp := &Compartment{Virtual: make(map[string][]*Mapping)}
	switch cc.Kind {
	case config.CompartmentController:
		comp.Kind = CompartmentController
	case config.CompartmentMain, "":
		comp.Kind = CompartmentMain
	default:
		b.fail("unknown compartment kind %q", cc.Kind)
		return
	}

	groups := make(map[string]int, len(cc.Groups))
	for _, gc := range cc.Groups {
		if _, dup := groups[gc.Key]; dup || gc.Key == "" {
			b.fail("%s compartment: group key %q missing or duplicate", comp.Kind, gc.Key)
			continue
		}
		cond, err := buildCondition(gc.Activation)
		if err != nil {
			b.fail("group %q: %v", gc.Key, err)
			continue
		}
		groups[gc.Key] = len(comp.Groups)
		comp.Groups = append(comp.Groups, Group{
			Key:             gc.Key,
			Name:            gc.Name,
			Enabled:         !gc.Disabled,
			ControlEnabled:  !gc.ControlDisabled,
			FeedbackEnabled: !gc.FeedbackDisabled,
			Condition:       cond,
		})
	}

	keys := make(map[string]bool, len(cc.Mappings))
	for i := range cc.Mappings {
		mc := &cc.Mappings[i]
		if keys[mc.Key] {
			b.fail("%s compartment: duplicate mapping key %q", comp.Kind, mc.Key)
			continue
		}
		keys[mc.Key] = true
		m := b.mapping(comp.Kind, mc, groups)
		if m == nil {
			continue
		}
		if m.Group >= 0 {
			m.group = &comp.Groups[m.Group]
		}
		comp.Mappings = append(comp.Mappings, m)
		if m.IsVirtualSource() {
			comp.Virtual[m.Source.VirtualID] = append(comp.Virtual[m.Source.VirtualID], m)
		}
		if m.IsVirtualTarget() {
			b.plan.Emitters[m.Target.VirtualID] = append(b.plan.Emitters[m.Target.VirtualID], m)
		}
	}
	b.plan.Compartments = append(b.plan.Compartments, comp)
}

// mapping compiles one mapping. It returns nil when the mapping is left out.
func (b *builder) mapping(kind CompartmentKind, mc *config.MappingConfig, groups map[string]int) *Mapping {
	label := fmt.Sprintf("%s mapping %q", kind, mc.Key)
	if mc.Name != "" {
		label = fmt.Sprintf("%s mapping %q (%s)", kind, mc.Key, mc.Name)
	}
	nerrs := len(b.errs)

	src, err := buildSource(&mc.Source)
	if err != nil {
		b.fail("%s: %v", label, err)
	}
	tgt, err := buildTarget(&mc.Target)
	if err != nil {
		b.fail("%s: %v", label, err)
	}
	cond, err := buildCondition(mc.Activation)
	if err != nil {
		b.fail("%s: %v", label, err)
	}
	group := -1
	if mc.Group != "" {
		g, ok := groups[mc.Group]
		if !ok {
			b.fail("%s: unknown group %q", label, mc.Group)
		}
		group = g
	}
	if len(b.errs) > nerrs {
		return nil
	}

	switch {
	case src.Kind == source.KindVirtual && tgt.Kind == target.KindVirtual:
		b.fail("%s: virtual source to virtual target is not allowed", label)
		return nil
	case tgt.Kind == target.KindVirtual && kind != CompartmentController:
		b.fail("%s: virtual targets belong in the controller compartment", label)
		return nil
	case src.Kind == source.KindVirtual && kind != CompartmentMain:
		b.fail("%s: virtual sources belong in the main compartment", label)
		return nil
	}

	md, err := buildMode(&mc.Mode)
	if err == nil && tgt.Kind != target.KindVirtual {
		err = checkCompatible(&src, &md)
	}
	if err != nil {
		b.disabled = append(b.disabled, fmt.Errorf("%s: %w", label, err))
		return nil
	}

	m := &Mapping{
		Key:             mc.Key,
		Name:            mc.Name,
		Compartment:     kind,
		Source:          src,
		Mode:            md,
		Target:          tgt,
		Binding:         -1,
		Group:           group,
		Enabled:         !mc.Disabled,
		ControlEnabled:  !mc.ControlDisabled,
		FeedbackEnabled: !mc.FeedbackDisabled,
		Condition:       cond,
		Assembler:       source.NewAssembler(),
	}
	m.State.Reset()
	if tgt.Kind != target.KindVirtual {
		idx, err := b.bind(&tgt)
		if err != nil {
			b.fail("%s: %v", label, err)
			return nil
		}
		m.Binding = idx
	}
	return m
}

// bind returns the binding shared by all targets on the same parameter
func (b *builder) bind(t *target.Target) (int, error) {
	key := t.BindingKey()
	if idx, ok := b.plan.BindingIndex[key]; ok {
		if b.plan.Bindings[idx].Kind != t.Kind {
			return 0, fmt.Errorf("parameter %q targeted as both %s and %s", t.Param, b.plan.Bindings[idx].Kind, t.Kind)
		}
		return idx, nil
	}
	if b.res == nil {
		return 0, fmt.Errorf("no resolver for %s", t)
	}
	p, err := b.res.Resolve(t.Kind, t.Param)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", t, err)
	}
	idx := len(b.plan.Bindings)
	b.plan.Bindings = append(b.plan.Bindings, target.NewBinding(key, t.Kind, p))
	b.plan.BindingIndex[key] = idx
	return idx, nil
}

func buildSource(sc *config.SourceConfig) (source.Source, error) {
	var s source.Source
	var err error
	if s.Kind, err = source.ParseKind(sc.Kind); err != nil {
		return s, err
	}
	if s.Character, err = source.ParseCharacter(sc.Character); err != nil {
		return s, err
	}
	if s.Feedback, err = source.ParseFeedbackBehavior(sc.Feedback); err != nil {
		return s, err
	}
	s.Channel, s.Number = source.Any, source.Any
	if sc.Channel != nil {
		s.Channel = *sc.Channel
	}
	if sc.Number != nil {
		s.Number = *sc.Number
	}
	s.FourteenBit = sc.FourteenBit
	s.Registered = sc.Registered
	s.Address = sc.Address
	s.ArgIndex = sc.Arg
	s.RangeMin, s.RangeMax = 0, 1
	if sc.Min != nil {
		s.RangeMin = *sc.Min
	}
	if sc.Max != nil {
		s.RangeMax = *sc.Max
	}
	s.Relative = sc.Relative
	s.VirtualID = sc.VirtualID
	return s, s.Validate()
}

func buildTarget(tc *config.TargetConfig) (target.Target, error) {
	var t target.Target
	var err error
	if t.Kind, err = target.ParseKind(tc.Kind); err != nil {
		return t, err
	}
	t.Param = tc.Param
	t.VirtualID = tc.VirtualID
	return t, t.Validate()
}

func buildCondition(ac *config.ActivationConfig) (Condition, error) {
	if ac == nil {
		return Condition{Kind: ConditionAlways}, nil
	}
	switch ac.Kind {
	case "", "always":
		return Condition{Kind: ConditionAlways}, nil
	case "modifier":
		c := Condition{Kind: ConditionModifier}
		for _, mc := range ac.Modifiers {
			if mc.Param < 0 {
				return c, fmt.Errorf("modifier parameter %d out of range", mc.Param)
			}
			c.Modifiers = append(c.Modifiers, Modifier{Param: mc.Param, On: mc.On})
		}
		return c, nil
	case "bank":
		if ac.BankParam < 0 || ac.Bank < 0 || ac.Bank > 99 {
			return Condition{}, fmt.Errorf("bank condition needs a parameter and a bank 0-99")
		}
		return Condition{Kind: ConditionBank, BankParam: ac.BankParam, Bank: ac.Bank}, nil
	case "expression":
		expr, err := formula.CompileCondition(ac.Expression)
		if err != nil {
			return Condition{}, err
		}
		return Condition{Kind: ConditionExpression, Expr: expr}, nil
	default:
		return Condition{}, fmt.Errorf("unknown activation kind %q", ac.Kind)
	}
}

func buildMode(mc *config.ModeConfig) (mode.Mode, error) {
	m := mode.Default()
	var err error
	if m.Kind, err = mode.ParseKind(mc.Kind); err != nil {
		return m, fmt.Errorf("%w: %v", mode.ErrInvalidConfig, err)
	}
	if m.Takeover, err = mode.ParseTakeover(mc.Takeover); err != nil {
		return m, fmt.Errorf("%w: %v", mode.ErrInvalidConfig, err)
	}
	if m.OutOfRange, err = mode.ParseOutOfRange(mc.OutOfRange); err != nil {
		return m, fmt.Errorf("%w: %v", mode.ErrInvalidConfig, err)
	}
	if mc.SourceInterval != nil {
		m.SourceInterval = *mc.SourceInterval
	}
	if mc.TargetInterval != nil {
		m.TargetInterval = *mc.TargetInterval
	}
	if mc.StepInterval != nil {
		m.StepInterval = *mc.StepInterval
	}
	m.AccelerationWindow = time.Duration(mc.AccelerationWindowMS) * time.Millisecond
	m.AccelerationMax = mc.AccelerationMax
	if mc.TakeoverBlocks > 0 {
		m.TakeoverBlocks = mc.TakeoverBlocks
	}
	m.Rotate = mc.Rotate
	m.Reverse = mc.Reverse
	if mc.MaxJump > 0 {
		m.MaxJump = mc.MaxJump
	}
	if mc.Threshold > 0 {
		m.Threshold = mc.Threshold
	}
	m.FireOnRelease = mc.FireOnRelease
	m.PressDuration = mode.DurationInterval{
		Min: time.Duration(mc.PressMinMS) * time.Millisecond,
		Max: time.Duration(mc.PressMaxMS) * time.Millisecond,
	}
	m.Round = mc.Round
	if mc.ControlFormula != "" {
		if m.ControlFormula, err = formula.Compile(mc.ControlFormula); err != nil {
			return m, fmt.Errorf("%w: %v", mode.ErrInvalidConfig, err)
		}
	}
	if mc.FeedbackFormula != "" {
		if m.FeedbackFormula, err = formula.Compile(mc.FeedbackFormula); err != nil {
			return m, fmt.Errorf("%w: %v", mode.ErrInvalidConfig, err)
		}
	}
	return m, m.Validate()
}

// checkCompatible rejects modes that can never consume what the source emits
func checkCompatible(s *source.Source, m *mode.Mode) error {
	relative := s.Character.IsRelative() || (s.Kind == source.KindOsc && s.Relative)
	switch {
	case s.Kind == source.KindVirtual, s.Kind == source.KindMidiParameterNumber:
		return nil
	case relative && !m.AcceptsRelative():
		return fmt.Errorf("%w: relative source needs a relative mode, got %s", mode.ErrInvalidConfig, m.Kind)
	case !relative && m.AcceptsRelative():
		return fmt.Errorf("%w: relative mode needs a relative source", mode.ErrInvalidConfig)
	}
	return nil
}
