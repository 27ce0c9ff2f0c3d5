package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PixPMusic/gopher-learn/internal/actions"
	"github.com/PixPMusic/gopher-learn/internal/config"
	"github.com/PixPMusic/gopher-learn/internal/engine"
	"github.com/PixPMusic/gopher-learn/internal/event"
	"github.com/PixPMusic/gopher-learn/internal/host"
	"github.com/PixPMusic/gopher-learn/internal/learn"
	"github.com/PixPMusic/gopher-learn/internal/mapping"
	"github.com/PixPMusic/gopher-learn/internal/metrics"
	"github.com/PixPMusic/gopher-learn/internal/midi"
	"github.com/PixPMusic/gopher-learn/internal/osc"
	"github.com/PixPMusic/gopher-learn/internal/target"
)

type options struct {
	configPath   string
	midiIn       string
	midiOut      string
	profile      string
	oscListen    string
	oscFeedback  string
	block        time.Duration
	metricsAddr  string
	learnTarget  string
	learnTimeout time.Duration
	listPorts    bool
	logLevel     string
	logJSON      bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "configuration file (.yaml or .json), default in the user config dir")
	flag.StringVar(&o.midiIn, "midi-in", "", "MIDI input port, in addition to the configured devices")
	flag.StringVar(&o.midiOut, "midi-out", "", "MIDI output port for feedback")
	flag.StringVar(&o.profile, "profile", string(midi.DeviceTypeGeneric), "device profile of -midi-out: classic, colorful or generic")
	flag.StringVar(&o.oscListen, "osc-listen", "", "host:port to receive OSC on, overrides the configuration")
	flag.StringVar(&o.oscFeedback, "osc-feedback", "", "host:port to send OSC feedback to, overrides the configuration")
	flag.DurationVar(&o.block, "block", 5*time.Millisecond, "processing block period")
	flag.StringVar(&o.metricsAddr, "metrics", "", "address to serve Prometheus metrics on, e.g. :9090")
	flag.StringVar(&o.learnTarget, "learn", "", "learn a source for this parameter key or action id, then save the mapping")
	flag.DurationVar(&o.learnTimeout, "learn-timeout", 10*time.Second, "how long to wait for a control while learning")
	flag.BoolVar(&o.listPorts, "list-ports", false, "list MIDI ports and exit")
	flag.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.BoolVar(&o.logJSON, "log-json", false, "log as JSON")
	flag.Parse()

	log, err := newLogger(o.logLevel, o.logJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, log); err != nil {
		log.Error("exiting", slog.Any("error", err))
		os.Exit(1)
	}
}

func newLogger(level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func run(ctx context.Context, o options, log *slog.Logger) error {
	midiManager := midi.NewManager()
	defer midiManager.Close()

	if o.listPorts {
		fmt.Println("MIDI inputs:")
		for _, p := range midiManager.ListInPorts() {
			fmt.Println("  " + p)
		}
		fmt.Println("MIDI outputs:")
		for _, p := range midiManager.ListOutPorts() {
			fmt.Println("  " + p)
		}
		return nil
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	// command line endpoints are not saved with learned mappings
	devices := append([]config.DeviceConfig(nil), cfg.Devices...)
	if o.midiIn != "" || o.midiOut != "" {
		profile, err := midi.ParseDeviceType(o.profile)
		if err != nil {
			return err
		}
		d := config.NewDeviceConfig()
		d.Name, d.InPort, d.OutPort, d.Type = "command line", o.midiIn, o.midiOut, config.DeviceType(profile)
		devices = append(devices, d)
	}
	oscCfg := cfg.OSC
	if o.oscListen != "" {
		oscCfg.Listen = o.oscListen
	}
	if o.oscFeedback != "" {
		oscCfg.Feedback = o.oscFeedback
	}

	bank, err := host.NewBank(paramSpecs(cfg)...)
	if err != nil {
		return fmt.Errorf("declaring parameters: %w", err)
	}
	eng := engine.New(engine.Options{})
	bank.OnChange(eng.Notify)

	store := cfg.ActionStore()
	executor := actions.NewExecutor(midiManager, log)
	for _, err := range executor.ValidateStore(store) {
		log.Warn("invalid action", slog.Any("error", err))
	}
	// running sequences are cancelled and joined on the way out
	actionCtx, cancelActions := context.WithCancel(ctx)
	defer executor.Wait()
	defer cancelActions()
	resolver := target.Router{
		Params:  bank,
		Actions: actions.NewResolver(actionCtx, store, executor),
	}
	ctrl := engine.NewController(eng, resolver, bank.Values, log)
	if _, err := ctrl.Apply(cfg); err != nil {
		return err
	}

	outputs, stops, err := openDevices(midiManager, devices, eng, log)
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()
	if err != nil {
		return err
	}
	defer func() {
		for _, d := range outputs {
			if err := d.Reset(); err != nil {
				log.Warn("device reset failed", slog.Any("error", err))
			}
		}
	}()

	var oscClient *osc.Client
	if oscCfg.Feedback != "" {
		if oscClient, err = osc.NewClient(oscCfg.Feedback); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx, o.block) })
	g.Go(func() error { return ctrl.Run(ctx) })
	g.Go(func() error { return routeFeedback(ctx, eng, outputs, oscClient, log) })
	g.Go(func() error { return reloadOnHangup(ctx, o.configPath, cfg, store, ctrl, log) })
	if oscCfg.Listen != "" {
		g.Go(func() error {
			return osc.Listen(ctx, oscCfg.Listen, func(ev event.Raw) { eng.Submit(ev) }, log)
		})
	}
	if o.metricsAddr != "" {
		reg := metrics.NewRegistry(eng)
		g.Go(func() error { return reg.Serve(ctx, o.metricsAddr, log) })
	}
	if o.learnTarget != "" {
		kind := ""
		if _, ok := store.Name(o.learnTarget); ok {
			kind = target.KindAction.String()
		}
		g.Go(func() error {
			return learnMapping(ctx, eng, ctrl, cfg, o, kind, log)
		})
	}

	log.Info("running", slog.Duration("block", o.block), slog.Int("devices", len(devices)))
	return g.Wait()
}

func paramSpecs(cfg *config.Config) []host.Spec {
	specs := make([]host.Spec, 0, len(cfg.Parameters))
	for _, p := range cfg.Parameters {
		specs = append(specs, host.Spec{
			Key:     p.Key,
			Label:   p.Label,
			Min:     p.Min,
			Max:     p.Max,
			Steps:   p.Steps,
			Initial: p.Initial,
		})
	}
	return specs
}

// openDevices starts listening on every configured input and prepares the
// outputs. A device whose ports are missing is skipped with a warning. The
// returned stop functions end the listeners.
func openDevices(m *midi.Manager, devices []config.DeviceConfig, eng *engine.Engine, log *slog.Logger) (outputs []*midi.Output, stops []func(), err error) {
	for _, d := range devices {
		dlog := log.With(slog.String("device", d.Name))
		if d.InPort != "" {
			stop, err := m.Listen(d.InPort, func(ev event.Raw) { eng.Submit(ev) })
			if err != nil {
				dlog.Warn("cannot listen", slog.String("port", d.InPort), slog.Any("error", err))
			} else {
				stops = append(stops, stop)
			}
		}
		if d.OutPort == "" {
			continue
		}
		profile, err := midi.ParseDeviceType(string(d.Type))
		if err != nil {
			dlog.Warn("using the generic profile", slog.Any("error", err))
		}
		out, err := m.Output(d.OutPort, profile)
		if err != nil {
			dlog.Warn("no feedback output", slog.String("port", d.OutPort), slog.Any("error", err))
			continue
		}
		if err := out.Init(); err != nil {
			return outputs, stops, fmt.Errorf("initializing %s: %w", d.Name, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, stops, nil
}

// routeFeedback sends MIDI feedback to every output and OSC feedback to the
// client
func routeFeedback(ctx context.Context, eng *engine.Engine, outputs []*midi.Output, client *osc.Client, log *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case fb := <-eng.Feedback():
			switch fb.Event.Kind {
			case event.KindMidi:
				for _, out := range outputs {
					if err := out.Feedback(fb.Event); err != nil {
						log.Warn("midi feedback failed", slog.String("mapping", fb.Mapping), slog.Any("error", err))
					}
				}
			case event.KindOsc:
				if client == nil {
					continue
				}
				if err := client.Feedback(fb.Event); err != nil {
					log.Warn("osc feedback failed", slog.String("mapping", fb.Mapping), slog.Any("error", err))
				}
			}
		}
	}
}

// reloadOnHangup re-reads the configuration on SIGHUP. Parameter
// declarations cannot change while running.
func reloadOnHangup(ctx context.Context, path string, running *config.Config, store *actions.ActionStore, ctrl *engine.Controller, log *slog.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
		}
		cfg, err := config.Load(path)
		if err != nil {
			log.Error("reload failed", slog.Any("error", err))
			continue
		}
		if !sameParameters(running, cfg) {
			log.Error("reload rejected: parameter declarations changed, restart to apply")
			continue
		}
		store.Replace(cfg.Actions, cfg.ActionGroups)
		if _, err := ctrl.Apply(cfg); err != nil {
			log.Error("reload rejected", slog.Any("error", err))
		}
	}
}

func sameParameters(a, b *config.Config) bool {
	if len(a.Parameters) != len(b.Parameters) {
		return false
	}
	for i := range a.Parameters {
		if a.Parameters[i].Key != b.Parameters[i].Key {
			return false
		}
	}
	return true
}

// learnMapping arms the learn detector once and adds a mapping for what it
// caught to the main compartment
func learnMapping(ctx context.Context, eng *engine.Engine, ctrl *engine.Controller, cfg *config.Config, o options, kind string, log *slog.Logger) error {
	llog := log.With(slog.String("learn", o.learnTarget))
	if !eng.Learn(learn.Request{ID: o.learnTarget, Timeout: o.learnTimeout}) {
		return errors.New("learn request dropped")
	}
	llog.Info("move a control", slog.Duration("timeout", o.learnTimeout))

	var r learn.Result
	select {
	case <-ctx.Done():
		eng.CancelLearn()
		return nil
	case r = <-eng.LearnResults():
	}
	if r.Status != learn.StatusLearned {
		llog.Warn("nothing learned", slog.String("status", r.Status.String()))
		return nil
	}

	mc := mapping.Learned(&r.Source, kind, o.learnTarget)
	cfg.AddMapping(config.CompartmentMain, mc)
	llog.Info("learned", slog.String("source", r.Source.String()), slog.String("mapping", mc.Key))
	if err := cfg.Save(o.configPath); err != nil {
		return fmt.Errorf("saving learned mapping: %w", err)
	}
	_, err := ctrl.Apply(cfg)
	return err
}
