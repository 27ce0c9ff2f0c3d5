package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PixPMusic/gopher-learn/internal/actions"
	"github.com/PixPMusic/gopher-learn/internal/control"
	"github.com/google/uuid"
	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the schema version written by Save
const CurrentVersion = "1.0"

// supportedVersions accepts every 1.x schema; newer minor versions may carry
// fields we do not know, which are ignored
var supportedVersions = func() version.Constraints {
	c, err := version.NewConstraint(">= 1.0, < 2.0")
	if err != nil {
		panic(err)
	}
	return c
}()

// DeviceType selects the controller profile used for init and reset messages
type DeviceType string

const (
	DeviceTypeClassic  DeviceType = "classic"  // Launchpad S
	DeviceTypeColorful DeviceType = "colorful" // Launchpad Mini Mk3
	DeviceTypeGeneric  DeviceType = "generic"  // Any other controller
)

// DeviceConfig holds configuration for a single MIDI device
type DeviceConfig struct {
	ID      string     `json:"id" yaml:"id"`             // Unique identifier
	Name    string     `json:"name" yaml:"name"`         // User-friendly name
	InPort  string     `json:"in_port" yaml:"in_port"`   // MIDI input port name
	OutPort string     `json:"out_port" yaml:"out_port"` // MIDI output port name, empty for no feedback
	Type    DeviceType `json:"type" yaml:"type"`
}

// NewDeviceConfig creates a new device config with a generated ID
func NewDeviceConfig() DeviceConfig {
	return DeviceConfig{
		ID:   uuid.New().String(),
		Name: "New Device",
		Type: DeviceTypeGeneric,
	}
}

// OSCConfig holds the OSC endpoints
type OSCConfig struct {
	Listen   string `json:"listen,omitempty" yaml:"listen,omitempty"`     // host:port to receive on
	Feedback string `json:"feedback,omitempty" yaml:"feedback,omitempty"` // host:port to send feedback to
}

// ParameterConfig declares a host parameter
type ParameterConfig struct {
	Key     string  `json:"key" yaml:"key"`
	Label   string  `json:"label,omitempty" yaml:"label,omitempty"`
	Min     float64 `json:"min,omitempty" yaml:"min,omitempty"` // native range, for display
	Max     float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Steps   int     `json:"steps,omitempty" yaml:"steps,omitempty"` // 0 for continuous
	Initial float64 `json:"initial,omitempty" yaml:"initial,omitempty"`
}

// SourceConfig describes a mapping source. Channel and Number are "any" when
// omitted.
type SourceConfig struct {
	Kind        string `json:"kind" yaml:"kind"`
	Channel     *int   `json:"channel,omitempty" yaml:"channel,omitempty"` // 0-15
	Number      *int   `json:"number,omitempty" yaml:"number,omitempty"`
	FourteenBit bool   `json:"fourteen_bit,omitempty" yaml:"fourteen_bit,omitempty"`
	Registered  bool   `json:"registered,omitempty" yaml:"registered,omitempty"`
	Character   string `json:"character,omitempty" yaml:"character,omitempty"`
	Feedback    string `json:"feedback,omitempty" yaml:"feedback,omitempty"`

	Address  string   `json:"address,omitempty" yaml:"address,omitempty"`
	Arg      int      `json:"arg,omitempty" yaml:"arg,omitempty"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"` // OSC value range, default 0-1
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Relative bool     `json:"relative,omitempty" yaml:"relative,omitempty"`

	VirtualID string `json:"virtual_id,omitempty" yaml:"virtual_id,omitempty"`
}

// ModeConfig describes the transform of a mapping. Zero values mean defaults.
type ModeConfig struct {
	Kind           string            `json:"kind,omitempty" yaml:"kind,omitempty"`
	SourceInterval *control.Interval `json:"source_interval,omitempty" yaml:"source_interval,omitempty"`
	TargetInterval *control.Interval `json:"target_interval,omitempty" yaml:"target_interval,omitempty"`
	StepInterval   *control.Interval `json:"step_interval,omitempty" yaml:"step_interval,omitempty"`

	AccelerationWindowMS int `json:"acceleration_window_ms,omitempty" yaml:"acceleration_window_ms,omitempty"`
	AccelerationMax      int `json:"acceleration_max,omitempty" yaml:"acceleration_max,omitempty"`

	Takeover       string `json:"takeover,omitempty" yaml:"takeover,omitempty"`
	TakeoverBlocks int    `json:"takeover_blocks,omitempty" yaml:"takeover_blocks,omitempty"`

	Rotate  bool    `json:"rotate,omitempty" yaml:"rotate,omitempty"`
	Reverse bool    `json:"reverse,omitempty" yaml:"reverse,omitempty"`
	MaxJump float64 `json:"max_jump,omitempty" yaml:"max_jump,omitempty"` // 0 disables the guard

	Threshold     float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	FireOnRelease bool    `json:"fire_on_release,omitempty" yaml:"fire_on_release,omitempty"`
	PressMinMS    int     `json:"press_min_ms,omitempty" yaml:"press_min_ms,omitempty"`
	PressMaxMS    int     `json:"press_max_ms,omitempty" yaml:"press_max_ms,omitempty"`

	OutOfRange string `json:"out_of_range,omitempty" yaml:"out_of_range,omitempty"`
	Round      bool   `json:"round,omitempty" yaml:"round,omitempty"`

	ControlFormula  string `json:"control_formula,omitempty" yaml:"control_formula,omitempty"`
	FeedbackFormula string `json:"feedback_formula,omitempty" yaml:"feedback_formula,omitempty"`
}

// TargetConfig describes what a mapping controls
type TargetConfig struct {
	Kind      string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Param     string `json:"param,omitempty" yaml:"param,omitempty"` // parameter key or action id
	VirtualID string `json:"virtual_id,omitempty" yaml:"virtual_id,omitempty"`
}

// ModifierConfig is one modifier of a modifier condition
type ModifierConfig struct {
	Param int  `json:"param" yaml:"param"`
	On    bool `json:"on" yaml:"on"`
}

// ActivationConfig is an activation condition. Kind is one of always,
// modifier, bank, expression.
type ActivationConfig struct {
	Kind       string           `json:"kind,omitempty" yaml:"kind,omitempty"`
	Modifiers  []ModifierConfig `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	BankParam  int              `json:"bank_param,omitempty" yaml:"bank_param,omitempty"`
	Bank       int              `json:"bank,omitempty" yaml:"bank,omitempty"`
	Expression string           `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// GroupConfig is a named subset of mappings
type GroupConfig struct {
	Key              string            `json:"key" yaml:"key"`
	Name             string            `json:"name,omitempty" yaml:"name,omitempty"`
	Disabled         bool              `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	ControlDisabled  bool              `json:"control_disabled,omitempty" yaml:"control_disabled,omitempty"`
	FeedbackDisabled bool              `json:"feedback_disabled,omitempty" yaml:"feedback_disabled,omitempty"`
	Activation       *ActivationConfig `json:"activation,omitempty" yaml:"activation,omitempty"`
}

// MappingConfig binds one source to one target through one mode
type MappingConfig struct {
	Key              string            `json:"key" yaml:"key"`
	Name             string            `json:"name,omitempty" yaml:"name,omitempty"`
	Disabled         bool              `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	ControlDisabled  bool              `json:"control_disabled,omitempty" yaml:"control_disabled,omitempty"`
	FeedbackDisabled bool              `json:"feedback_disabled,omitempty" yaml:"feedback_disabled,omitempty"`
	Group            string            `json:"group,omitempty" yaml:"group,omitempty"`
	Activation       *ActivationConfig `json:"activation,omitempty" yaml:"activation,omitempty"`
	Source           SourceConfig      `json:"source" yaml:"source"`
	Mode             ModeConfig        `json:"mode" yaml:"mode"`
	Target           TargetConfig      `json:"target" yaml:"target"`
}

// NewMappingConfig creates a mapping with a generated key
func NewMappingConfig(name string) MappingConfig {
	return MappingConfig{
		Key:  uuid.New().String(),
		Name: name,
	}
}

// CompartmentKind names a compartment
type CompartmentKind string

const (
	CompartmentController CompartmentKind = "controller"
	CompartmentMain       CompartmentKind = "main"
)

// CompartmentConfig is an ordered list of mappings with its groups
type CompartmentConfig struct {
	Kind     CompartmentKind `json:"kind" yaml:"kind"`
	Groups   []GroupConfig   `json:"groups,omitempty" yaml:"groups,omitempty"`
	Mappings []MappingConfig `json:"mappings" yaml:"mappings"`
}

// Config is a configuration snapshot
type Config struct {
	Version      string                `json:"version" yaml:"version"`
	Devices      []DeviceConfig        `json:"devices" yaml:"devices"`
	OSC          OSCConfig             `json:"osc" yaml:"osc"`
	Parameters   []ParameterConfig     `json:"parameters" yaml:"parameters"`
	Actions      []actions.Action      `json:"actions" yaml:"actions"`
	ActionGroups []actions.ActionGroup `json:"action_groups" yaml:"action_groups"`
	Compartments []CompartmentConfig   `json:"compartments" yaml:"compartments"`
}

// Default returns an empty configuration with one main compartment
func Default() *Config {
	return &Config{
		Version:      CurrentVersion,
		Devices:      []DeviceConfig{},
		Compartments: []CompartmentConfig{{Kind: CompartmentMain, Mappings: []MappingConfig{}}},
	}
}

// configDir returns the platform-appropriate config directory
func configDir() (string, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configHome, "gopher-learn"), nil
}

// ConfigPath returns the full path to the default config file
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads the config at path, or the default path when empty. A missing
// file yields the default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, isYAML(path))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document. Unknown fields are ignored.
func Parse(data []byte, asYAML bool) (*Config, error) {
	var cfg Config
	if asYAML {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.checkVersion(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return &cfg, nil
}

func (c *Config) checkVersion() error {
	if c.Version == "" {
		c.Version = CurrentVersion
		return nil
	}
	v, err := version.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("invalid config version %q: %w", c.Version, err)
	}
	if !supportedVersions.Check(v) {
		return fmt.Errorf("unsupported config version %s (want %s)", v, supportedVersions)
	}
	return nil
}

// fillDefaults ensures slices are not nil and every mapping has a key
func (c *Config) fillDefaults() {
	if c.Devices == nil {
		c.Devices = []DeviceConfig{}
	}
	for i := range c.Devices {
		if c.Devices[i].ID == "" {
			c.Devices[i].ID = uuid.New().String()
		}
		if c.Devices[i].Type == "" {
			c.Devices[i].Type = DeviceTypeGeneric
		}
	}
	if len(c.Compartments) == 0 {
		c.Compartments = []CompartmentConfig{{Kind: CompartmentMain}}
	}
	for i := range c.Compartments {
		comp := &c.Compartments[i]
		if comp.Kind == "" {
			comp.Kind = CompartmentMain
		}
		if comp.Mappings == nil {
			comp.Mappings = []MappingConfig{}
		}
		for j := range comp.Mappings {
			if comp.Mappings[j].Key == "" {
				comp.Mappings[j].Key = uuid.New().String()
			}
		}
	}
}

// Save writes the config to path, or the default path when empty
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	c.Version = CurrentVersion
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Compartment returns the first compartment of the given kind, creating it
// if there is none
func (c *Config) Compartment(kind CompartmentKind) *CompartmentConfig {
	for i := range c.Compartments {
		if c.Compartments[i].Kind == kind {
			return &c.Compartments[i]
		}
	}
	c.Compartments = append(c.Compartments, CompartmentConfig{Kind: kind, Mappings: []MappingConfig{}})
	return &c.Compartments[len(c.Compartments)-1]
}

// AddMapping appends a mapping to the first compartment of the given kind
func (c *Config) AddMapping(kind CompartmentKind, m MappingConfig) {
	if m.Key == "" {
		m.Key = uuid.New().String()
	}
	comp := c.Compartment(kind)
	comp.Mappings = append(comp.Mappings, m)
}

// AddDevice adds a new device to the config
func (c *Config) AddDevice(device DeviceConfig) {
	c.Devices = append(c.Devices, device)
}

// RemoveDevice removes a device by ID
func (c *Config) RemoveDevice(id string) {
	for i, d := range c.Devices {
		if d.ID == id {
			c.Devices = append(c.Devices[:i], c.Devices[i+1:]...)
			return
		}
	}
}

// ActionStore returns a store holding the config's actions and groups
func (c *Config) ActionStore() *actions.ActionStore {
	return actions.NewActionStore(c.Actions, c.ActionGroups)
}
