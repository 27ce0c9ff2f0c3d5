package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
version: "1.3"
future_option: true
osc:
  listen: 127.0.0.1:9000
parameters:
  - key: volume
    min: -60
    max: 6
compartments:
  - kind: controller
    mappings:
      - key: fader1
        source: {kind: cc, channel: 0, number: 7}
        target: {kind: virtual, virtual_id: fader.1}
  - kind: main
    groups:
      - key: bank-a
        activation: {kind: bank, bank_param: 0, bank: 2}
    mappings:
      - name: volume
        group: bank-a
        source: {kind: virtual, virtual_id: fader.1}
        mode:
          kind: absolute
          takeover: pickup
          target_interval: {min: 0.1, max: 0.9}
        target: {kind: continuous, param: volume}
        unknown_field: 42
`

func TestParseYAML(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML), true)
	require.NoError(t, err)

	assert.Equal(t, "1.3", cfg.Version)
	assert.Equal(t, "127.0.0.1:9000", cfg.OSC.Listen)
	require.Len(t, cfg.Compartments, 2)

	ctrl := cfg.Compartments[0]
	assert.Equal(t, CompartmentController, ctrl.Kind)
	require.Len(t, ctrl.Mappings, 1)
	require.NotNil(t, ctrl.Mappings[0].Source.Channel)
	assert.Equal(t, 0, *ctrl.Mappings[0].Source.Channel)
	assert.Equal(t, 7, *ctrl.Mappings[0].Source.Number)

	main := cfg.Compartments[1]
	require.Len(t, main.Mappings, 1)
	m := main.Mappings[0]
	assert.NotEmpty(t, m.Key, "missing keys are generated")
	assert.Equal(t, "pickup", m.Mode.Takeover)
	require.NotNil(t, m.Mode.TargetInterval)
	assert.Equal(t, 0.9, m.Mode.TargetInterval.Max)
	require.NotNil(t, main.Groups[0].Activation)
	assert.Equal(t, 2, main.Groups[0].Activation.Bank)
}

func TestParseJSONIgnoresUnknownFields(t *testing.T) {
	doc := `{"version": "1.0", "whatever": [1,2], "compartments": [{"mappings": [{"key": "a", "source": {"kind": "cc"}, "extra": {}}]}]}`
	cfg, err := Parse([]byte(doc), false)
	require.NoError(t, err)
	require.Len(t, cfg.Compartments, 1)
	assert.Equal(t, CompartmentMain, cfg.Compartments[0].Kind)
	assert.Equal(t, "a", cfg.Compartments[0].Mappings[0].Key)
	assert.Nil(t, cfg.Compartments[0].Mappings[0].Source.Channel)
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	_, err := Parse([]byte(`{"version": "2.0"}`), false)
	assert.Error(t, err)
	_, err = Parse([]byte(`{"version": "banana"}`), false)
	assert.Error(t, err)

	cfg, err := Parse([]byte(`{}`), false)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, cfg.Version)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := Default()
			m := NewMappingConfig("learned")
			ch, num := 3, 64
			m.Source = SourceConfig{Kind: "cc", Channel: &ch, Number: &num}
			m.Target = TargetConfig{Kind: "continuous", Param: "volume"}
			cfg.AddMapping(CompartmentMain, m)
			cfg.AddDevice(NewDeviceConfig())
			require.NoError(t, cfg.Save(path))

			loaded, err := Load(path)
			require.NoError(t, err)
			require.Len(t, loaded.Compartments, 1)
			require.Len(t, loaded.Compartments[0].Mappings, 1)
			got := loaded.Compartments[0].Mappings[0]
			assert.Equal(t, m.Key, got.Key)
			assert.Equal(t, 64, *got.Source.Number)
			assert.Equal(t, "volume", got.Target.Param)
			require.Len(t, loaded.Devices, 1)
			assert.Equal(t, DeviceTypeGeneric, loaded.Devices[0].Type)
		})
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, cfg.Version)
	require.Len(t, cfg.Compartments, 1)
	assert.Equal(t, CompartmentMain, cfg.Compartments[0].Kind)
}

func TestCompartmentCreatesMissing(t *testing.T) {
	cfg := Default()
	c := cfg.Compartment(CompartmentController)
	c.Mappings = append(c.Mappings, MappingConfig{Key: "x"})
	assert.Len(t, cfg.Compartments, 2)
	assert.Len(t, cfg.Compartment(CompartmentController).Mappings, 1)
}

func TestActionStoreFromYAML(t *testing.T) {
	cfg, err := Parse([]byte(`
version: "1.0"
action_groups:
  - {id: scene, name: Scene}
actions:
  - {id: lights, name: Lights, type: shell, code: "true", parent_group_id: scene, order: 1}
  - {id: wait, name: Wait, type: sleep, code: "0.1", parent_group_id: scene, order: 0, wait_for_completion: true}
`), true)
	require.NoError(t, err)

	seq, err := cfg.ActionStore().Sequence("scene")
	require.NoError(t, err)
	require.Len(t, seq, 2)
	assert.Equal(t, "wait", seq[0].ID)
	assert.True(t, seq[0].WaitForCompletion)
	assert.Equal(t, "lights", seq[1].ID)
}
