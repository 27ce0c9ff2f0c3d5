package midi

// DeviceType selects the output profile of a controller
type DeviceType string

const (
	DeviceTypeClassic  DeviceType = "classic"  // Launchpad S - velocity-coded red/green LEDs
	DeviceTypeColorful DeviceType = "colorful" // Launchpad Mini Mk3 - requires SysEx
	DeviceTypeGeneric  DeviceType = "generic"  // any controller, feedback is sent as is
)

// PadColor represents an RGB color for a pad
type PadColor struct {
	R, G, B uint8 // 0-127 for each channel
}

// LevelColor shows a feedback value like a meter: off, then green, yellow
// and red as the value rises
func LevelColor(value uint8) PadColor {
	switch {
	case value == 0:
		return PadColor{}
	case value < 43:
		return PadColor{G: 127}
	case value < 86:
		return PadColor{R: 127, G: 127}
	default:
		return PadColor{R: 127}
	}
}
