package device

import "fmt"

/*
 *   Central Unit item type and hardware identifiers and display names
 */

type Type int

const (
	TypeDimmer Type = iota
	TypeRepeater
	TypeSwitch
	TypeShutter
	TypeTwoWay
	TypeGroupSwitch
	TypeScenario
	TypeTimedPower
	TypeThermostat
	TypeLockGroup
	TypeTimedSwitch
	TypeSomfy
	TypeIrDevice
	TypeRollingScenario
)

var typeNames = []string{
	"DIMMER",
	"REPEATER",
	"SWITCH",
	"SHUTTER",
	"TWO_WAY",
	"GROUP_SWITCH",
	"SCENARIO",
	"TIMED_POWER",
	"THERMOSTAT",
	"LOCK_GROUP",
	"TIMED_SWITCH",
	"SOMFY",
	"IR_DEVICE",
	"ROLLING_SCENARIO",
}

var typeDisplays = []string{
	"Light",
	"Repeater",
	"Switch",
	"Shutter",
	"Two Way",
	"Group Switch",
	"Scenario",
	"Timed Power Switch",
	"Thermostat",
	"Lock Group",
	"Timed Switch",
	"Somfy",
	"Infra Red Device",
	"Rolling Scenario",
}

// ParseType converts an item type attribute to its ID
func ParseType(name string) (bool, Type) {
	for i, val := range typeNames {
		if val == name {
			return true, Type(i)
		}
	}

	return false, 0
}

func (t Type) String() string {
	if int(t) >= len(typeNames) {
		return fmt.Sprintf("unknown (type: %d)", int(t))
	}

	return typeNames[t]
}

// Display returns the human readable name of a device type
func (t Type) Display() string {
	if int(t) >= len(typeDisplays) {
		return fmt.Sprintf("unknown (type: %d)", int(t))
	}

	return typeDisplays[t]
}

type Hardware int

const (
	HardwareVirtual Hardware = iota
	HardwareDimmable
	HardwareShutter
	HardwareTimedPowerSwitch
	HardwareThermostat
	HardwareSomfy
	HardwareSocketIR
	HardwareStickerSwitch
	HardwareRegularSwitch
	HardwareRepeater
)

var hardwareNames = []string{
	"VIRTUAL",
	"DIMMABLE_SWITCH",
	"SHUTTER",
	"TIMED_POWER_SWITCH",
	"THERMOSTAT",
	"SOMFY",
	"SOCKET_IR",
	"STIKER_SWITCH", // sic, the hub really spells it this way
	"REGULAR_SWITCH",
	"REPEATER",
}

var hardwareDisplays = []string{
	"Virtual",
	"Switch",
	"Shutter",
	"Timed Power Switch",
	"CoolSwitch",
	"Somfy",
	"Socket IR",
	"Sticker Switch",
	"Regular Switch",
	"Repeater",
}

// ParseHardware converts an item hw attribute to its ID
func ParseHardware(name string) (bool, Hardware) {
	for i, val := range hardwareNames {
		if val == name {
			return true, Hardware(i)
		}
	}

	return false, 0
}

func (h Hardware) String() string {
	if int(h) >= len(hardwareNames) {
		return fmt.Sprintf("unknown (hw: %d)", int(h))
	}

	return hardwareNames[h]
}

// Display returns the human readable name of a hardware class
func (h Hardware) Display() string {
	if int(h) >= len(hardwareDisplays) {
		return fmt.Sprintf("unknown (hw: %d)", int(h))
	}

	return hardwareDisplays[h]
}
