package device

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Central Unit state commands/values shared by all switch-like devices
const (
	StateOn  = "ON"
	StateOff = "OFF"
)

// Thermostat bounds are fixed by the Central Unit firmware
const (
	ThermostatMinTemperature = 16
	ThermostatMaxTemperature = 31
)

// Identity holds the attributes common to every device kind.  A unit is the
// physical module housing the device; devices with the same ID/10 share one.
type Identity struct {
	ID         int
	Name       string
	Zone       string
	Type       Type
	Hardware   Hardware
	LastUpdate time.Time
}

func newIdentity(id int, name, zone string, hw Hardware, t Type) Identity {
	return Identity{
		ID:         id,
		Name:       name,
		Zone:       zone,
		Type:       t,
		Hardware:   hw,
		LastUpdate: time.Now(),
	}
}

func (i *Identity) UnitID() int {
	return i.ID / 10
}

// Device is the capability set shared by all concrete variants
type Device interface {
	Base() *Identity
}

func typeMismatch(want Type, have Type) error {
	return fmt.Errorf("only %s devices are allowed, have %s", want, have)
}

// decode a raw state value that is either a JSON string or a JSON number
func scalar(raw json.RawMessage) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrapf(err, "decoding state value %s", raw)
	}

	switch v.(type) {
	case string, float64:
		return v, nil
	}

	return nil, fmt.Errorf("unexpected state value: %s", raw)
}

// level decodes a 0..100 value: ON and OFF expand to 100 and 0, anything
// else is taken as an integer
func level(raw json.RawMessage) (int, error) {
	v, err := scalar(raw)
	if err != nil {
		return 0, err
	}

	switch val := v.(type) {
	case float64:
		return int(val), nil
	case string:
		switch val {
		case StateOn:
			return 100, nil
		case StateOff:
			return 0, nil
		default:
			n, err := strconv.Atoi(val)
			if err != nil {
				return 0, errors.Wrapf(err, "decoding level %q", val)
			}
			return n, nil
		}
	}

	return 0, fmt.Errorf("unexpected level value: %s", raw)
}

// onOff decodes a switch state: numeric 0 and 100 collapse to OFF and ON,
// any other value passes through untouched
func onOff(raw json.RawMessage) (string, error) {
	v, err := scalar(raw)
	if err != nil {
		return "", err
	}

	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		switch int(val) {
		case 0:
			return StateOff, nil
		case 100:
			return StateOn, nil
		default:
			return strconv.Itoa(int(val)), nil
		}
	}

	return "", fmt.Errorf("unexpected state value: %s", raw)
}

/*
 *  Switch-like variants: Switch, GroupSwitch, TimedSwitch, TwoWay
 */

type Switch struct {
	Identity
	State string
}

func NewSwitch(id int, name, zone string, hw Hardware, t Type) (*Switch, error) {
	if t != TypeSwitch {
		return nil, typeMismatch(TypeSwitch, t)
	}
	return &Switch{Identity: newIdentity(id, name, zone, hw, t)}, nil
}

func (d *Switch) Base() *Identity { return &d.Identity }

func (d *Switch) SetState(raw json.RawMessage) error {
	state, err := onOff(raw)
	if err != nil {
		return err
	}
	d.State = state
	return nil
}

type GroupSwitch struct {
	Identity
	State string
}

func NewGroupSwitch(id int, name, zone string, hw Hardware, t Type) (*GroupSwitch, error) {
	if t != TypeGroupSwitch {
		return nil, typeMismatch(TypeGroupSwitch, t)
	}
	return &GroupSwitch{Identity: newIdentity(id, name, zone, hw, t)}, nil
}

func (d *GroupSwitch) Base() *Identity { return &d.Identity }

func (d *GroupSwitch) SetState(raw json.RawMessage) error {
	state, err := onOff(raw)
	if err != nil {
		return err
	}
	d.State = state
	return nil
}

type TimedSwitch struct {
	Identity
	State string
}

func NewTimedSwitch(id int, name, zone string, hw Hardware, t Type) (*TimedSwitch, error) {
	if t != TypeTimedSwitch {
		return nil, typeMismatch(TypeTimedSwitch, t)
	}
	return &TimedSwitch{Identity: newIdentity(id, name, zone, hw, t)}, nil
}

func (d *TimedSwitch) Base() *Identity { return &d.Identity }

func (d *TimedSwitch) SetState(raw json.RawMessage) error {
	state, err := onOff(raw)
	if err != nil {
		return err
	}
	d.State = state
	return nil
}

type TwoWay struct {
	Identity
	State string
}

func NewTwoWay(id int, name, zone string, hw Hardware, t Type) (*TwoWay, error) {
	if t != TypeTwoWay {
		return nil, typeMismatch(TypeTwoWay, t)
	}
	return &TwoWay{Identity: newIdentity(id, name, zone, hw, t)}, nil
}

func (d *TwoWay) Base() *Identity { return &d.Identity }

func (d *TwoWay) SetState(raw json.RawMessage) error {
	state, err := onOff(raw)
	if err != nil {
		return err
	}
	d.State = state
	return nil
}

/*
 *  Level variants: Dimmer (brightness), Shutter (position)
 */

type Dimmer struct {
	Identity
	Brightness int
}

func NewDimmer(id int, name, zone string, hw Hardware, t Type) (*Dimmer, error) {
	if t != TypeDimmer {
		return nil, typeMismatch(TypeDimmer, t)
	}
	return &Dimmer{Identity: newIdentity(id, name, zone, hw, t)}, nil
}

func (d *Dimmer) Base() *Identity { return &d.Identity }

func (d *Dimmer) SetBrightness(raw json.RawMessage) error {
	val, err := level(raw)
	if err != nil {
		return err
	}
	d.Brightness = val
	return nil
}

type Shutter struct {
	Identity
	Position int
}

func NewShutter(id int, name, zone string, hw Hardware, t Type) (*Shutter, error) {
	if t != TypeShutter {
		return nil, typeMismatch(TypeShutter, t)
	}
	return &Shutter{Identity: newIdentity(id, name, zone, hw, t)}, nil
}

func (d *Shutter) Base() *Identity { return &d.Identity }

func (d *Shutter) SetPosition(raw json.RawMessage) error {
	val, err := level(raw)
	if err != nil {
		return err
	}
	d.Position = val
	return nil
}

/*
 *  Timed power switch: ON with a countdown, the raw value carries the
 *  minutes remaining
 */

type TimedPowerSwitch struct {
	Identity
	State       string
	MinutesLeft int
}

func NewTimedPowerSwitch(id int, name, zone string, hw Hardware, t Type) (*TimedPowerSwitch, error) {
	if t != TypeTimedPower {
		return nil, typeMismatch(TypeTimedPower, t)
	}
	return &TimedPowerSwitch{Identity: newIdentity(id, name, zone, hw, t)}, nil
}

func (d *TimedPowerSwitch) Base() *Identity { return &d.Identity }

func (d *TimedPowerSwitch) SetState(raw json.RawMessage) error {
	v, err := scalar(raw)
	if err != nil {
		return err
	}

	switch val := v.(type) {
	case string:
		if val == StateOff {
			d.State = StateOff
			d.MinutesLeft = 0
			return nil
		}
		minutes, err := strconv.Atoi(val)
		if err != nil {
			return errors.Wrapf(err, "decoding timer value %q", val)
		}
		d.State = StateOn
		d.MinutesLeft = minutes
	case float64:
		if int(val) == 0 {
			d.State = StateOff
			d.MinutesLeft = 0
			return nil
		}
		d.State = StateOn
		d.MinutesLeft = int(val)
	}

	return nil
}

/*
 *  Thermostat
 */

type Thermostat struct {
	Identity
	State             string
	Mode              string
	Fan               string
	TargetTemperature int
	Temperature       int
	Modes             []string
	Unit              string
	MinTemperature    int
	MaxTemperature    int
}

// wire shape of a thermostat state value
type thermostatState struct {
	Power                 *string `json:"power"`
	Mode                  string  `json:"mode"`
	Fan                   string  `json:"fan"`
	ConfiguredTemperature int     `json:"configuredTemperature"`
	RoomTemperature       int     `json:"roomTemperature"`
}

func NewThermostat(id int, name, zone string, hw Hardware, t Type, modes []string, unit string) (*Thermostat, error) {
	if t != TypeThermostat {
		return nil, typeMismatch(TypeThermostat, t)
	}
	return &Thermostat{
		Identity:       newIdentity(id, name, zone, hw, t),
		Modes:          modes,
		Unit:           unit,
		MinTemperature: ThermostatMinTemperature,
		MaxTemperature: ThermostatMaxTemperature,
	}, nil
}

func (d *Thermostat) Base() *Identity { return &d.Identity }

// SetState decodes a structured thermostat state.  A malformed value leaves
// every field untouched so a bad update never clobbers known-good state.
func (d *Thermostat) SetState(raw json.RawMessage) error {
	var state thermostatState
	if err := json.Unmarshal(raw, &state); err != nil {
		return errors.Wrapf(err, "decoding thermostat state %s", raw)
	}
	if state.Power == nil {
		return fmt.Errorf("thermostat state missing power attribute: %s", raw)
	}

	d.State = *state.Power
	d.Mode = state.Mode
	d.Fan = state.Fan
	d.TargetTemperature = state.ConfiguredTemperature
	d.Temperature = state.RoomTemperature
	return nil
}

/*
 *  Stateless triggers: Scenario, RollingScenario, Somfy
 */

type Scenario struct {
	Identity
}

func NewScenario(id int, name, zone string, hw Hardware, t Type) (*Scenario, error) {
	if t != TypeScenario {
		return nil, typeMismatch(TypeScenario, t)
	}
	return &Scenario{Identity: newIdentity(id, name, zone, hw, t)}, nil
}

func (d *Scenario) Base() *Identity { return &d.Identity }

type RollingScenario struct {
	Identity
}

func NewRollingScenario(id int, name, zone string, hw Hardware, t Type) (*RollingScenario, error) {
	if t != TypeRollingScenario {
		return nil, typeMismatch(TypeRollingScenario, t)
	}
	return &RollingScenario{Identity: newIdentity(id, name, zone, hw, t)}, nil
}

func (d *RollingScenario) Base() *Identity { return &d.Identity }

type Somfy struct {
	Identity
}

func NewSomfy(id int, name, zone string, hw Hardware, t Type) (*Somfy, error) {
	if t != TypeSomfy {
		return nil, typeMismatch(TypeSomfy, t)
	}
	return &Somfy{Identity: newIdentity(id, name, zone, hw, t)}, nil
}

func (d *Somfy) Base() *Identity { return &d.Identity }
