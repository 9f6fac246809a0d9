package cuapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jake-scott/switchbee-go/internal/pkg/device"
	"github.com/jake-scott/switchbee-go/internal/pkg/logging"
)

// placeholder for items the unit reports without a name attribute
const unknownDeviceName = "Unknown"

// transport issues one command envelope and returns the response envelope.
// Implemented by the polling and WebSocket RPC clients.
type transport interface {
	call(command string, params interface{}) (*Envelope, error)
}

// Filter selects which device types FetchConfiguration materializes
type Filter struct {
	identityOnly bool
	types        map[device.Type]struct{}
}

// IncludeAll keeps every supported device type
func IncludeAll() Filter {
	return Filter{}
}

// IdentityOnly refreshes the unit identity fields without populating devices
func IdentityOnly() Filter {
	return Filter{identityOnly: true}
}

// IncludeTypes keeps only the given device types
func IncludeTypes(types ...device.Type) Filter {
	f := Filter{types: make(map[device.Type]struct{}, len(types))}
	for _, t := range types {
		f.types[t] = struct{}{}
	}
	return f
}

func (f Filter) excludes(t device.Type) bool {
	if len(f.types) == 0 {
		return false
	}
	_, ok := f.types[t]
	return !ok
}

// CentralUnit carries the state shared by both transports: credentials,
// session, the device registry and unit index, and the hub identity.
type CentralUnit struct {
	host     string
	username string
	password string

	rpc transport

	session session

	// guards devices and units; the WebSocket receive loop applies push
	// updates concurrently with caller issued calls
	mu      sync.Mutex
	devices map[int]device.Device
	units   map[int]map[string]struct{}

	name     string
	version  string
	mac      string
	uniqueID string
}

func newCentralUnit(host, username, password string) CentralUnit {
	return CentralUnit{
		host:     host,
		username: username,
		password: password,
		session:  newSession(),
		devices:  make(map[int]device.Device),
		units:    make(map[int]map[string]struct{}),
	}
}

// Name returns the unit's configured name
func (cu *CentralUnit) Name() string { return cu.name }

// Version returns the unit's firmware version string
func (cu *CentralUnit) Version() string { return cu.version }

// Mac returns the unit's MAC address
func (cu *CentralUnit) Mac() string { return cu.mac }

// UniqueID returns the unit code if the firmware reports one, else empty
func (cu *CentralUnit) UniqueID() string { return cu.uniqueID }

// ReconnectCount returns the number of re-logins since the first one
func (cu *CentralUnit) ReconnectCount() int { return cu.session.logins() }

// Devices returns a snapshot of the device registry
func (cu *CentralUnit) Devices() []device.Device {
	cu.mu.Lock()
	defer cu.mu.Unlock()

	list := make([]device.Device, 0, len(cu.devices))
	for _, dev := range cu.devices {
		list = append(list, dev)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Base().ID < list[j].Base().ID
	})
	return list
}

// Device looks up one device by id
func (cu *CentralUnit) Device(id int) (device.Device, bool) {
	cu.mu.Lock()
	defer cu.mu.Unlock()

	dev, ok := cu.devices[id]
	return dev, ok
}

// ModuleDisplay returns a human label for the physical module hosting the
// given unit id, e.g. "Switch and Shutter"
func (cu *CentralUnit) ModuleDisplay(unitID int) string {
	cu.mu.Lock()
	defer cu.mu.Unlock()

	labels := make([]string, 0, len(cu.units[unitID]))
	for label := range cu.units[unitID] {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return strings.Join(labels, " and ")
}

func (cu *CentralUnit) loginIfNeeded() error {
	if cu.session.valid() {
		return nil
	}

	reason := "missing token"
	if cu.session.current() != "" {
		reason = "token expiry"
	}
	logging.Logger(nil).Infof("Logging into the Central Unit due to %s", reason)

	return cu.login()
}

func (cu *CentralUnit) login() error {
	env, err := cu.rpc.call(CommandLogin, loginParams{
		Username: cu.username,
		Password: cu.password,
	})
	if err != nil {
		// never leave a stale token behind a failed login
		cu.session.clear()
		return err
	}

	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		cu.session.clear()
		return &ProtocolError{Msg: "decoding login response", Err: err}
	}

	cu.session.update(data.Token)
	return nil
}

// checkStatus interprets a response envelope's status field.  Token errors
// clear the session so the next authenticated call re-logs in.
func (cu *CentralUnit) checkStatus(env *Envelope, body []byte) error {
	switch env.Status {
	case StatusOK:
		return nil
	case StatusInvalidToken, StatusTokenExpired, StatusLoginFailed:
		cu.session.clear()
		return &AuthenticationError{Status: env.Status}
	case StatusOffline:
		return &DeviceOfflineError{Response: string(body)}
	default:
		return &ProtocolError{
			Msg: fmt.Sprintf("central unit replied with bad status (%s): %s", env.Status, body),
		}
	}
}

func (cu *CentralUnit) sendRequest(command string, params interface{}) (*Envelope, error) {
	if err := cu.loginIfNeeded(); err != nil {
		return nil, err
	}
	return cu.rpc.call(command, params)
}

// GetConfiguration fetches the raw zone/item configuration tree
func (cu *CentralUnit) GetConfiguration() (*Envelope, error) {
	return cu.sendRequest(CommandGetConfiguration, nil)
}

// GetMultipleStates fetches the raw states of the given item ids in one call
func (cu *CentralUnit) GetMultipleStates(ids []int) (*Envelope, error) {
	return cu.sendRequest(CommandGetMultipleStates, ids)
}

// GetState fetches the raw state of one item
func (cu *CentralUnit) GetState(id int) (*Envelope, error) {
	return cu.sendRequest(CommandGetState, id)
}

// SetState issues a SET directive for one item
func (cu *CentralUnit) SetState(id int, value interface{}) (*Envelope, error) {
	return cu.sendRequest(CommandOperate, operateParams{
		Directive: "SET",
		ItemID:    id,
		Value:     value,
	})
}

// GetStats fetches the unit's diagnostic counters
func (cu *CentralUnit) GetStats() (*Envelope, error) {
	return cu.sendRequest(CommandStats, nil)
}

// FetchConfiguration rebuilds the device registry and unit index from the
// unit's configuration tree.  The registry is cleared up front and fully
// replaced, never patched; a fetch that aborts therefore leaves an empty
// registry rather than stale devices.
func (cu *CentralUnit) FetchConfiguration(filter Filter) error {
	cu.mu.Lock()
	cu.devices = make(map[int]device.Device)
	cu.units = make(map[int]map[string]struct{})
	cu.mu.Unlock()

	env, err := cu.GetConfiguration()
	if err != nil {
		return err
	}

	var data configurationData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return &ProtocolError{Msg: "decoding configuration response", Err: err}
	}

	cu.name = data.Name
	cu.version = data.Version
	cu.mac = data.Mac
	cu.uniqueID = data.CuCode

	if filter.identityOnly {
		return nil
	}

	for _, zone := range data.Zones {
		for _, item := range zone.Items {
			cu.materializeItem(zone.Name, item, filter)
		}
	}

	return nil
}

// materializeItem registers one configuration item, or skips it with a log
// entry; item level problems are never fatal to the whole fetch
func (cu *CentralUnit) materializeItem(zone string, item itemData, filter Filter) {
	itemName := unknownDeviceName
	if item.Name != nil {
		itemName = *item.Name
	}

	if item.Type == nil {
		logging.Logger(nil).Errorf("device %s missing type attribute, skipping", itemName)
		return
	}
	ok, deviceType := device.ParseType(*item.Type)
	if !ok {
		logging.Logger(nil).Warnf("Unknown device type %s (%s), skipping", *item.Type, itemName)
		return
	}

	if filter.excludes(deviceType) {
		logging.Logger(nil).Infof("Skipping %s (%s)", deviceType, itemName)
		return
	}

	if item.Hardware == nil {
		logging.Logger(nil).Errorf("device %s missing hardware attribute, skipping", itemName)
		return
	}
	ok, deviceHw := device.ParseHardware(*item.Hardware)
	if !ok {
		logging.Logger(nil).Warnf("Unknown hardware type %s (%s), skipping", *item.Hardware, itemName)
		return
	}

	if item.ID == nil {
		logging.Logger(nil).Errorf("device %s missing id attribute, skipping", itemName)
		return
	}
	if item.Name == nil {
		logging.Logger(nil).Errorf("device %d missing name attribute", *item.ID)
	}
	id := *item.ID

	var dev device.Device
	var err error

	switch deviceType {
	case device.TypeSwitch:
		dev, err = device.NewSwitch(id, itemName, zone, deviceHw, deviceType)
	case device.TypeDimmer:
		dev, err = device.NewDimmer(id, itemName, zone, deviceHw, deviceType)
	case device.TypeShutter:
		dev, err = device.NewShutter(id, itemName, zone, deviceHw, deviceType)
	case device.TypeTimedPower:
		dev, err = device.NewTimedPowerSwitch(id, itemName, zone, deviceHw, deviceType)
	case device.TypeScenario:
		dev, err = device.NewScenario(id, itemName, zone, deviceHw, deviceType)
	case device.TypeGroupSwitch:
		// virtual group switches have no readable status
		if deviceHw == device.HardwareVirtual {
			logging.Logger(nil).Infof("Skipping virtual group switch %s", itemName)
			return
		}
		dev, err = device.NewGroupSwitch(id, itemName, zone, deviceHw, deviceType)
	case device.TypeThermostat:
		dev, err = device.NewThermostat(id, itemName, zone, deviceHw, deviceType,
			item.Modes, item.TemperatureUnits)
	case device.TypeRollingScenario:
		dev, err = device.NewRollingScenario(id, itemName, zone, deviceHw, deviceType)
	case device.TypeTimedSwitch:
		dev, err = device.NewTimedSwitch(id, itemName, zone, deviceHw, deviceType)
	case device.TypeTwoWay:
		dev, err = device.NewTwoWay(id, itemName, zone, deviceHw, deviceType)
	case device.TypeSomfy:
		dev, err = device.NewSomfy(id, itemName, zone, deviceHw, deviceType)
	default:
		logging.Logger(nil).Warnf("Unsupported type %s %s (%s), skipping", deviceType, deviceHw, itemName)
		return
	}

	if err != nil {
		logging.Logger(nil).WithError(err).Warnf("Constructing device %d (%s), skipping", id, itemName)
		return
	}

	cu.mu.Lock()
	defer cu.mu.Unlock()

	cu.devices[id] = dev
	unitID := dev.Base().UnitID()
	if cu.units[unitID] == nil {
		cu.units[unitID] = make(map[string]struct{})
	}
	cu.units[unitID][deviceHw.Display()] = struct{}{}
}

// stateBearing reports whether a device's state can be read back from the
// unit; stateless triggers and virtual hardware are excluded from bulk sync
func stateBearing(dev device.Device) bool {
	if dev.Base().Hardware == device.HardwareVirtual {
		return false
	}

	switch dev.Base().Type {
	case device.TypeSwitch, device.TypeGroupSwitch, device.TypeDimmer,
		device.TypeShutter, device.TypeTimedPower, device.TypeThermostat,
		device.TypeTimedSwitch:
		return true
	}
	return false
}

// FetchStates refreshes every state bearing device with one batched
// GET_MULTIPLE_STATES call.  A decode failure for one device is logged and
// skipped, never aborting the batch.
func (cu *CentralUnit) FetchStates() error {
	cu.mu.Lock()
	ids := make([]int, 0, len(cu.devices))
	for id, dev := range cu.devices {
		if stateBearing(dev) {
			ids = append(ids, id)
		}
	}
	cu.mu.Unlock()
	sort.Ints(ids)

	env, err := cu.GetMultipleStates(ids)
	if err != nil {
		return err
	}

	var states []itemState
	if err := json.Unmarshal(env.Data, &states); err != nil {
		return &ProtocolError{Msg: "decoding states response", Err: err}
	}

	for _, state := range states {
		cu.UpdateDeviceState(state.ID, state.State)
	}

	return nil
}

// UpdateDeviceState applies one raw state value to the matching device,
// reporting whether the id was recognized and the update applied.  Both the
// bulk pull and the push channel funnel through here so behavior is
// identical regardless of transport.
func (cu *CentralUnit) UpdateDeviceState(id int, raw json.RawMessage) bool {
	cu.mu.Lock()
	defer cu.mu.Unlock()

	dev, ok := cu.devices[id]
	if !ok {
		logging.Logger(nil).Debugf("Device id %d is not tracked", id)
		return false
	}

	var err error
	switch d := dev.(type) {
	case *device.Dimmer:
		err = d.SetBrightness(raw)
	case *device.Shutter:
		err = d.SetPosition(raw)
	case *device.Switch:
		err = d.SetState(raw)
	case *device.GroupSwitch:
		err = d.SetState(raw)
	case *device.TimedSwitch:
		err = d.SetState(raw)
	case *device.TimedPowerSwitch:
		err = d.SetState(raw)
	case *device.Thermostat:
		err = d.SetState(raw)
	default:
		logging.Logger(nil).Debugf("Device %d (%s) carries no state", id, dev.Base().Type)
		return false
	}

	if err != nil {
		logging.Logger(nil).WithError(err).Errorf(
			"%s: Received invalid state from CU, keeping the old one", dev.Base().Name)
		return false
	}

	return true
}

// UpdateDeviceStateFromEvent applies one push notification payload
func (cu *CentralUnit) UpdateDeviceStateFromEvent(data NotificationData) bool {
	if data.ID == nil {
		logging.Logger(nil).Errorf("Received update with no device id: %s", data.NewValue)
		return false
	}

	return cu.UpdateDeviceState(*data.ID, data.NewValue)
}
