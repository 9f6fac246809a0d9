package cuapi

import "github.com/jake-scott/switchbee-go/internal/pkg/device"

// CentralUnitAPI is the operation surface shared by the polling and
// WebSocket RPC clients
type CentralUnitAPI interface {
	Connect() error
	FetchConfiguration(filter Filter) error
	FetchStates() error
	GetConfiguration() (*Envelope, error)
	GetMultipleStates(ids []int) (*Envelope, error)
	GetState(id int) (*Envelope, error)
	SetState(id int, value interface{}) (*Envelope, error)
	GetStats() (*Envelope, error)
	Devices() []device.Device
	Device(id int) (device.Device, bool)
	ModuleDisplay(unitID int) string
	Name() string
	Version() string
	Mac() string
	UniqueID() string
	ReconnectCount() int
}

// both transports provide the full surface
var (
	_ CentralUnitAPI = (*Polling)(nil)
	_ CentralUnitAPI = (*WsRPC)(nil)
)
