package cuapi

import "encoding/json"

// Central Unit request commands
const (
	CommandLogin             = "LOGIN"
	CommandGetConfiguration  = "GET_CONFIGURATION"
	CommandGetMultipleStates = "GET_MULTIPLE_STATES"
	CommandGetState          = "GET_STATE"
	CommandStats             = "STATS"
	CommandOperate           = "OPERATE"
	CommandState             = "STATE"
)

// Central Unit response statuses
const (
	StatusOK           = "OK"
	StatusFailed       = "FAILED"
	StatusInvalidToken = "INVALID_TOKEN"
	StatusTokenExpired = "TOKEN_EXPIRED"
	StatusLoginFailed  = "LOGIN_FAILED"
	StatusOffline      = "OFFLINE"
)

// request is the command envelope sent to the unit.  The token is omitted
// for the LOGIN command itself.
type request struct {
	Command string      `json:"command"`
	Params  interface{} `json:"params,omitempty"`
	Token   string      `json:"token,omitempty"`
}

// Envelope is one Central Unit response
type Envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type loginParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginData struct {
	Token string `json:"token"`
	// the unit reports an absolute expiration which we deliberately ignore,
	// see session.go
	Expiration int64 `json:"expiration"`
}

type operateParams struct {
	Directive string      `json:"directive"`
	ItemID    int         `json:"itemId"`
	Value     interface{} `json:"value"`
}

type configurationData struct {
	Name    string     `json:"name"`
	Version string     `json:"version"`
	Mac     string     `json:"mac"`
	CuCode  string     `json:"cuCode"`
	Zones   []zoneData `json:"zones"`
}

type zoneData struct {
	Name  string     `json:"name"`
	Items []itemData `json:"items"`
}

type itemData struct {
	ID               *int     `json:"id"`
	Name             *string  `json:"name"`
	Type             *string  `json:"type"`
	Hardware         *string  `json:"hw"`
	Modes            []string `json:"modes"`
	TemperatureUnits string   `json:"temperatureUnits"`
}

type itemState struct {
	ID    int             `json:"id"`
	State json.RawMessage `json:"state"`
}

// NotificationData is the payload of an unsolicited push frame
type NotificationData struct {
	ID       *int            `json:"id"`
	Name     string          `json:"name,omitempty"`
	NewValue json.RawMessage `json:"newValue"`
}

// Notification is one push event delivered over the WebSocket transport
type Notification struct {
	Type string
	Data NotificationData
}
