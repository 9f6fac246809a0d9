package cuapi

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/jake-scott/switchbee-go/internal/pkg/logging"
)

const (
	// units expose the RPC socket on a fixed port
	wsRPCPort = 7891

	defaultCallTimeout      = 10 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// NotificationHandler receives push events after they have been applied to
// the device registry
type NotificationHandler func(Notification)

// wsFrame is the wire shape of every WebSocket message: outbound calls
// carry commandId/command/params/token, responses echo commandId with
// status/data, push frames carry notificationType instead.
type wsFrame struct {
	CommandID        int64           `json:"commandId,omitempty"`
	Command          string          `json:"command,omitempty"`
	Params           interface{}     `json:"params,omitempty"`
	Token            string          `json:"token,omitempty"`
	Status           string          `json:"status,omitempty"`
	Data             json.RawMessage `json:"data,omitempty"`
	NotificationType string          `json:"notificationType,omitempty"`
}

// rpcCall is one outstanding request awaiting its correlated response.
// resolve carries the response exactly once; it is closed instead when the
// connection goes away.
type rpcCall struct {
	id      int64
	resolve chan *Envelope
}

// WsRPC is the persistent WebSocket transport: multiplexed request/response
// plus unsolicited push notifications.
type WsRPC struct {
	CentralUnit

	url string
	src string

	connMu     sync.Mutex
	conn       *websocket.Conn
	connecting bool

	// gorilla permits a single concurrent writer
	writeMu sync.Mutex

	callsMu sync.Mutex
	calls   map[int64]*rpcCall
	callID  int64

	callTimeout time.Duration

	handlerMu      sync.Mutex
	onNotification NotificationHandler
}

// NewWsRPCClient builds a WebSocket RPC transport for the unit at host.
// Nothing is contacted until Connect.
func NewWsRPCClient(host, username, password string) *WsRPC {
	c := &WsRPC{
		CentralUnit: newCentralUnit(host, username, password),
		url:         fmt.Sprintf("ws://%s:%d", host, wsRPCPort),
		calls:       make(map[int64]*rpcCall),
		callTimeout: defaultCallTimeout,
	}
	c.rpc = c

	return c
}

// WithCallTimeout overrides the per-call response wait
func (c *WsRPC) WithCallTimeout(d time.Duration) *WsRPC {
	c.callTimeout = d
	return c
}

// SubscribeUpdates registers the handler invoked for every push event; a
// nil handler unregisters
func (c *WsRPC) SubscribeUpdates(handler NotificationHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onNotification = handler
}

func (c *WsRPC) notificationHandler() NotificationHandler {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	return c.onNotification
}

// Connected reports whether the socket is currently open
func (c *WsRPC) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// Connect dials the unit, starts the receive loop, then logs in and runs a
// full configuration fetch and state sync.  Login itself travels through
// the same call/response mechanism as every other command, which is why the
// receive loop starts first.
func (c *WsRPC) Connect() error {
	c.connMu.Lock()
	if c.conn != nil || c.connecting {
		c.connMu.Unlock()
		return &ConnectionError{Op: "connect", Err: errors.New("already connected")}
	}
	c.connecting = true
	c.connMu.Unlock()

	defer func() {
		c.connMu.Lock()
		c.connecting = false
		c.connMu.Unlock()
	}()

	logging.Logger(nil).Debugf("Trying to connect to device at %s", c.host)

	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return &ConnectionError{Op: fmt.Sprintf("connecting to %s", c.url), Err: err}
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	// fresh connection, fresh correlation state
	c.callsMu.Lock()
	c.callID = 0
	c.callsMu.Unlock()
	c.src = "swb-" + uuid.New().String()

	go c.receiveLoop(conn)

	if err := c.login(); err != nil {
		c.Close()
		return err
	}
	if err := c.FetchConfiguration(IncludeAll()); err != nil {
		c.Close()
		return err
	}
	if err := c.FetchStates(); err != nil {
		c.Close()
		return err
	}

	logging.Logger(nil).Infof("Connected to %s", c.host)
	return nil
}

// Close tears the socket down; the receive loop completes the cleanup,
// cancelling every outstanding call
func (c *WsRPC) Close() error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	return conn.Close()
}

func (c *WsRPC) call(command string, params interface{}) (*Envelope, error) {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return nil, &ConnectionError{Op: "call " + command, Err: errors.New("not connected")}
	}

	frame := wsFrame{
		Command: command,
		Params:  params,
	}
	if command != CommandLogin {
		// token snapshot at issue time
		frame.Token = c.session.current()
	}

	c.callsMu.Lock()
	c.callID++
	call := &rpcCall{
		id:      c.callID,
		resolve: make(chan *Envelope, 1),
	}
	frame.CommandID = call.id
	c.calls[call.id] = call
	c.callsMu.Unlock()

	logging.Logger(nil).Debugf("send(%s): %d %s", c.src, call.id, command)

	c.writeMu.Lock()
	err := conn.WriteJSON(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(call.id)
		return nil, &ConnectionError{Op: fmt.Sprintf("sending call %d (%s)", call.id, command), Err: err}
	}

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case env, ok := <-call.resolve:
		if !ok {
			return nil, &ConnectionClosedError{}
		}
		if err := c.checkStatus(env, env.Data); err != nil {
			return nil, err
		}
		return env, nil
	case <-timer.C:
		// the pending entry stays registered until disconnect cleanup
		return nil, &ConnectionError{
			Op: fmt.Sprintf("call %d (%s) timed out after %s", call.id, command, c.callTimeout),
		}
	}
}

func (c *WsRPC) forget(id int64) {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	delete(c.calls, id)
}

// receiveLoop reads frames until the socket closes, resolving pending calls
// and applying push notifications.  Malformed frames are logged and skipped.
func (c *WsRPC) receiveLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			logging.Logger(nil).Debugf("Websocket connection to %s closed: %v", c.host, err)
			break
		}

		if msgType != websocket.TextMessage {
			invalid := &InvalidMessageError{Reason: fmt.Sprintf("non-text message type %d", msgType)}
			logging.Logger(nil).Errorf("Invalid message from central unit %s: %v", c.host, invalid)
			continue
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			invalid := &InvalidMessageError{Reason: fmt.Sprintf("invalid JSON: %s", data)}
			logging.Logger(nil).Errorf("Invalid message from central unit %s: %v", c.host, invalid)
			continue
		}

		c.handleFrame(&frame, data)
	}

	c.teardown(conn)
}

func (c *WsRPC) handleFrame(frame *wsFrame, raw []byte) {
	if frame.CommandID != 0 {
		// looks like a response
		c.callsMu.Lock()
		call, ok := c.calls[frame.CommandID]
		if ok {
			delete(c.calls, frame.CommandID)
		}
		c.callsMu.Unlock()

		if !ok {
			logging.Logger(nil).Warnf("Response for an unknown request id: %d", frame.CommandID)
			return
		}

		call.resolve <- &Envelope{Status: frame.Status, Data: frame.Data}
		return
	}

	if frame.NotificationType != "" {
		logging.Logger(nil).Debugf("Notification %s %s", frame.NotificationType, raw)

		var data NotificationData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			logging.Logger(nil).Errorf("Invalid notification payload: %s", raw)
			return
		}

		notification := Notification{Type: frame.NotificationType, Data: data}
		c.UpdateDeviceStateFromEvent(notification.Data)

		if handler := c.notificationHandler(); handler != nil {
			handler(notification)
		}
		return
	}

	logging.Logger(nil).Warnf("Invalid frame: %s", raw)
}

// teardown cancels every outstanding call and releases the socket
func (c *WsRPC) teardown(conn *websocket.Conn) {
	c.callsMu.Lock()
	for id, call := range c.calls {
		close(call.resolve)
		delete(c.calls, id)
	}
	c.callsMu.Unlock()

	_ = conn.Close()

	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
}
