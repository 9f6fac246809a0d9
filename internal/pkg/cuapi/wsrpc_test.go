package cuapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/jake-scott/switchbee-go/internal/pkg/device"
)

// inbound frame as the hub sees it; params stay raw so tests can echo them
type hubFrame struct {
	CommandID int64           `json:"commandId"`
	Command   string          `json:"command"`
	Params    json.RawMessage `json:"params"`
	Token     string          `json:"token"`
}

// wsHub emulates the Central Unit's WebSocket RPC socket
type wsHub struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	logins int
	token  string

	// buffer holdCount frames for holdCommand, then answer them in
	// reverse order, echoing the params as the response data
	holdCommand string
	holdCount   int
	held        []hubFrame

	// swallow these commands so their calls never resolve
	silentCommand string
}

func newWsHub(t *testing.T) *wsHub {
	return &wsHub{t: t}
}

func (h *wsHub) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", h.serveWs)
	return r
}

func (h *wsHub) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.t.Errorf("upgrade: %v", err)
		return
	}

	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()

	for {
		var frame hubFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h.serve(conn, frame)
	}
}

func (h *wsHub) write(conn *websocket.Conn, id int64, status, data string) {
	frame := map[string]interface{}{
		"commandId": id,
		"status":    status,
		"data":      json.RawMessage(data),
	}
	if err := conn.WriteJSON(frame); err != nil {
		h.t.Errorf("hub write: %v", err)
	}
}

func (h *wsHub) serve(conn *websocket.Conn, frame hubFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if frame.Command == CommandLogin {
		if frame.Token != "" {
			h.t.Error("login frame carried a token")
		}
		h.logins++
		h.token = fmt.Sprintf("tok-%d", h.logins)
		h.write(conn, frame.CommandID, StatusOK,
			fmt.Sprintf(`{"token": %q, "expiration": 1700000000000}`, h.token))
		return
	}

	if h.token == "" || frame.Token != h.token {
		h.write(conn, frame.CommandID, StatusInvalidToken, `null`)
		return
	}

	if frame.Command == h.silentCommand {
		return
	}

	if frame.Command == h.holdCommand {
		h.held = append(h.held, frame)
		if len(h.held) == h.holdCount {
			for i := len(h.held) - 1; i >= 0; i-- {
				f := h.held[i]
				h.write(conn, f.CommandID, StatusOK, string(f.Params))
			}
			h.held = nil
		}
		return
	}

	switch frame.Command {
	case CommandGetConfiguration:
		h.write(conn, frame.CommandID, StatusOK, testConfiguration)
	case CommandGetMultipleStates:
		h.write(conn, frame.CommandID, StatusOK, testStates)
	case CommandStats:
		h.write(conn, frame.CommandID, StatusOK, `{"uptime": 1234}`)
	case CommandOperate:
		h.write(conn, frame.CommandID, StatusOK, `"ON"`)
	default:
		h.write(conn, frame.CommandID, StatusFailed, `null`)
	}
}

// push sends an unsolicited notification frame to the client
func (h *wsHub) push(notificationType, data string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	frame := map[string]interface{}{
		"notificationType": notificationType,
		"data":             json.RawMessage(data),
	}
	if err := h.conn.WriteJSON(frame); err != nil {
		h.t.Errorf("hub push: %v", err)
	}
}

// pushRaw sends an arbitrary message to the client, bypassing the frame
// shape entirely
func (h *wsHub) pushRaw(msgType int, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.conn.WriteMessage(msgType, data); err != nil {
		h.t.Errorf("hub pushRaw: %v", err)
	}
}

func (h *wsHub) dropConnection() {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.conn.Close()
}

func newWsClientForTest(t *testing.T, hub *wsHub) *WsRPC {
	server := httptest.NewServer(hub.router())
	t.Cleanup(server.Close)

	c := NewWsRPCClient("test-unit", "user", "secret")
	c.url = "ws" + strings.TrimPrefix(server.URL, "http")
	return c
}

func TestWsRPCConnect(t *testing.T) {
	hub := newWsHub(t)
	c := newWsClientForTest(t, hub)

	if c.Connected() {
		t.Fatal("client connected before Connect")
	}

	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if !c.Connected() {
		t.Fatal("client not connected after Connect")
	}
	if c.Name() != "Home" {
		t.Errorf("Name() = %q", c.Name())
	}
	if n := len(c.Devices()); n != 5 {
		t.Errorf("got %d devices, want 5", n)
	}

	dev, ok := c.Device(115)
	if !ok {
		t.Fatal("device 115 missing")
	}
	if dev.(*device.Thermostat).TargetTemperature != 22 {
		t.Error("thermostat state not synced over the socket")
	}

	if err := c.Connect(); err == nil {
		t.Error("second Connect on a live client succeeded")
	}
}

func TestWsRPCCallWithoutConnect(t *testing.T) {
	c := NewWsRPCClient("test-unit", "user", "secret")

	_, err := c.GetStats()
	if _, ok := err.(*ConnectionError); !ok {
		t.Errorf("call before Connect error = %T (%v)", err, err)
	}
}

func TestWsRPCOutOfOrderResponses(t *testing.T) {
	hub := newWsHub(t)
	hub.holdCommand = CommandGetState
	hub.holdCount = 2

	c := newWsClientForTest(t, hub)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// two concurrent calls, answered in reverse order; each must still
	// receive its own response
	results := make(chan error, 2)
	for _, id := range []int{101, 102} {
		go func(id int) {
			env, err := c.GetState(id)
			if err != nil {
				results <- err
				return
			}
			if string(env.Data) != fmt.Sprintf("%d", id) {
				results <- fmt.Errorf("call for %d got data %s", id, env.Data)
				return
			}
			results <- nil
		}(id)
	}

	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			t.Error(err)
		}
	}

	c.callsMu.Lock()
	pending := len(c.calls)
	c.callsMu.Unlock()
	if pending != 0 {
		t.Errorf("%d calls left pending after resolution", pending)
	}
}

func TestWsRPCDisconnectCancelsPending(t *testing.T) {
	hub := newWsHub(t)
	hub.silentCommand = CommandStats

	c := newWsClientForTest(t, hub)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}

	const pending = 3
	results := make(chan error, pending)
	for i := 0; i < pending; i++ {
		go func() {
			_, err := c.GetStats()
			results <- err
		}()
	}

	// wait for all the calls to register before dropping the socket
	deadline := time.Now().Add(5 * time.Second)
	for {
		c.callsMu.Lock()
		n := len(c.calls)
		c.callsMu.Unlock()
		if n == pending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d calls registered", n, pending)
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.dropConnection()

	for i := 0; i < pending; i++ {
		err := <-results
		if _, ok := err.(*ConnectionClosedError); !ok {
			t.Errorf("cancelled call error = %T (%v)", err, err)
		}
	}

	c.callsMu.Lock()
	left := len(c.calls)
	c.callsMu.Unlock()
	if left != 0 {
		t.Errorf("%d pending calls survived the disconnect", left)
	}

	// the receive loop clears the connection as part of teardown
	deadline = time.Now().Add(5 * time.Second)
	for c.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("client still connected after hub dropped the socket")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWsRPCNotification(t *testing.T) {
	hub := newWsHub(t)
	c := newWsClientForTest(t, hub)

	received := make(chan Notification, 1)
	c.SubscribeUpdates(func(n Notification) {
		received <- n
	})

	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	hub.push("UNIT_CHANGED", `{"id": 111, "name": "Spots", "newValue": 80}`)

	select {
	case n := <-received:
		if n.Type != "UNIT_CHANGED" || n.Data.ID == nil || *n.Data.ID != 111 {
			t.Errorf("notification = %+v", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification never delivered")
	}

	// the registry is updated before the handler runs
	dev, ok := c.Device(111)
	if !ok {
		t.Fatal("device 111 missing")
	}
	if dev.(*device.Dimmer).Brightness != 80 {
		t.Errorf("brightness = %d, want 80", dev.(*device.Dimmer).Brightness)
	}
}

func TestWsRPCUnknownResponseID(t *testing.T) {
	hub := newWsHub(t)
	c := newWsClientForTest(t, hub)

	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// a response nobody asked for is dropped without disturbing the loop
	hub.pushRaw(websocket.TextMessage,
		[]byte(`{"commandId": 9999, "status": "OK", "data": null}`))

	if _, err := c.GetStats(); err != nil {
		t.Errorf("call after stray response: %v", err)
	}
	if !c.Connected() {
		t.Error("stray response killed the connection")
	}
}

func TestWsRPCMalformedFramesAreSkipped(t *testing.T) {
	hub := newWsHub(t)
	c := newWsClientForTest(t, hub)

	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	hub.pushRaw(websocket.BinaryMessage, []byte{0xde, 0xad, 0xbe, 0xef})
	hub.pushRaw(websocket.TextMessage, []byte(`{not json`))
	// neither a response nor a notification
	hub.pushRaw(websocket.TextMessage, []byte(`{"status": "OK"}`))

	// the loop survives all three and still serves calls
	if _, err := c.GetStats(); err != nil {
		t.Errorf("call after malformed frames: %v", err)
	}
	if !c.Connected() {
		t.Error("malformed frames killed the connection")
	}
}

func TestWsRPCCallTimeout(t *testing.T) {
	hub := newWsHub(t)
	hub.silentCommand = CommandStats

	c := newWsClientForTest(t, hub).WithCallTimeout(100 * time.Millisecond)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err := c.GetStats()
	if _, ok := err.(*ConnectionError); !ok {
		t.Fatalf("timed out call error = %T (%v)", err, err)
	}

	// the abandoned call stays registered until disconnect cleanup
	c.callsMu.Lock()
	pending := len(c.calls)
	c.callsMu.Unlock()
	if pending != 1 {
		t.Errorf("%d pending calls after timeout, want 1", pending)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for c.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("client still connected after Close")
		}
		time.Sleep(10 * time.Millisecond)
	}

	c.callsMu.Lock()
	pending = len(c.calls)
	c.callsMu.Unlock()
	if pending != 0 {
		t.Errorf("disconnect cleanup left %d pending calls", pending)
	}
}

func TestWsRPCClose(t *testing.T) {
	hub := newWsHub(t)
	c := newWsClientForTest(t, hub)

	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for c.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("client still connected after Close")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// closing an already closed client is a no-op
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
