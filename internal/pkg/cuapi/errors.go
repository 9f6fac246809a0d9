package cuapi

import "fmt"

// AuthenticationError indicates a failed login or an invalid/expired token.
// The session token is cleared before this is returned, so the next
// authenticated call logs in from scratch.
type AuthenticationError struct {
	Status string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("central unit authentication failed: %s", e.Status)
}

// DeviceOfflineError indicates the unit reported the target device offline.
// The operation is not retried.
type DeviceOfflineError struct {
	Response string
}

func (e *DeviceOfflineError) Error() string {
	return fmt.Sprintf("central unit reports the device offline: %s", e.Response)
}

// ProtocolError is the catch-all for malformed responses, non-success
// statuses and transport failures.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ConnectionError indicates a WebSocket handshake failure or an RPC call
// that timed out waiting for its response.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ConnectionClosedError indicates the socket closed while a call was
// waiting for its response.
type ConnectionClosedError struct{}

func (e *ConnectionClosedError) Error() string {
	return "connection to the central unit was closed"
}

// InvalidMessageError indicates a non-text or unparsable frame.  The
// receive loop logs these and carries on.
type InvalidMessageError struct {
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("invalid message from the central unit: %s", e.Reason)
}
