package websocket

import "errors"

// Protocol error types defined by RFC 6455 Section 7.4.1.

var (
	// ErrProtocolError indicates a violation of the WebSocket protocol.
	// RFC 6455 Section 7.4.1: Status code 1002.
	//
	// Returned by readFrameHeader when a 64-bit extended payload length
	// has its most significant bit set. Other violations have their own
	// sentinels below (ErrReservedBits, ErrMaskUnexpected, ...).
	ErrProtocolError = errors.New("websocket: protocol error")

	// ErrFrameTooLarge indicates frame exceeds maximum allowed size.
	// Implementation-specific limit (not defined in RFC).
	ErrFrameTooLarge = errors.New("websocket: frame too large")

	// ErrReservedBits indicates RSV1/RSV2/RSV3 bits are set.
	// RFC 6455 Section 5.2: Reserved bits must be 0 unless extension negotiated.
	// Status code 1002 (protocol error).
	ErrReservedBits = errors.New("websocket: reserved bits must be 0")

	// ErrInvalidOpcode indicates an unknown or reserved opcode.
	// RFC 6455 Section 5.2: Opcodes 0x3-0x7 and 0xB-0xF are reserved.
	// Status code 1002 (protocol error).
	ErrInvalidOpcode = errors.New("websocket: invalid opcode")

	// ErrControlFragmented indicates a control frame with FIN=0.
	// RFC 6455 Section 5.5: Control frames must NOT be fragmented.
	// Status code 1002 (protocol error).
	ErrControlFragmented = errors.New("websocket: control frame must not be fragmented")

	// ErrControlTooLarge indicates control frame payload > 125 bytes.
	// RFC 6455 Section 5.5: Control frame payload length must be <= 125.
	// Status code 1002 (protocol error).
	ErrControlTooLarge = errors.New("websocket: control frame payload too large")

	// ErrMaskUnexpected indicates a masked frame arrived from the server.
	// RFC 6455 Section 5.3: Server-to-client frames MUST NOT be masked.
	// Status code 1002 (protocol error).
	ErrMaskUnexpected = errors.New("websocket: server frames must not be masked")

	// Handshake error types (RFC 6455 Section 4).

	// ErrUnsupportedWebSocket indicates the server did not upgrade the connection.
	// It is part of the public error set but is not returned by the handshake:
	// a rejected status line or a missing or invalid mandatory header is
	// reported as ErrConnectFailed.
	ErrUnsupportedWebSocket = errors.New("websocket: server did not upgrade the connection")

	// ErrUnsupportedSubprotocol indicates a subprotocol was requested but the
	// server did not select one the client offered.
	ErrUnsupportedSubprotocol = errors.New("websocket: server selected unsupported subprotocol")

	// Connection / session error types (runtime errors).

	// ErrClosed indicates a write was attempted on a session whose
	// transport has already been torn down (as opposed to one that was
	// never connected in the first place; see ErrNotConnected).
	ErrClosed = errors.New("websocket: connection closed")

	// ErrIsConnected indicates Connect was called on an already-connected session.
	ErrIsConnected = errors.New("websocket: session already connected")

	// ErrNotConnected indicates an operation requiring a live connection was
	// attempted before Connect or after Disconnect.
	ErrNotConnected = errors.New("websocket: session not connected")

	// ErrConnectFailed indicates DNS resolution, TCP/TLS connect, or handshake
	// validation failed.
	ErrConnectFailed = errors.New("websocket: failed to connect to the server")

	// ErrNoSocket indicates the underlying transport could not be created.
	ErrNoSocket = errors.New("websocket: failed to create socket")

	// ErrDisconnect indicates the peer performed a clean WebSocket close.
	ErrDisconnect = errors.New("websocket: disconnected by peer")

	// ErrNoHead indicates a read was attempted mid-frame without first
	// consuming the current frame's header.
	ErrNoHead = errors.New("websocket: frame header not yet read")

	// ErrNoCloseReceived indicates no CLOSE frame has been observed from the
	// server yet. GetCloseReason does not return it; it reports that case
	// with ok == false.
	ErrNoCloseReceived = errors.New("websocket: no close frame received yet")

	// ErrResourceExhausted indicates a growable buffer (reassembly cache,
	// active-session table) could not grow further under its configured cap.
	ErrResourceExhausted = errors.New("websocket: resource exhausted")

	// ErrInvalidMessageType indicates an invalid message type for an operation,
	// e.g. attempting to write a message with an opcode other than text/binary.
	ErrInvalidMessageType = errors.New("websocket: invalid message type")

	// ErrInvalidURL indicates a malformed ws:// or wss:// URL.
	ErrInvalidURL = errors.New("websocket: invalid URL")

	// ErrTimeout indicates a configured read or write deadline elapsed.
	ErrTimeout = errors.New("websocket: i/o timeout")
)
