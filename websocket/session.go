package websocket

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/lithammer/shortuuid/v4"
)

// SliceKind identifies which part of a fragmented message a frame
// carries, used by WriteSlice to pick the right opcode/FIN combination.
type SliceKind int

const (
	// SliceFirst carries the message's true opcode with FIN=0.
	SliceFirst SliceKind = iota
	// SliceMiddle carries opcode CONTINUATION with FIN=0.
	SliceMiddle
	// SliceEnd carries opcode CONTINUATION with FIN=1, completing the message.
	SliceEnd
)

// closeInfo records a CLOSE status code and reason, either the one the
// client intends to send or the one the server sent.
type closeInfo struct {
	code    CloseCode
	reason  string
	present bool
}

// session owns one logical WebSocket connection: the transport, the
// buffered reader/writer pair over it, the current frame's receive
// cursor, and close-reason bookkeeping. It is the half of a connection
// the worker drives; WebSocket is the handle the caller drives.
type session struct {
	id string

	t *transport
	r *bufio.Reader
	w *bufio.Writer

	writeMu sync.Mutex

	subprotocolNegotiated string

	// Current frame cursor: remainLen bytes of frameType remain to be
	// read from the wire before the next header may be parsed.
	remainLen uint64
	frameType byte
	isSlice   bool
	haveHead  bool

	clientClose closeInfo
	serverClose closeInfo

	connected bool
}

// connectSession dials, performs the opening handshake, and returns a
// ready-to-use session. subprotocol may be empty.
func connectSession(rawURL, subprotocol string, headers *headerTable) (*session, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}

	t, err := dialTransport(u.host, u.port, u.tls)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	key, err := newClientKey()
	if err != nil {
		_ = t.close()
		return nil, err
	}

	req := composeHandshakeRequest(u, key, subprotocol, headers)
	if err := t.writeFull(req); err != nil {
		_ = t.close()
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	r := bufio.NewReader(t.conn)
	result, err := readHandshakeResponse(r, key)
	if err != nil {
		_ = t.close()
		return nil, err
	}
	if subprotocol != "" && result.subprotocol != subprotocol {
		_ = t.close()
		return nil, ErrUnsupportedSubprotocol
	}

	return &session{
		id:                    shortuuid.New(),
		t:                     t,
		r:                     r,
		w:                     bufio.NewWriter(t.conn),
		subprotocolNegotiated: result.subprotocol,
		connected:             true,
	}, nil
}

// disconnect closes the transport. Safe to call more than once.
func (s *session) disconnect() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	return s.t.close()
}

// write sends a complete, unfragmented data message.
func (s *session) write(opcode byte, payload []byte) error {
	return s.writeFrame(&frame{fin: true, opcode: opcode, payload: payload})
}

// writeSlice sends one fragment of a larger message. The first slice
// carries the real opcode with FIN=0; middle slices use CONTINUATION
// with FIN=0; the end slice uses CONTINUATION with FIN=1.
func (s *session) writeSlice(opcode byte, payload []byte, kind SliceKind) error {
	f := &frame{payload: payload}
	switch kind {
	case SliceFirst:
		f.opcode = opcode
		f.fin = false
	case SliceMiddle:
		f.opcode = opcodeContinuation
		f.fin = false
	case SliceEnd:
		f.opcode = opcodeContinuation
		f.fin = true
	}
	return s.writeFrame(f)
}

func (s *session) writeFrame(f *frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeFrame(s.w, f)
}

// sendPing and sendPong send control frames with application data
// (<=125 bytes is enforced by writeFrame).
func (s *session) sendPing(payload []byte) error {
	return s.writeFrame(&frame{fin: true, opcode: opcodePing, payload: payload})
}

func (s *session) sendPong(payload []byte) error {
	return s.writeFrame(&frame{fin: true, opcode: opcodePong, payload: payload})
}

// sendClose sends a CLOSE frame carrying a big-endian status code
// followed by an optional UTF-8 reason (RFC 6455 Section 5.5.1).
func (s *session) sendClose(code CloseCode, reason string) error {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)
	return s.writeFrame(&frame{fin: true, opcode: opcodeClose, payload: payload})
}

// ensureHead parses the next frame header if the current one has been
// fully drained. Returns ErrNoHead semantics are implicit: callers only
// invoke this once remainLen==0.
func (s *session) ensureHead() error {
	if s.haveHead {
		return nil
	}
	f, payloadLen, err := readFrameHeader(s.r)
	if err != nil {
		return err
	}
	s.frameType = f.opcode
	s.remainLen = payloadLen
	s.isSlice = !f.fin
	s.haveHead = true
	return nil
}

// readPayload drains up to len(buf) bytes of the current frame's
// payload, never more than remainLen, and decrements remainLen by
// exactly the number of bytes read this call, not the cumulative
// position, so a short underlying read can never desync the cursor.
func (s *session) readPayload(buf []byte) (int, error) {
	if s.remainLen == 0 {
		s.haveHead = false
		return 0, nil
	}
	if uint64(len(buf)) > s.remainLen {
		buf = buf[:s.remainLen]
	}
	// Read through s.r, not the raw transport: reading the header may have
	// already buffered some or all of this payload.
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return 0, fmt.Errorf("%w: %w", errIOKindRead, err)
	}
	s.remainLen -= uint64(len(buf))
	if s.remainLen == 0 {
		s.haveHead = false
	}
	return len(buf), nil
}
