package websocket

import "encoding/binary"

// advanceToDataFrame consumes and responds to any control frames
// (PING/PONG/CLOSE) sitting ahead of the next data frame, leaving the
// session's cursor positioned at a data frame's header once it returns
// with no error. This is the session's control-frame handler: PING is
// auto-answered with PONG, PONG is consumed silently, and CLOSE is
// echoed back and recorded so GetCloseReason can later report it.
func (s *session) advanceToDataFrame() error {
	for {
		if err := s.ensureHead(); err != nil {
			return err
		}
		if isDataFrame(s.frameType) {
			return nil
		}

		payload := make([]byte, s.remainLen)
		if len(payload) > 0 {
			if _, err := s.readPayload(payload); err != nil {
				return err
			}
		} else {
			s.haveHead = false
		}

		switch s.frameType {
		case opcodePing:
			if err := s.sendPong(payload); err != nil {
				return err
			}
		case opcodePong:
			// No action required; an unsolicited or answered PONG.
		case opcodeClose:
			s.handleCloseFrame(payload)
			return ErrDisconnect
		}
	}
}

// handleCloseFrame parses a CLOSE frame's optional status code and
// reason, records it as the server's close, and echoes a CLOSE back to
// complete the closing handshake (RFC 6455 Section 7.1.7).
func (s *session) handleCloseFrame(payload []byte) {
	code := CloseNoStatusReceived
	reason := ""
	if len(payload) >= 2 {
		code = CloseCode(binary.BigEndian.Uint16(payload))
		reason = string(payload[2:])
	}

	s.serverClose = closeInfo{code: code, reason: reason, present: true}

	echoCode := s.clientClose.code
	if echoCode == 0 {
		echoCode = CloseNormalClosure
	}
	_ = s.sendClose(echoCode, s.clientClose.reason)
}
