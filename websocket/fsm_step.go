package websocket

// stepPreMonitor advances a session whose state is INIT or READ — the
// "connect/read" half of the worker's two-phase tick. Called with
// ws.mu held; releases it only around the user callback invocation so
// the callback can freely call back into ws (ReadData, WriteData,
// GetCloseReason, ...) without deadlocking on its own handle.
func (ws *WebSocket) stepPreMonitor() {
	switch ws.state {
	case stateInit:
		ws.stepInit()
	case stateRead:
		ws.stepRead()
	}
}

func (ws *WebSocket) stepInit() {
	if ws.connectErr == nil && !ws.connectOK {
		return // connect goroutine hasn't reported yet
	}
	if ws.connectErr != nil {
		// applyEvent already moved state to stateError.
		return
	}

	if ws.detached {
		ws.state = stateClose
		return
	}
	ws.state = stateMonitor
	if err := ws.invoke(ws.handlerSnapshot().OnOpen); err != nil {
		ws.state = stateError
		ws.errorReason = err.Error()
		return
	}
	if ws.detached {
		ws.state = stateClose
		return
	}
	ws.wakeReaderLocked()
}

// stepRead drains the frame(s) that triggered the readable event,
// reassembling fragments until a complete message is available, then
// fires onmessage. Interleaved control frames are consumed and answered
// by advanceToDataFrame along the way.
func (ws *WebSocket) stepRead() {
	sess := ws.sess

	if err := sess.advanceToDataFrame(); err != nil {
		ws.finishReadErr(err)
		return
	}

	ws.cache.lastType = sess.frameType
	for {
		chunk := make([]byte, sess.remainLen)
		if len(chunk) > 0 {
			if _, err := sess.readPayload(chunk); err != nil {
				ws.finishReadErr(err)
				return
			}
			if err := ws.cache.append(chunk); err != nil {
				ws.finishReadErr(err)
				return
			}
		}
		if !sess.isSlice {
			break
		}
		if err := sess.advanceToDataFrame(); err != nil {
			ws.finishReadErr(err)
			return
		}
	}

	err := ws.invoke(ws.handlerSnapshot().OnMessage)
	ws.cache.reset()
	if err != nil {
		ws.state = stateError
		ws.errorReason = err.Error()
		return
	}

	ws.state = stateMonitor
	if ws.detached {
		ws.state = stateClose
		return
	}
	ws.wakeReaderLocked()
}

// finishReadErr folds an error observed while draining frames into the
// session's state: a clean peer CLOSE moves to CLOSE, anything else
// moves to ERROR.
func (ws *WebSocket) finishReadErr(err error) {
	ws.cache.reset()
	if err == ErrDisconnect {
		ws.state = stateClose
		return
	}
	ws.state = stateError
	ws.errorReason = err.Error()
}

// stepPostMonitor advances a session whose state is ERROR or CLOSE — the
// "error/close/exit" half of the tick.
func (ws *WebSocket) stepPostMonitor() {
	switch ws.state {
	case stateError:
		if err := ws.invoke(ws.handlerSnapshot().OnError); err != nil {
			ws.logger.Error().Err(err).Msg("onerror callback returned an error")
		}
		ws.state = stateClose
	case stateClose:
		ws.closeAndExit()
	}
}

// closeAndExit performs the closing handshake (if not already done by
// the peer), tears down the transport, stops this session's goroutine,
// fires onclose exactly once (unless the handle was already detached by
// Disconnect), and marks the session exited so the worker reaps it.
func (ws *WebSocket) closeAndExit() {
	if ws.sess != nil && ws.sess.connected {
		if !ws.sess.serverClose.present {
			code := ws.sess.clientClose.code
			if code == 0 {
				code = CloseNormalClosure
			}
			_ = ws.sess.sendClose(code, ws.sess.clientClose.reason)
		}
		_ = ws.sess.disconnect()
	}
	ws.stop()

	if !ws.detached {
		_ = ws.invoke(ws.handlerSnapshot().OnClose)
	}
	ws.detached = true
	ws.state = stateExit
}

// invoke runs fn with ws.mu released, so callbacks can call back into
// the public API on the same handle, then reacquires it.
func (ws *WebSocket) invoke(fn CallbackFunc) error {
	ws.mu.Unlock()
	defer ws.mu.Lock()
	return fn(ws)
}

func (ws *WebSocket) handlerSnapshot() Handler {
	return ws.handler
}

// wakeReaderLocked resumes this session's reader goroutine for another
// peek at the socket. Called with ws.mu held.
func (ws *WebSocket) wakeReaderLocked() {
	select {
	case ws.resumeCh <- struct{}{}:
	default:
	}
}

// stop signals this session's owned goroutines to exit. Safe to call
// more than once.
func (ws *WebSocket) stop() {
	ws.stopOnce.Do(func() { close(ws.stopCh) })
}
