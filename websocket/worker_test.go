package websocket

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestWorker() *worker {
	return &worker{
		wakeup:  make(chan wakeupSignal, MaxActiveSessions),
		results: make(chan sessionEvent, MaxActiveSessions),
		logger:  zerolog.Nop(),
	}
}

func newTestWebSocket() *WebSocket {
	ws, _ := New()
	return ws
}

func TestWorker_EnqueueRejectsOverCapacity(t *testing.T) {
	w := newTestWorker()
	for i := 0; i < MaxActiveSessions; i++ {
		if err := w.enqueue(newTestWebSocket()); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := w.enqueue(newTestWebSocket()); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("got %v, want ErrResourceExhausted", err)
	}
}

func TestWorker_WakeIsNonBlocking(t *testing.T) {
	w := newTestWorker()
	for i := 0; i < cap(w.wakeup); i++ {
		w.wake()
	}
	// Channel is now full; wake must not block even so.
	done := make(chan struct{})
	go func() {
		w.wake()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("wake blocked on a full wakeup channel")
	}
}

func TestWorker_ApplyEvent_IgnoresConnectWhenNotInit(t *testing.T) {
	w := newTestWorker()
	ws := newTestWebSocket()
	ws.state = stateMonitor // already moved past Init

	w.applyEvent(sessionEvent{ws: ws, isConnect: true, err: errors.New("late failure")})

	if ws.state != stateMonitor {
		t.Fatalf("stale connect event mutated state to %v", ws.state)
	}
}

func TestWorker_ApplyEvent_ConnectSuccess(t *testing.T) {
	w := newTestWorker()
	ws := newTestWebSocket()

	w.applyEvent(sessionEvent{ws: ws, isConnect: true, err: nil})

	if !ws.connectOK || ws.connectErr != nil {
		t.Fatalf("connectOK=%v connectErr=%v", ws.connectOK, ws.connectErr)
	}
	if ws.state != stateInit {
		t.Fatalf("state = %v, want stateInit (stepInit fires onopen, not applyEvent)", ws.state)
	}
}

func TestWorker_ApplyEvent_ConnectFailureMovesToError(t *testing.T) {
	w := newTestWorker()
	ws := newTestWebSocket()
	failure := errors.New("dial failed")

	w.applyEvent(sessionEvent{ws: ws, isConnect: true, err: failure})

	if ws.state != stateError {
		t.Fatalf("state = %v, want stateError", ws.state)
	}
	if ws.errorReason != failure.Error() {
		t.Fatalf("errorReason = %q, want %q", ws.errorReason, failure.Error())
	}
}

func TestWorker_ApplyEvent_IgnoresReadableWhenNotMonitoring(t *testing.T) {
	w := newTestWorker()
	ws := newTestWebSocket()
	ws.state = stateClose

	w.applyEvent(sessionEvent{ws: ws, err: nil})

	if ws.state != stateClose {
		t.Fatalf("stale readable event mutated state to %v", ws.state)
	}
}

func TestWorker_ApplyEvent_ReadableMovesToRead(t *testing.T) {
	w := newTestWorker()
	ws := newTestWebSocket()
	ws.state = stateMonitor

	w.applyEvent(sessionEvent{ws: ws, err: nil})

	if ws.state != stateRead {
		t.Fatalf("state = %v, want stateRead", ws.state)
	}
}

func TestWorker_Reap_RemovesExitedSessions(t *testing.T) {
	w := newTestWorker()
	stay := newTestWebSocket()
	stay.state = stateMonitor
	leave := newTestWebSocket()
	leave.state = stateExit

	w.active = []*WebSocket{stay, leave}
	w.reap()

	if len(w.active) != 1 || w.active[0] != stay {
		t.Fatalf("active after reap = %+v, want only %p", w.active, stay)
	}
}

func TestIsTimeoutErr(t *testing.T) {
	if isTimeoutErr(errors.New("plain error")) {
		t.Fatalf("plain error reported as timeout")
	}
	if isTimeoutErr(nil) {
		t.Fatalf("nil error reported as timeout")
	}
}
