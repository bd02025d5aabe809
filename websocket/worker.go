package websocket

import (
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// MaxActiveSessions bounds how many sessions the worker drives at once;
// past this many concurrent sessions, Connect fails with
// ErrResourceExhausted instead of growing without bound.
const MaxActiveSessions = 10

// wakeupSignal is how goroutines outside the worker's own loop make the
// worker wake up and look at shared state.
type wakeupSignal int

const (
	wakeupIntake wakeupSignal = iota
	wakeupShutdown
)

// sessionEvent is what a session's owned goroutine (connect or reader)
// reports back to the worker. It carries no session logic itself — only
// "I observed X" — all state mutation happens on the worker goroutine.
type sessionEvent struct {
	ws        *WebSocket
	isConnect bool
	err       error
}

// worker is the process-wide singleton that multiplexes I/O for every
// active session on one goroutine: a fan-in channel fed by one reader
// goroutine per active session stands in for a single-threaded poll
// loop, at the cost of one parked goroutine per session instead of one
// pollfd entry.
type worker struct {
	mu      sync.Mutex
	pending []*WebSocket
	active  []*WebSocket

	wakeup  chan wakeupSignal
	results chan sessionEvent
	wg      sync.WaitGroup

	logger zerolog.Logger
}

var (
	workerMu  sync.Mutex
	theWorker *worker
)

// WorkerInit starts the singleton background worker. It must be called
// once before any session's Connect.
func WorkerInit() error {
	workerMu.Lock()
	defer workerMu.Unlock()
	if theWorker != nil {
		return ErrIsConnected
	}
	w := &worker{
		wakeup:  make(chan wakeupSignal, MaxActiveSessions),
		results: make(chan sessionEvent, MaxActiveSessions),
		logger:  zerolog.Nop(),
	}
	theWorker = w
	w.wg.Add(1)
	go w.run()
	return nil
}

// WorkerDeinit stops the worker and disconnects every session it still
// owns. Refuses to double-deinit.
func WorkerDeinit() error {
	workerMu.Lock()
	w := theWorker
	theWorker = nil
	workerMu.Unlock()

	if w == nil {
		return ErrNotConnected
	}
	w.wakeup <- wakeupShutdown
	w.wg.Wait()
	return nil
}

// SetWorkerLogger attaches a logger to the running worker for
// session-lifecycle diagnostics.
func SetWorkerLogger(l zerolog.Logger) error {
	w, err := currentWorker()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.logger = l
	w.mu.Unlock()
	return nil
}

func currentWorker() (*worker, error) {
	workerMu.Lock()
	defer workerMu.Unlock()
	if theWorker == nil {
		return nil, ErrNotConnected
	}
	return theWorker, nil
}

// enqueue adds ws to the pending-intake list and wakes the worker.
func (w *worker) enqueue(ws *WebSocket) error {
	w.mu.Lock()
	if len(w.pending)+len(w.active) >= MaxActiveSessions {
		w.mu.Unlock()
		return ErrResourceExhausted
	}
	w.pending = append(w.pending, ws)
	w.mu.Unlock()

	w.wake()
	return nil
}

func (w *worker) wake() {
	select {
	case w.wakeup <- wakeupIntake:
	default:
	}
}

// run is the worker's single event loop.
func (w *worker) run() {
	defer w.wg.Done()

	for {
		select {
		case sig := <-w.wakeup:
			if sig == wakeupShutdown {
				w.teardownAll()
				return
			}
			w.intake()
		case ev := <-w.results:
			w.applyEvent(ev)
		}
		w.stepAll()
		w.reap()
	}
}

// intake moves sessions from pending into active and starts their
// connect goroutine.
func (w *worker) intake() {
	w.mu.Lock()
	newly := w.pending
	w.pending = nil
	w.active = append(w.active, newly...)
	w.mu.Unlock()

	for _, ws := range newly {
		ws.worker = w
		go w.connectAndMonitor(ws)
	}
}

// connectAndMonitor performs the session's blocking connect+handshake,
// reports the outcome, and (on success) becomes that session's reader
// goroutine, the idiomatic stand-in for a poll() entry: it blocks in
// Peek until data, EOF, or an error is observed, then hands control
// back to the worker and waits to be told to look again.
func (w *worker) connectAndMonitor(ws *WebSocket) {
	sess, err := connectSession(ws.url, ws.subprotocol, &ws.headers)

	ws.mu.Lock()
	ws.sess = sess
	ws.mu.Unlock()

	if err != nil {
		w.logger.Debug().Str("url", ws.url).Err(err).Msg("session connect failed")
	} else {
		w.logger.Debug().Str("url", ws.url).Str("session", sess.id).Msg("session connected")
	}

	select {
	case w.results <- sessionEvent{ws: ws, isConnect: true, err: err}:
	case <-ws.stopCh:
		return
	}
	if err != nil {
		return
	}

	for {
		select {
		case <-ws.resumeCh:
		case <-ws.stopCh:
			return
		}

		ws.mu.Lock()
		timeout := ws.readTimeout
		ws.mu.Unlock()
		_ = sess.t.setDeadline(timeout)

		_, perr := sess.r.Peek(1)
		if perr != nil && isTimeoutErr(perr) {
			perr = ErrTimeout
		}
		if perr != nil && !errors.Is(perr, ErrTimeout) {
			ev := w.logger.Debug()
			if !errors.Is(perr, ErrDisconnect) && !IsTemporaryError(perr) {
				ev = w.logger.Error()
			}
			ev.Str("session", sess.id).Err(perr).Msg("session read ended")
		}
		select {
		case w.results <- sessionEvent{ws: ws, err: perr}:
		case <-ws.stopCh:
			return
		}
		if perr != nil {
			return
		}
	}
}

// isTimeoutErr reports whether err is a net.Conn deadline expiry, as
// opposed to a genuine I/O failure or peer close.
func isTimeoutErr(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// applyEvent folds one reported I/O outcome into the owning session's
// state. No callbacks run here; stepAll's FSM pass does that.
func (w *worker) applyEvent(ev sessionEvent) {
	ws := ev.ws
	ws.mu.Lock()
	defer ws.mu.Unlock()

	switch {
	case ev.isConnect:
		if ws.state != stateInit {
			w.logger.Debug().Str("url", ws.url).Msg("dropping stale connect event")
			return
		}
		ws.connectOK = ev.err == nil
		ws.connectErr = ev.err
		if ev.err != nil {
			ws.state = stateError
			ws.errorReason = ev.err.Error()
		}
	default:
		if ws.state != stateMonitor {
			w.logger.Debug().Str("url", ws.url).Msg("dropping stale read event")
			return
		}
		if ev.err != nil {
			ws.state = stateError
			ws.errorReason = ev.err.Error()
		} else {
			ws.state = stateRead
		}
	}
}

// stepAll runs the FSM's two-phase tick over a snapshot of the active
// list: phase 1 (connect/read progress) for every session first, then
// phase 2 (error/close/exit progress) for every session. This ordering
// guarantees onopen precedes onmessage and onclose fires exactly once,
// regardless of the arrival order of the underlying I/O events.
func (w *worker) stepAll() {
	w.mu.Lock()
	snapshot := append([]*WebSocket(nil), w.active...)
	w.mu.Unlock()

	for _, ws := range snapshot {
		ws.mu.Lock()
		if ws.state.phase() == phasePreMonitor {
			ws.stepPreMonitor()
		}
		ws.mu.Unlock()
	}
	for _, ws := range snapshot {
		ws.mu.Lock()
		if ws.state != stateMonitor && ws.state.phase() == phasePostMonitor {
			ws.stepPostMonitor()
		}
		ws.mu.Unlock()
	}
}

// reap removes sessions that reached stateExit from the active list.
func (w *worker) reap() {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.active[:0]
	for _, ws := range w.active {
		ws.mu.Lock()
		done := ws.state == stateExit
		ws.mu.Unlock()
		if !done {
			kept = append(kept, ws)
		}
	}
	w.active = kept
}

// teardownAll disconnects every session still owned by the worker, used
// only during WorkerDeinit.
func (w *worker) teardownAll() {
	w.mu.Lock()
	all := append(append([]*WebSocket(nil), w.active...), w.pending...)
	w.active = nil
	w.pending = nil
	w.mu.Unlock()

	w.logger.Debug().Int("sessions", len(all)).Msg("tearing down worker")

	for _, ws := range all {
		ws.mu.Lock()
		ws.stop()
		if ws.sess != nil {
			_ = ws.sess.disconnect()
		}
		ws.mu.Unlock()
	}
}
