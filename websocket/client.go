package websocket

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CallbackFunc is a user event handler invoked by the worker. Returning
// a non-nil error signals the session to transition to the error state.
type CallbackFunc func(*WebSocket) error

// Handler dispatches the four lifecycle events a session can raise. It
// replaces four raw function pointers with a single interface, so the
// worker always has exactly one thing to call regardless of whether the
// user registered callbacks individually (OnOpen/OnMessage/...) or
// supplied their own Handler via SetHandler.
type Handler interface {
	OnOpen(*WebSocket) error
	OnMessage(*WebSocket) error
	OnClose(*WebSocket) error
	OnError(*WebSocket) error
}

// funcHandler adapts four independently-settable callbacks to Handler.
type funcHandler struct {
	open, message, close, errFn CallbackFunc
}

func (h *funcHandler) OnOpen(ws *WebSocket) error {
	if h.open == nil {
		return nil
	}
	return h.open(ws)
}

func (h *funcHandler) OnMessage(ws *WebSocket) error {
	if h.message == nil {
		return nil
	}
	return h.message(ws)
}

func (h *funcHandler) OnClose(ws *WebSocket) error {
	if h.close == nil {
		return nil
	}
	return h.close(ws)
}

func (h *funcHandler) OnError(ws *WebSocket) error {
	if h.errFn == nil {
		return nil
	}
	return h.errFn(ws)
}

// Frame is the public view of a single delivered (and possibly
// reassembled) message, or of a message about to be sent.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// WebSocket is a single client-side session handle. It is created with
// New, configured with the Set*/Add* methods, and handed to the
// background worker via Connect. Once connected, it is owned by the
// worker: the only safe operations from user code are the setters
// documented as callable after Connect (WriteData, Disconnect,
// GetCloseReason) plus whatever the registered callbacks do with the
// handle they're given.
type WebSocket struct {
	mu sync.Mutex

	url         string
	subprotocol string
	headers     headerTable

	handler Handler
	logger  zerolog.Logger

	sess  *session
	cache reassembly

	// readTimeout bounds how long the reader goroutine's Peek may block
	// between frames once monitoring starts; zero means block forever.
	readTimeout time.Duration

	state       fsmState
	errorReason string

	connectOK  bool
	connectErr error

	// detached is set once Disconnect has been called; it tells stateExit
	// not to fire onclose for a handle the user no longer holds.
	detached bool

	resumeCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once

	worker *worker
}

// New creates an unconnected session handle.
func New() (*WebSocket, error) {
	return &WebSocket{
		handler:  &funcHandler{},
		logger:   zerolog.Nop(),
		state:    stateInit,
		resumeCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}, nil
}

// SetLogger attaches a zerolog.Logger for diagnostic events. The default
// is a no-op logger, so the package is silent unless a caller opts in.
func (ws *WebSocket) SetLogger(l zerolog.Logger) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.logger = l
}

// SetURL sets the ws:// or wss:// URL to connect to. Must be called
// before Connect.
func (ws *WebSocket) SetURL(url string) error {
	if _, err := parseURL(url); err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.connected() {
		return ErrIsConnected
	}
	ws.url = url
	return nil
}

// SetTimeout bounds how long the background reader may block waiting for
// the next frame once the session is connected; zero (the default) means
// block indefinitely. It has no effect on a session already past Connect
// until the next read cycle picks it up.
func (ws *WebSocket) SetTimeout(d time.Duration) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.readTimeout = d
}

// SetSubprotocol sets the single subprotocol requested during the
// handshake. Optional.
func (ws *WebSocket) SetSubprotocol(name string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.subprotocol = name
}

// AddHeader stages a request header to send during the handshake.
// Calling it again with the same key replaces the previous value.
func (ws *WebSocket) AddHeader(key, value string) error {
	if key == "" {
		return ErrInvalidURL
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.headers.put(key, value)
	return nil
}

// SetCloseReason sets the status code and reason this client will send
// when it initiates or echoes a CLOSE. It applies only to a session that
// has already connected; a call made before the connection exists is
// not kept, and the default code 1000 with an empty reason is used.
func (ws *WebSocket) SetCloseReason(code CloseCode, reason string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.clientCloseLocked(code, reason)
}

func (ws *WebSocket) clientCloseLocked(code CloseCode, reason string) {
	if ws.sess != nil {
		ws.sess.clientClose = closeInfo{code: code, reason: reason, present: true}
	}
}

// GetCloseReason reports the CLOSE status code and reason received from
// the server, if any. ok is false until a CLOSE has actually been
// observed, and true with the code/reason populated once one lands;
// there is no error-shaped result for the successful case.
func (ws *WebSocket) GetCloseReason() (code CloseCode, reason string, ok bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.sess == nil || !ws.sess.serverClose.present {
		return 0, "", false
	}
	return ws.sess.serverClose.code, ws.sess.serverClose.reason, true
}

// ErrorReason returns the most recent error observed by the session's
// FSM, if it ever entered the error state.
func (ws *WebSocket) ErrorReason() string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.errorReason
}

// Handler fields must be set before Connect to race-free apply.

// OnOpen registers the callback fired once the handshake completes.
func (ws *WebSocket) OnOpen(fn CallbackFunc) { ws.funcs().open = fn }

// OnMessage registers the callback fired for every reassembled message.
func (ws *WebSocket) OnMessage(fn CallbackFunc) { ws.funcs().message = fn }

// OnClose registers the callback fired once per session lifecycle, after
// the connection has been torn down.
func (ws *WebSocket) OnClose(fn CallbackFunc) { ws.funcs().close = fn }

// OnError registers the callback fired when the session enters the
// error state.
func (ws *WebSocket) OnError(fn CallbackFunc) { ws.funcs().errFn = fn }

// SetHandler replaces the whole callback dispatch table with a
// caller-supplied Handler, for users who prefer a single type over four
// individually-registered functions.
func (ws *WebSocket) SetHandler(h Handler) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.handler = h
}

func (ws *WebSocket) funcs() *funcHandler {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	fh, ok := ws.handler.(*funcHandler)
	if !ok {
		fh = &funcHandler{}
		ws.handler = fh
	}
	return fh
}

func (ws *WebSocket) connected() bool {
	return ws.sess != nil && ws.sess.connected
}

// Connect enqueues the session with the singleton worker. The worker
// performs the actual dial and handshake on its own goroutine and fires
// onopen once it succeeds.
func (ws *WebSocket) Connect() error {
	w, err := currentWorker()
	if err != nil {
		return err
	}

	ws.mu.Lock()
	if ws.url == "" {
		ws.mu.Unlock()
		return ErrInvalidURL
	}
	if ws.state != stateInit || ws.connected() {
		ws.mu.Unlock()
		return ErrIsConnected
	}
	ws.worker = w
	ws.mu.Unlock()

	return w.enqueue(ws)
}

// Disconnect detaches the user's handle and asks the worker to close the
// session. onclose will not fire for a detached handle.
func (ws *WebSocket) Disconnect() error {
	ws.mu.Lock()
	ws.detached = true
	if ws.state == stateMonitor || ws.state == stateRead {
		ws.state = stateClose
	}
	ws.mu.Unlock()

	w, err := currentWorker()
	if err == nil {
		w.wake()
	}
	return nil
}

// Close releases any resources still held by a handle that was never
// connected, or that has already reached the exit state.
func (ws *WebSocket) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.sess != nil {
		return ws.sess.disconnect()
	}
	return nil
}

// ReadData is called from within an OnMessage callback. It reports the
// message type and hands back a view into the session's reassembly
// buffer; the slice is only valid for the duration of the callback.
func (ws *WebSocket) ReadData(f *Frame) (int, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.sess == nil {
		return 0, ErrNotConnected
	}
	f.Type = MessageType(ws.cache.lastType)
	f.Payload = ws.cache.message()
	return len(f.Payload), nil
}

// WriteData sends a single complete TEXT or BINARY message.
func (ws *WebSocket) WriteData(f *Frame) error {
	ws.mu.Lock()
	sess := ws.sess
	ws.mu.Unlock()

	if sess == nil {
		return ErrNotConnected
	}
	if !sess.connected {
		return ErrClosed
	}
	if f.Type != TextMessage && f.Type != BinaryMessage {
		return ErrInvalidMessageType
	}
	return sess.write(byte(f.Type), f.Payload)
}

// WriteSlice sends one fragment of a larger message; kind selects
// whether this is the first, a middle, or the final fragment.
func (ws *WebSocket) WriteSlice(f *Frame, kind SliceKind) error {
	ws.mu.Lock()
	sess := ws.sess
	ws.mu.Unlock()

	if sess == nil {
		return ErrNotConnected
	}
	if !sess.connected {
		return ErrClosed
	}
	return sess.writeSlice(byte(f.Type), f.Payload, kind)
}
