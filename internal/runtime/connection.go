package runtime

import (
	"context"
	"sync"
	"time"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/renderflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
	socketpkg "github.com/drblury/renderflow/internal/runtime/socket"
)

// Manager owns exactly one push channel at a time and drives its lifecycle:
//
//	Disconnected -> Connecting -> Open -> { Closing | Reconnecting }
//
// An unexpected close (code != 1000) schedules a redial after
// BaseReconnectDelay * 2^(attempt-1); once MaxReconnectAttempts are
// exhausted a single reconnectFailed event fires and the channel stays
// Disconnected until Open is called again. A manual Close never reconnects
// and cancels any pending redial timer.
//
// Inbound frames are classified and republished on the Bus: always as a
// message event, plus the record's own type name, plus taskProgress or
// generatedImages when the classifier extracted them.
type Manager struct {
	bus     *Bus
	dialer  socketpkg.Dialer
	logger  loggingpkg.ServiceLogger
	metrics *Metrics

	mu         sync.Mutex
	state      ChannelState
	url        string
	cfg        ChannelConfig
	attempt    int
	generation uint64
	conn       socketpkg.FrameConn
	ctx        context.Context
	retryTimer *time.Timer

	// afterFunc schedules the reconnect timer; swapped in tests to capture
	// delays without sleeping.
	afterFunc func(d time.Duration, fn func()) *time.Timer
}

// NewManager constructs a Manager publishing on bus. A nil dialer selects the
// production websocket dialer.
func NewManager(bus *Bus, dialer socketpkg.Dialer, logger loggingpkg.ServiceLogger) *Manager {
	if bus == nil {
		bus = NewBus(logger)
	}
	if dialer == nil {
		dialer = socketpkg.NewWebsocketDialer()
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &Manager{
		bus:       bus,
		dialer:    dialer,
		logger:    logger,
		state:     StateDisconnected,
		afterFunc: time.AfterFunc,
	}
}

// Bus returns the event bus this manager publishes on.
func (m *Manager) Bus() *Bus { return m.bus }

// State reports the current channel state.
func (m *Manager) State() ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the channel is Open.
func (m *Manager) IsConnected() bool { return m.State() == StateOpen }

// Open starts a fresh connection to url. It is a warned no-op when the
// channel is already Open or Connecting; ErrAlreadyConnecting is returned so
// callers can tell. The context governs the dial handshakes, including
// redials.
func (m *Manager) Open(ctx context.Context, url string, cfg ChannelConfig) error {
	if url == "" {
		return errspkg.ErrChannelURLRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.state == StateOpen || m.state == StateConnecting {
		state := m.state
		m.mu.Unlock()
		m.logger.Warn("channel already open or connecting, ignoring open", loggingpkg.LogFields{
			"url":   url,
			"state": state.String(),
		})
		return errspkg.ErrAlreadyConnecting
	}

	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}

	m.url = url
	m.cfg = cfg.withDefaults()
	m.ctx = ctx
	m.attempt = 0
	m.state = StateConnecting
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	go m.dial(gen)
	return nil
}

// Send serializes payload and writes it to the open channel. Strings and
// byte slices pass through untouched; anything else is JSON-encoded. Fails
// without side effects when the channel is not Open.
func (m *Manager) Send(payload any) error {
	m.mu.Lock()
	if m.state != StateOpen || m.conn == nil {
		m.mu.Unlock()
		return errspkg.ErrNotConnected
	}
	conn := m.conn
	url := m.url
	m.mu.Unlock()

	var data []byte
	switch v := payload.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		encoded, err := jsoncodec.Marshal(v)
		if err != nil {
			return err
		}
		data = encoded
	}

	if err := conn.WriteMessage(data); err != nil {
		return &errspkg.TransportError{Op: "send", URL: url, Err: err}
	}
	return nil
}

// Close performs a manual close with the given code and reason, cancelling
// any pending reconnect. Closing with CloseNormal never triggers
// reconnection.
func (m *Manager) Close(code int, reason string) error {
	m.mu.Lock()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return nil
	}

	m.state = StateClosing
	conn := m.conn
	m.conn = nil
	m.attempt = 0
	m.generation++ // invalidates the running read loop
	m.mu.Unlock()

	var closeErr error
	if conn != nil {
		closeErr = conn.Close(code, reason)
	}

	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()

	m.metrics.setConnected(false)
	m.logger.Info("channel closed", loggingpkg.LogFields{"code": code, "reason": reason})
	m.bus.Emit(EventClose, CloseEvent{Code: code, Reason: reason})
	return closeErr
}

func (m *Manager) dial(gen uint64) {
	m.mu.Lock()
	if m.generation != gen || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	ctx := m.ctx
	url := m.url
	m.mu.Unlock()

	conn, err := m.dialer.DialContext(ctx, url)
	if err != nil {
		terr := &errspkg.TransportError{Op: "dial", URL: url, Err: err}
		m.logger.Error("channel dial failed", terr, loggingpkg.LogFields{"url": url})
		m.bus.Emit(EventError, terr)
		m.handleTransportClose(gen, CloseAbnormal, err.Error())
		return
	}

	m.mu.Lock()
	if m.generation != gen || m.state != StateConnecting {
		m.mu.Unlock()
		conn.Close(CloseNormal, "superseded")
		return
	}
	m.conn = conn
	m.state = StateOpen
	m.attempt = 0
	m.mu.Unlock()

	m.metrics.setConnected(true)
	m.logger.Info("channel open", loggingpkg.LogFields{"url": url})
	m.bus.Emit(EventOpen, nil)

	go m.readLoop(gen, conn)
}

func (m *Manager) readLoop(gen uint64, conn socketpkg.FrameConn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			code, reason := CloseAbnormal, err.Error()
			if ce, ok := err.(*socketpkg.CloseError); ok {
				code, reason = ce.Code, ce.Reason
			} else {
				terr := &errspkg.TransportError{Op: "read", URL: m.currentURL(), Err: err}
				m.bus.Emit(EventError, terr)
			}
			m.handleTransportClose(gen, code, reason)
			return
		}
		m.handleFrame(data)
	}
}

func (m *Manager) currentURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// handleFrame classifies one inbound frame and fans the results out on the
// bus in a fixed order: message, the named event, taskProgress,
// generatedImages.
func (m *Manager) handleFrame(data []byte) {
	cls := ClassifyFrame(data)
	m.metrics.incFrame(cls.Kind)

	if cls.Kind == FrameOpaque {
		m.logger.Debug("unrecognized frame passed through as opaque message", loggingpkg.LogFields{
			"frame": string(data),
		})
	}

	m.bus.Emit(EventMessage, cls)

	if cls.EventName != "" {
		m.bus.Emit(cls.EventName, cls.Record)
	}
	if cls.Progress != nil {
		m.metrics.incProgress()
		m.bus.Emit(EventTaskProgress, cls.Progress)
	}
	if cls.BatchArtifacts != nil {
		m.bus.Emit(EventGeneratedImages, cls.BatchArtifacts)
	}
}

// handleTransportClose runs the reconnect state machine for an unexpected
// close. gen guards against callbacks from superseded connections.
func (m *Manager) handleTransportClose(gen uint64, code int, reason string) {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil

	if code == CloseNormal {
		m.state = StateDisconnected
		m.attempt = 0
		m.mu.Unlock()

		m.metrics.setConnected(false)
		m.bus.Emit(EventClose, CloseEvent{Code: code, Reason: reason})
		return
	}

	if m.attempt >= m.cfg.MaxReconnectAttempts {
		m.state = StateDisconnected
		m.mu.Unlock()

		m.metrics.setConnected(false)
		m.metrics.incReconnectFailed()
		m.logger.Error("reconnect attempts exhausted", nil, loggingpkg.LogFields{
			"url":      m.currentURL(),
			"attempts": m.cfg.MaxReconnectAttempts,
		})
		m.bus.Emit(EventClose, CloseEvent{Code: code, Reason: reason})
		m.bus.Emit(EventReconnectFailed, nil)
		return
	}

	m.attempt++
	attempt := m.attempt
	delay := m.cfg.BaseReconnectDelay << (attempt - 1)
	m.state = StateReconnecting
	m.retryTimer = m.afterFunc(delay, func() { m.retry(gen) })
	m.mu.Unlock()

	m.metrics.setConnected(false)
	m.metrics.incReconnectAttempt()
	m.logger.Info("scheduling reconnect", loggingpkg.LogFields{
		"attempt": attempt,
		"delay":   delay.String(),
		"code":    code,
	})
	m.bus.Emit(EventClose, CloseEvent{Code: code, Reason: reason})
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if m.generation != gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.retryTimer = nil
	m.mu.Unlock()

	m.dial(gen)
}
