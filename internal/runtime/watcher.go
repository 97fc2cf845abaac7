package runtime

import (
	"context"
	"net/url"
	"sync"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
)

// ProgressHandler receives normalized progress updates for the watched job.
type ProgressHandler func(*ProgressEvent)

// Watcher tracks the currently watched correlation id. It owns the bus
// registrations and the channel lifetime for exactly one watch at a time:
// starting a new watch stops the previous one first, and stopping removes
// exactly the registrations it made before closing the channel manually.
type Watcher struct {
	manager *Manager
	pushURL string
	cfg     ChannelConfig
	logger  loggingpkg.ServiceLogger

	mu       sync.Mutex
	watching bool
	clientID string
	subs     []*Subscription
}

// NewWatcher builds a watcher over the given connection manager. pushURL is
// the base push endpoint; the watched client id is appended as the key query
// parameter. cfg applies to every channel the watcher opens.
func NewWatcher(manager *Manager, pushURL string, cfg ChannelConfig, logger loggingpkg.ServiceLogger) *Watcher {
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &Watcher{
		manager: manager,
		pushURL: pushURL,
		cfg:     cfg,
		logger:  logger.With(loggingpkg.LogFields{"component": "watcher"}),
	}
}

// Watching reports whether a watch is currently active.
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

// ClientID returns the currently watched correlation id, or "".
func (w *Watcher) ClientID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clientID
}

// StartWatching opens a progress channel scoped to clientID and registers
// onProgress plus lifecycle handlers. Calling it again with the same id is a
// no-op; with a different id it stops the previous watch first.
func (w *Watcher) StartWatching(ctx context.Context, clientID string, onProgress ProgressHandler) error {
	if clientID == "" {
		return errspkg.ErrClientIDRequired
	}
	if onProgress == nil {
		return errspkg.ErrHandlerRequired
	}
	if w.pushURL == "" {
		return errspkg.ErrChannelURLRequired
	}

	w.mu.Lock()
	if w.watching && w.clientID == clientID {
		w.mu.Unlock()
		w.logger.Debug("already watching", loggingpkg.LogFields{"client_id": clientID})
		return nil
	}
	alreadyWatching := w.watching
	w.mu.Unlock()

	if alreadyWatching {
		if err := w.StopWatching(); err != nil {
			return err
		}
	}

	channelURL, err := w.channelURL(clientID)
	if err != nil {
		return err
	}

	bus := w.manager.Bus()
	log := w.logger.With(loggingpkg.LogFields{"client_id": clientID})

	subs := make([]*Subscription, 0, 4)
	register := func(event string, fn Handler) error {
		sub, err := bus.On(event, fn)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	if err := register(EventTaskProgress, func(data any) {
		if ev, ok := data.(*ProgressEvent); ok {
			onProgress(ev)
		}
	}); err != nil {
		return err
	}
	if err := register(EventOpen, func(any) {
		log.Info("progress channel open", nil)
	}); err != nil {
		return err
	}
	if err := register(EventError, func(data any) {
		err, _ := data.(error)
		log.Error("progress channel error", err, nil)
	}); err != nil {
		return err
	}
	if err := register(EventClose, func(data any) {
		ev, _ := data.(CloseEvent)
		log.Info("progress channel closed", loggingpkg.LogFields{
			"code":   ev.Code,
			"reason": ev.Reason,
		})
	}); err != nil {
		return err
	}

	if err := w.manager.Open(ctx, channelURL, w.cfg); err != nil {
		for _, sub := range subs {
			bus.Off(sub)
		}
		return err
	}

	w.mu.Lock()
	w.watching = true
	w.clientID = clientID
	w.subs = subs
	w.mu.Unlock()

	log.Info("watching task progress", nil)
	return nil
}

// StopWatching removes the watch registrations and closes the channel with a
// manual close. It is a no-op when nothing is being watched.
func (w *Watcher) StopWatching() error {
	w.mu.Lock()
	if !w.watching {
		w.mu.Unlock()
		return nil
	}
	clientID := w.clientID
	subs := w.subs
	w.watching = false
	w.clientID = ""
	w.subs = nil
	w.mu.Unlock()

	bus := w.manager.Bus()
	for _, sub := range subs {
		bus.Off(sub)
	}

	err := w.manager.Close(CloseNormal, "stopped watching task progress")
	w.logger.Info("stopped watching", loggingpkg.LogFields{"client_id": clientID})
	return err
}

func (w *Watcher) channelURL(clientID string) (string, error) {
	u, err := url.Parse(w.pushURL)
	if err != nil {
		return "", errspkg.NewConfigValidationError(err)
	}
	q := u.Query()
	q.Set("key", clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
