package runtime

import (
	"context"
	sterrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/renderflow/forward"
	configpkg "github.com/drblury/renderflow/internal/runtime/config"
	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	idspkg "github.com/drblury/renderflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
	socketpkg "github.com/drblury/renderflow/internal/runtime/socket"
)

var serviceRun = func(s *Service, ctx context.Context) error {
	<-ctx.Done()
	return s.Close()
}

// ServiceDependencies holds the optional collaborators that the Service can
// use. Leave fields nil to get the production defaults.
type ServiceDependencies struct {
	// Dialer establishes push connections. Inject a fake transport in tests.
	Dialer socketpkg.Dialer
	// QueueService overrides the remote queue HTTP client.
	QueueService RemoteQueueService
	// IDs overrides the correlation id generator.
	IDs idspkg.Generator
	// Hooks are appended after the built-in logging hooks.
	Hooks JobHooks
	// SinkBuilder overrides the registry lookup for the forwarding sink.
	SinkBuilder forward.Builder
	// Registerer receives the prometheus collectors. Pass
	// prometheus.NewRegistry() in tests to avoid duplicate registration.
	Registerer prometheus.Registerer
}

// Service wires the push channel, the remote queue clients, and the optional
// event forwarder behind one caller-owned instance. Construct it with
// NewService, register bus handlers, then call Start.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	bus        *Bus
	metrics    *Metrics
	manager    *Manager
	watcher    *Watcher
	queue      *QueueClient
	uploads    *UploadClient
	moderation *ModerationClient

	sink      forward.Sink
	forwarder *Forwarder

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex

	gatherer        prometheus.Gatherer
	resourceTracker *resourceTracker
}

// NewService constructs a Service for the supplied configuration, panicking
// when the configuration or a collaborator is unusable. Use TryNewService to
// get the error instead.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService is NewService with an error return.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if err := configpkg.ValidateConfig(conf); err != nil {
		return nil, err
	}
	if log == nil {
		log = loggingpkg.NopLogger()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log.Info("Creating render service", loggingpkg.LogFields{
		"forwarder_system": conf.ForwarderSystem,
		"config":           conf,
	})

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	metrics := NewMetrics(registerer)

	gen := deps.IDs
	if gen == nil {
		gen = idspkg.NewGenerator()
	}

	bus := NewBus(log)
	bus.onPanic = func(string) { metrics.incHandlerPanic() }

	manager := NewManager(bus, deps.Dialer, log)
	manager.metrics = metrics

	channelCfg := ChannelConfig{
		MaxReconnectAttempts: conf.MaxReconnectAttempts,
		BaseReconnectDelay:   conf.BaseReconnectDelay,
	}
	watcher := NewWatcher(manager, conf.PushURL, channelCfg, log)

	queueService := deps.QueueService
	if queueService == nil {
		var err error
		queueService, err = NewHTTPQueueService(HTTPQueueServiceConfig{
			BaseURL:    conf.QueueBaseURL,
			SubmitPath: conf.SubmitPath,
			CancelPath: conf.CancelPath,
			ListPath:   conf.ListPath,
			Timeout:    conf.HTTPTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
	}

	hooks := LoggingHooks(log).Merge(deps.Hooks)
	queue, err := NewQueueClient(queueService, gen, log, metrics, hooks)
	if err != nil {
		return nil, err
	}

	uploads, err := NewUploadClient(UploadClientConfig{
		BaseURL:      conf.QueueBaseURL,
		ImageBaseURL: conf.ImageBaseURL,
		Path:         conf.UploadPath,
		Timeout:      conf.HTTPTimeout,
	}, log)
	if err != nil {
		return nil, err
	}

	moderation, err := NewModerationClient(ModerationClientConfig{
		BaseURL: conf.QueueBaseURL,
		Path:    conf.ModerationPath,
		Timeout: conf.HTTPTimeout,
	}, log)
	if err != nil {
		return nil, err
	}

	s := &Service{
		Conf:            conf,
		Logger:          log,
		bus:             bus,
		metrics:         metrics,
		manager:         manager,
		watcher:         watcher,
		queue:           queue,
		uploads:         uploads,
		moderation:      moderation,
		resourceTracker: newResourceTracker(),
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		s.gatherer = g
	}

	if conf.ForwarderSystem != "" {
		if err := s.buildForwarder(ctx, conf, gen, deps.SinkBuilder); err != nil {
			return nil, err
		}
	}

	if conf.MetricsEnabled {
		s.RegisterHTTPHandler(conf.MetricsPort, "/metrics", s.metricsHandler())
	}

	return s, nil
}

func (s *Service) buildForwarder(ctx context.Context, conf *configpkg.Config, gen idspkg.Generator, builder forward.Builder) error {
	wmLogger := loggingpkg.NewWatermillAdapter(s.Logger)

	var sink forward.Sink
	var err error
	if builder != nil {
		sink, err = builder(ctx, conf, wmLogger)
	} else {
		sink, err = forward.Build(ctx, conf, wmLogger)
	}
	if err != nil {
		return err
	}

	fwd, err := NewForwarder(s.bus, sink.Publisher, conf.GetProgressTopic(), conf.GetArtifactsTopic(), gen, s.Logger, s.metrics)
	if err != nil {
		closeSink(sink)
		return err
	}

	s.sink = sink
	s.forwarder = fwd
	return nil
}

func closeSink(sink forward.Sink) {
	if sink.Publisher != nil {
		_ = sink.Publisher.Close()
	}
	if sink.Subscriber != nil {
		_ = sink.Subscriber.Close()
	}
}

// Start launches the forwarder and any registered HTTP endpoints, then blocks
// until the context is cancelled. Close runs on the way out.
func (s *Service) Start(ctx context.Context) error {
	if s.forwarder != nil {
		if err := s.forwarder.Start(); err != nil {
			return err
		}
	}
	s.startStatusServer()
	s.startHTTPServers()
	return serviceRun(s, ctx)
}

// Close stops watching, detaches the forwarder, and closes the sink. Safe to
// call more than once.
func (s *Service) Close() error {
	var errs []error
	if err := s.watcher.StopWatching(); err != nil && !sterrors.Is(err, errspkg.ErrNotConnected) {
		errs = append(errs, err)
	}
	if s.forwarder != nil {
		s.forwarder.Stop()
	}
	if s.sink.Publisher != nil {
		if err := s.sink.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
		s.sink.Publisher = nil
	}
	if s.sink.Subscriber != nil {
		if err := s.sink.Subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
		s.sink.Subscriber = nil
	}
	return sterrors.Join(errs...)
}

// Bus returns the in-process event bus.
func (s *Service) Bus() *Bus { return s.bus }

// Channel returns the push channel manager.
func (s *Service) Channel() *Manager { return s.manager }

// Queue returns the remote queue client.
func (s *Service) Queue() *QueueClient { return s.queue }

// Uploads returns the reference-image upload client.
func (s *Service) Uploads() *UploadClient { return s.uploads }

// Moderation returns the prompt moderation client.
func (s *Service) Moderation() *ModerationClient { return s.moderation }

// Forwarder returns the event forwarder, nil when forwarding is disabled.
func (s *Service) Forwarder() *Forwarder { return s.forwarder }

// On registers fn for the named bus event.
func (s *Service) On(event string, fn Handler) (*Subscription, error) {
	return s.bus.On(event, fn)
}

// Off removes a registration made with On.
func (s *Service) Off(sub *Subscription) { s.bus.Off(sub) }

// WatchJob opens the progress channel keyed by clientID and routes progress
// frames to onProgress. A second call with a different id switches channels.
func (s *Service) WatchJob(ctx context.Context, clientID string, onProgress ProgressHandler) error {
	return s.watcher.StartWatching(ctx, clientID, onProgress)
}

// StopWatching tears down the progress channel. No-op when nothing is
// watched.
func (s *Service) StopWatching() error { return s.watcher.StopWatching() }

// Watching reports whether a progress channel is currently active.
func (s *Service) Watching() bool { return s.watcher.Watching() }

// SubmitJob validates params, fills defaults, and submits a render job to
// the remote queue.
func (s *Service) SubmitJob(ctx context.Context, params map[string]any, overrides map[string]any) *Result {
	return s.queue.Submit(ctx, params, overrides)
}

// CancelJob interrupts or deletes queued jobs.
func (s *Service) CancelJob(ctx context.Context, req *CancelRequest) *Result {
	return s.queue.Cancel(ctx, req)
}

// ListQueue fetches the pending queue entries for a client id.
func (s *Service) ListQueue(ctx context.Context, clientID string) *Result {
	return s.queue.List(ctx, clientID)
}

func (s *Service) getResourceTracker() *resourceTracker {
	if s.resourceTracker == nil {
		s.resourceTracker = newResourceTracker()
	}
	return s.resourceTracker
}

func (s *Service) metricsHandler() http.Handler {
	if s.gatherer != nil {
		return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// RegisterHTTPHandler mounts handler on the mux for the given port. Servers
// start lazily on Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
