package renderflow

import (
	forwardpkg "github.com/drblury/renderflow/forward"
	runtimepkg "github.com/drblury/renderflow/internal/runtime"
	configpkg "github.com/drblury/renderflow/internal/runtime/config"
	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	idspkg "github.com/drblury/renderflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/renderflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/renderflow/internal/runtime/metadata"
	socketpkg "github.com/drblury/renderflow/internal/runtime/socket"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	// Push channel
	Bus           = runtimepkg.Bus
	Handler       = runtimepkg.Handler
	Subscription  = runtimepkg.Subscription
	ChannelState  = runtimepkg.ChannelState
	ChannelConfig = runtimepkg.ChannelConfig
	CloseEvent    = runtimepkg.CloseEvent
	FrameConn     = socketpkg.FrameConn
	Dialer        = socketpkg.Dialer
	CloseError    = socketpkg.CloseError

	// Frame classification
	FrameKind       = runtimepkg.FrameKind
	Classification  = runtimepkg.Classification
	ProgressEvent   = runtimepkg.ProgressEvent
	ProgressHandler = runtimepkg.ProgressHandler

	// Remote queue
	RemoteQueueService = runtimepkg.RemoteQueueService
	QueueClient        = runtimepkg.QueueClient
	JobSubmission      = runtimepkg.JobSubmission
	CancelType         = runtimepkg.CancelType
	CancelRequest      = runtimepkg.CancelRequest
	Result             = runtimepkg.Result
	ErrorInfo          = runtimepkg.ErrorInfo

	// Job lifecycle hooks
	SubmitContext = runtimepkg.SubmitContext
	JobHooks      = runtimepkg.JobHooks

	// Uploads and moderation
	UploadFile       = runtimepkg.UploadFile
	UploadedImage    = runtimepkg.UploadedImage
	UploadClient     = runtimepkg.UploadClient
	ModerationClient = runtimepkg.ModerationClient

	// Forwarding
	Forwarder        = runtimepkg.Forwarder
	Sink             = forwardpkg.Sink
	SinkBuilder      = forwardpkg.Builder
	SinkConfig       = forwardpkg.Config
	SinkRegistry     = forwardpkg.Registry
	SinkCapabilities = forwardpkg.Capabilities

	// Ids
	IDGenerator = idspkg.Generator

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError
	ValidationError       = errspkg.ValidationError
	TransportError        = errspkg.TransportError
	RemoteError           = errspkg.RemoteError
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	ValidateConfig = configpkg.ValidateConfig

	// Job lifecycle hooks
	LoggingHooks  = runtimepkg.LoggingHooks
	MetricsHooks  = runtimepkg.MetricsHooks
	AlertingHooks = runtimepkg.AlertingHooks

	// Sink registry (forwarding destinations)
	// Import individual sinks via: _ "github.com/drblury/renderflow/forward/kafka"
	DefaultSinkRegistry = forwardpkg.DefaultRegistry
	RegisterSink        = forwardpkg.Register
	BuildSink           = forwardpkg.Build
	GetSinkCapabilities = forwardpkg.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrChannelURLRequired   = errspkg.ErrChannelURLRequired
	ErrClientIDRequired     = errspkg.ErrClientIDRequired
	ErrQueueServiceRequired = errspkg.ErrQueueServiceRequired
	ErrHandlerRequired      = errspkg.ErrHandlerRequired
	ErrPublisherRequired    = errspkg.ErrPublisherRequired
	ErrTopicRequired        = errspkg.ErrTopicRequired
	ErrNotConnected         = errspkg.ErrNotConnected
	ErrAlreadyConnecting    = errspkg.ErrAlreadyConnecting

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger

	NewMetadata = metadatapkg.New

	NewIDGenerator = idspkg.NewGenerator
	CreateULID     = idspkg.CreateULID
)

// Bus event names. Frames carrying a type field additionally emit under that
// type value.
const (
	EventOpen            = runtimepkg.EventOpen
	EventClose           = runtimepkg.EventClose
	EventError           = runtimepkg.EventError
	EventMessage         = runtimepkg.EventMessage
	EventTaskProgress    = runtimepkg.EventTaskProgress
	EventGeneratedImages = runtimepkg.EventGeneratedImages
	EventReconnectFailed = runtimepkg.EventReconnectFailed
)

// Channel lifecycle states.
const (
	StateDisconnected = runtimepkg.StateDisconnected
	StateConnecting   = runtimepkg.StateConnecting
	StateOpen         = runtimepkg.StateOpen
	StateClosing      = runtimepkg.StateClosing
	StateReconnecting = runtimepkg.StateReconnecting
)

// Close codes the channel distinguishes. A manual close or a peer close with
// CloseNormal never reconnects.
const (
	CloseNormal   = runtimepkg.CloseNormal
	CloseAbnormal = runtimepkg.CloseAbnormal
)

// Cancel types accepted by CancelRequest.
const (
	CancelInterrupt = runtimepkg.CancelInterrupt
	CancelDelete    = runtimepkg.CancelDelete
)

// Frame kinds produced by the classifier.
const (
	FrameOpaque   = runtimepkg.FrameOpaque
	FrameNumber   = runtimepkg.FrameNumber
	FrameRecord   = runtimepkg.FrameRecord
	FrameSequence = runtimepkg.FrameSequence
)

// Metadata keys stamped on forwarded messages.
const (
	MetaCorrelationID = runtimepkg.MetaCorrelationID
	MetaEventKind     = runtimepkg.MetaEventKind
	MetaEmittedAt     = runtimepkg.MetaEmittedAt
)
