package runtime

import "time"

// ChannelState describes where the push channel is in its lifecycle. A
// channel never moves from Disconnected straight to Open; it always passes
// through Connecting.
type ChannelState int

const (
	StateDisconnected ChannelState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateReconnecting
)

func (s ChannelState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// CloseNormal is the close code of a manual close. Any other code is treated
// as unexpected and triggers the reconnect path.
const CloseNormal = 1000

// CloseAbnormal is reported when the transport fails without a close frame.
const CloseAbnormal = 1006

// Default channel tuning, matching the remote queue's expectations.
const (
	DefaultMaxReconnectAttempts = 5
	DefaultBaseReconnectDelay   = time.Second
)

// ChannelConfig tunes the reconnect behaviour of a ConnectionManager. Zero
// values fall back to defaults.
type ChannelConfig struct {
	MaxReconnectAttempts int
	BaseReconnectDelay   time.Duration
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.BaseReconnectDelay <= 0 {
		c.BaseReconnectDelay = DefaultBaseReconnectDelay
	}
	return c
}

// CloseEvent is the payload of the "close" bus event.
type CloseEvent struct {
	Code   int
	Reason string
}

// ProgressEvent is the normalized representation of a job's completion
// percentage and any produced result artifacts. Produced only by the
// classifier; treat as immutable once constructed.
type ProgressEvent struct {
	// CorrelationID is the watched client id, when known.
	CorrelationID string `json:"correlationId,omitempty"`
	// Percent is clamped to [0,100] even if upstream sends out-of-range
	// values.
	Percent int `json:"percent"`
	// ResultArtifacts lists produced artifact URIs in upstream order; the
	// first element is the primary artifact.
	ResultArtifacts []string `json:"resultArtifacts,omitempty"`
	// Raw is the original frame payload.
	Raw []byte `json:"-"`
}

// JobSubmission records a submit call: generated correlation ids, the merged
// parameter set that went to the remote queue, and when it was sent.
type JobSubmission struct {
	ClientID    string
	JobID       string
	Parameters  map[string]any
	SubmittedAt time.Time
}

// CancelType selects how a job is cancelled: interrupt stops a running job,
// delete removes a queued one.
type CancelType string

const (
	CancelInterrupt CancelType = "interrupt"
	CancelDelete    CancelType = "delete"
)

// CancelRequest asks the remote queue to cancel one or more jobs belonging
// to a client.
type CancelRequest struct {
	Type     CancelType
	JobIDs   []string
	ClientID string
}

// ErrorInfo is the error half of the uniform Result shape.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform outcome shape of queue, upload, and moderation
// operations. No panic or raw error crosses this boundary: failures are
// normalized into Error.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *ErrorInfo     `json:"error,omitempty"`
}

// Bus event names emitted by the ConnectionManager. Frames with a "type"
// field additionally emit under that type value.
const (
	EventOpen            = "open"
	EventClose           = "close"
	EventError           = "error"
	EventMessage         = "message"
	EventTaskProgress    = "taskProgress"
	EventGeneratedImages = "generatedImages"
	EventReconnectFailed = "reconnectFailed"
)
