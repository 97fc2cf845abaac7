package runtime

import (
	"time"

	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
)

// SubmitContext provides information about a queue operation to hooks.
type SubmitContext struct {
	// Op is the queue operation: "submit", "cancel", or "list".
	Op string
	// ClientID is the correlation id of the job, when known.
	ClientID string
	// JobID is the generated prompt id, when known.
	JobID string
	// StartedAt is when the operation started.
	StartedAt time.Time
	// Duration is how long the operation took (only set in OnSubmitDone
	// and OnSubmitError).
	Duration time.Duration
}

// JobHooks defines callbacks around queue operations.
// All hooks are optional - nil hooks are simply not called.
type JobHooks struct {
	// OnSubmitStart is called after validation passes, before the remote
	// queue is contacted.
	OnSubmitStart func(ctx SubmitContext)

	// OnSubmitDone is called when the remote queue acknowledged the
	// operation. Duration will be set to how long the operation took.
	OnSubmitDone func(ctx SubmitContext)

	// OnSubmitError is called when the operation failed after validation.
	// Duration will be set to how long the operation took before failing.
	OnSubmitError func(ctx SubmitContext, err error)
}

// Merge combines two JobHooks, creating a new JobHooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'.
func (h JobHooks) Merge(other JobHooks) JobHooks {
	return JobHooks{
		OnSubmitStart: chainSubmitHooks(h.OnSubmitStart, other.OnSubmitStart),
		OnSubmitDone:  chainSubmitHooks(h.OnSubmitDone, other.OnSubmitDone),
		OnSubmitError: chainSubmitErrorHooks(h.OnSubmitError, other.OnSubmitError),
	}
}

func chainSubmitHooks(a, b func(SubmitContext)) func(SubmitContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx SubmitContext) {
		a(ctx)
		b(ctx)
	}
}

func chainSubmitErrorHooks(a, b func(SubmitContext, error)) func(SubmitContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx SubmitContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func (h JobHooks) submitStart(ctx SubmitContext) {
	if h.OnSubmitStart != nil {
		h.OnSubmitStart(ctx)
	}
}

func (h JobHooks) submitDone(ctx SubmitContext) {
	ctx.Duration = time.Since(ctx.StartedAt)
	if h.OnSubmitDone != nil {
		h.OnSubmitDone(ctx)
	}
}

func (h JobHooks) submitError(ctx SubmitContext, err error) {
	ctx.Duration = time.Since(ctx.StartedAt)
	if h.OnSubmitError != nil {
		h.OnSubmitError(ctx, err)
	}
}

// LoggingHooks returns pre-built hooks that log queue operations.
func LoggingHooks(logger loggingpkg.ServiceLogger) JobHooks {
	return JobHooks{
		OnSubmitStart: func(ctx SubmitContext) {
			logger.Info("queue operation started", loggingpkg.LogFields{
				"op":        ctx.Op,
				"client_id": ctx.ClientID,
				"job_id":    ctx.JobID,
			})
		},
		OnSubmitDone: func(ctx SubmitContext) {
			logger.Info("queue operation completed", loggingpkg.LogFields{
				"op":          ctx.Op,
				"client_id":   ctx.ClientID,
				"job_id":      ctx.JobID,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
		OnSubmitError: func(ctx SubmitContext, err error) {
			logger.Error("queue operation failed", err, loggingpkg.LogFields{
				"op":          ctx.Op,
				"client_id":   ctx.ClientID,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that record per-operation counters.
func MetricsHooks(onStart, onDone, onError func(op string)) JobHooks {
	return JobHooks{
		OnSubmitStart: func(ctx SubmitContext) {
			if onStart != nil {
				onStart(ctx.Op)
			}
		},
		OnSubmitDone: func(ctx SubmitContext) {
			if onDone != nil {
				onDone(ctx.Op)
			}
		},
		OnSubmitError: func(ctx SubmitContext, err error) {
			if onError != nil {
				onError(ctx.Op)
			}
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on failures.
func AlertingHooks(alertFunc func(ctx SubmitContext, err error)) JobHooks {
	return JobHooks{
		OnSubmitError: alertFunc,
	}
}
