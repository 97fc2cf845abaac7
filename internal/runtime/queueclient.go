package runtime

import (
	"context"
	"sync"
	"time"

	sterrors "errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	idspkg "github.com/drblury/renderflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
)

// Validation error codes surfaced in Result.Error.Code.
const (
	CodeMissingParameter  = "MISSING_PARAMETER"
	CodeInvalidCancelType = "INVALID_CANCEL_TYPE"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	CodeSubmitFailed      = "QUEUE_SUBMIT_FAILED"
	CodeCancelFailed      = "QUEUE_CANCEL_FAILED"
	CodeListFailed        = "QUEUE_LIST_FAILED"
)

// requiredSubmitKeys must all be present and non-empty before a submission
// touches the remote queue. Order matters: the first missing key names the
// validation error.
var requiredSubmitKeys = []string{
	"userid",
	"InI_LoadLineImage",
	"InI_LoadStyleRefImage",
	"InI_CustomPositivePrompt",
	"ModelId",
	"ModelTypeId",
}

// defaultMakeLabel is the label the remote queue expects when the caller
// does not supply one.
const defaultMakeLabel = `{"name":"铁路站房","parentId":"0","createTime":"2024-10-20 00:00:00","id":"1859863588034842624"}`

// QueueClient builds, validates, and submits render-job requests. Every
// operation returns the uniform Result shape; no error value crosses this
// boundary.
type QueueClient struct {
	service RemoteQueueService
	ids     idspkg.Generator
	logger  loggingpkg.ServiceLogger
	metrics *Metrics
	hooks   JobHooks
	tracer  trace.Tracer

	// last holds the most recent successful submission so callers can
	// start watching without threading the client id through themselves.
	mu   sync.Mutex
	last *JobSubmission
}

// NewQueueClient builds a QueueClient over the given collaborator. gen,
// logger, and metrics may be nil; hooks are optional.
func NewQueueClient(service RemoteQueueService, gen idspkg.Generator, logger loggingpkg.ServiceLogger, metrics *Metrics, hooks JobHooks) (*QueueClient, error) {
	if service == nil {
		return nil, errspkg.ErrQueueServiceRequired
	}
	if gen == nil {
		gen = idspkg.NewGenerator()
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &QueueClient{
		service: service,
		ids:     gen,
		logger:  logger.With(loggingpkg.LogFields{"component": "queue-client"}),
		metrics: metrics,
		hooks:   hooks,
		tracer:  otel.Tracer("renderflow/queue"),
	}, nil
}

// LastSubmission returns the most recent successful submission, or nil.
func (q *QueueClient) LastSubmission() *JobSubmission {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last
}

// Submit validates params, generates fresh correlation ids, merges the
// default parameter set with params then overrides (overrides win), and
// delegates to the remote queue. The acknowledgement is returned with the
// generated ids merged in, since the remote service does not echo them back.
func (q *QueueClient) Submit(ctx context.Context, params map[string]any, overrides map[string]any) *Result {
	for _, key := range requiredSubmitKeys {
		if !hasValue(params, key) {
			q.metrics.incSubmission("validation_error")
			return failure(CodeMissingParameter, "missing required parameter: %s", key)
		}
	}

	clientID := q.ids.ClientID()
	jobID := q.ids.JobID()
	body := q.buildSubmitBody(params, overrides, clientID, jobID)

	ctx, span := q.tracer.Start(ctx, "queue.submit", trace.WithAttributes(
		attribute.String("render.client_id", clientID),
		attribute.String("render.job_id", jobID),
	))
	defer span.End()

	hctx := SubmitContext{Op: "submit", ClientID: clientID, JobID: jobID, StartedAt: time.Now()}
	q.hooks.submitStart(hctx)

	q.logger.Info("submitting render job", loggingpkg.LogFields{
		"client_id": clientID,
		"job_id":    jobID,
	})

	ack, err := q.service.Submit(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		q.hooks.submitError(hctx, err)
		q.metrics.incSubmission("error")
		q.logger.Error("render job submission failed", err, loggingpkg.LogFields{
			"client_id": clientID,
		})
		return remoteFailure(err, CodeSubmitFailed)
	}

	data := make(map[string]any, len(ack)+3)
	for k, v := range ack {
		data[k] = v
	}
	data["client_id"] = clientID
	data["prompt_id"] = jobID
	data["taskId"] = clientID

	q.mu.Lock()
	q.last = &JobSubmission{
		ClientID:    clientID,
		JobID:       jobID,
		Parameters:  body,
		SubmittedAt: hctx.StartedAt,
	}
	q.mu.Unlock()

	q.hooks.submitDone(hctx)
	q.metrics.incSubmission("ok")
	return &Result{Success: true, Data: data}
}

// Cancel validates the request and asks the remote queue to interrupt a
// running job or delete a queued one. Nothing is contacted when validation
// fails.
func (q *QueueClient) Cancel(ctx context.Context, req *CancelRequest) *Result {
	if req == nil {
		return failure(CodeMissingParameter, "cancel request is required")
	}
	if req.Type != CancelInterrupt && req.Type != CancelDelete {
		return failure(CodeInvalidCancelType, "cancel type must be %q or %q, got %q", CancelInterrupt, CancelDelete, req.Type)
	}
	if len(req.JobIDs) == 0 {
		return failure(CodeMissingParameter, "missing required parameter: prompt_id")
	}
	if req.ClientID == "" {
		return failure(CodeMissingParameter, "missing required parameter: client_id")
	}

	ctx, span := q.tracer.Start(ctx, "queue.cancel", trace.WithAttributes(
		attribute.String("render.client_id", req.ClientID),
		attribute.String("render.cancel_type", string(req.Type)),
	))
	defer span.End()

	hctx := SubmitContext{Op: "cancel", ClientID: req.ClientID, StartedAt: time.Now()}
	q.hooks.submitStart(hctx)

	ack, err := q.service.Cancel(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		q.hooks.submitError(hctx, err)
		q.logger.Error("render job cancellation failed", err, loggingpkg.LogFields{
			"client_id": req.ClientID,
			"type":      string(req.Type),
		})
		return remoteFailure(err, CodeCancelFailed)
	}

	q.hooks.submitDone(hctx)
	return &Result{Success: true, Data: ack}
}

// List fetches the remote queue snapshot for one client id.
func (q *QueueClient) List(ctx context.Context, clientID string) *Result {
	if clientID == "" {
		return failure(CodeMissingParameter, "missing required parameter: client_id")
	}

	hctx := SubmitContext{Op: "list", ClientID: clientID, StartedAt: time.Now()}
	q.hooks.submitStart(hctx)

	snapshot, err := q.service.List(ctx, clientID)
	if err != nil {
		q.hooks.submitError(hctx, err)
		q.logger.Error("queue list failed", err, loggingpkg.LogFields{"client_id": clientID})
		return remoteFailure(err, CodeListFailed)
	}

	q.hooks.submitDone(hctx)
	return &Result{Success: true, Data: snapshot}
}

// buildSubmitBody merges the fixed defaults with caller params then
// overrides, and stamps the generated correlation ids on top.
func (q *QueueClient) buildSubmitBody(params, overrides map[string]any, clientID, jobID string) map[string]any {
	body := map[string]any{
		"InI_FirstKsamplerSeed":        q.ids.Seed16(),
		"InI_AdScaleSeed":              q.ids.Seed16(),
		"InI_Atmosphere":               0,
		"InI_CustomLocation":           0,
		"InI_CustomSize":               0.25,
		"InI_ImageRatio":               0.5625,
		"InI_Switch_LineartAndDepth":   1,
		"InI_LineArtStrength":          0.6,
		"InI_Switch_Text2Img_Img2Img":  0,
		"InI_LockMaterialStrength":     1,
		"InI_LineStyle":                1,
		"InI_StyleTransferIntensity":   0.5,
		"InI_RefStartTime":             0,
		"InI_RefEndTime":               1,
		"InI_BatchCount":               1,
		"toggleCreate":                 "1",
		"toggleStyle":                  false,
		"toggleMateril":                1,
		"makeLabel":                    defaultMakeLabel,
		"makeCol":                      "",
		"makeInum":                     0,
		"makeColChild":                 "",
		"InI_HasRefImage":              1,
		"imageUploadCk":                params["InI_LoadStyleRefImage"],
		"imageUploadDt":                params["InI_LoadLineImage"],
		"InI_CustomPositivePrompt_old": "",
		"InI_CustomNegativePrompt":     "",
		"loraTypeName":                 "",
		"loraFileName":                 "",
		"strength_model":               0.6,
		"triggers":                     "",
		"verificationWord":             "",
		"messageType":                  "postMakeImage",
		"toggleSD":                     false,
		"toggleFlux":                   false,
	}
	for k, v := range params {
		body[k] = v
	}
	for k, v := range overrides {
		body[k] = v
	}
	body["client_id"] = clientID
	body["prompt_id"] = jobID
	return body
}

func hasValue(params map[string]any, key string) bool {
	v, ok := params[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

func failure(code, format string, args ...any) *Result {
	verr := errspkg.NewValidationError(code, "", format, args...)
	return &Result{Success: false, Error: &ErrorInfo{Code: verr.Code, Message: verr.Message}}
}

// remoteFailure normalizes collaborator errors into the uniform Result
// shape. A 405 keeps its dedicated code because it almost always means the
// API gateway is misconfigured.
func remoteFailure(err error, fallbackCode string) *Result {
	var remote *errspkg.RemoteError
	if sterrors.As(err, &remote) && remote.StatusCode == 405 {
		return &Result{Success: false, Error: &ErrorInfo{
			Code:    CodeMethodNotAllowed,
			Message: "request method not allowed, check the API configuration",
		}}
	}
	return &Result{Success: false, Error: &ErrorInfo{Code: fallbackCode, Message: err.Error()}}
}
