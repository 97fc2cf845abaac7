package runtime

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sterrors "errors"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	"github.com/drblury/renderflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
)

// RemoteQueueService is the external render-queue collaborator. Submit and
// Cancel post acknowledged requests; List is a read-only snapshot of the
// queue for one client id.
type RemoteQueueService interface {
	Submit(ctx context.Context, body map[string]any) (map[string]any, error)
	Cancel(ctx context.Context, req *CancelRequest) (map[string]any, error)
	List(ctx context.Context, clientID string) (map[string]any, error)
}

const (
	DefaultSubmitPath = "/AI/AIModel/ComfyuiQueue"
	DefaultCancelPath = "/AI/AIModel/ComfyuiExchange"
	DefaultListPath   = "/AI/AIModel/GetRabbitmqQueueList"

	DefaultHTTPTimeout = 30 * time.Second
)

// HTTPQueueServiceConfig configures the production RemoteQueueService.
// Zero-value paths and timeout fall back to the upstream defaults.
type HTTPQueueServiceConfig struct {
	BaseURL    string
	SubmitPath string
	CancelPath string
	ListPath   string
	Timeout    time.Duration

	// HTTPClient overrides the default client; its own Timeout wins when
	// set.
	HTTPClient *http.Client
}

type httpQueueService struct {
	base   string
	submit string
	cancel string
	list   string
	client *http.Client
	logger loggingpkg.ServiceLogger
}

// NewHTTPQueueService builds the HTTP implementation of RemoteQueueService.
func NewHTTPQueueService(cfg HTTPQueueServiceConfig, logger loggingpkg.ServiceLogger) (RemoteQueueService, error) {
	if cfg.BaseURL == "" {
		return nil, errspkg.NewConfigValidationError(sterrors.New("queue base URL is required"))
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}

	svc := &httpQueueService{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		submit: cfg.SubmitPath,
		cancel: cfg.CancelPath,
		list:   cfg.ListPath,
		client: cfg.HTTPClient,
		logger: logger.With(loggingpkg.LogFields{"component": "remote-queue"}),
	}
	if svc.submit == "" {
		svc.submit = DefaultSubmitPath
	}
	if svc.cancel == "" {
		svc.cancel = DefaultCancelPath
	}
	if svc.list == "" {
		svc.list = DefaultListPath
	}
	if svc.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultHTTPTimeout
		}
		svc.client = &http.Client{Timeout: timeout}
	}
	return svc, nil
}

func (s *httpQueueService) Submit(ctx context.Context, body map[string]any) (map[string]any, error) {
	return s.postJSON(ctx, "submit", s.submit, body)
}

func (s *httpQueueService) Cancel(ctx context.Context, req *CancelRequest) (map[string]any, error) {
	payload := map[string]any{
		"type":      string(req.Type),
		"prompt_id": req.JobIDs,
		"client_id": req.ClientID,
	}
	return s.postJSON(ctx, "cancel", s.cancel, payload)
}

func (s *httpQueueService) List(ctx context.Context, clientID string) (map[string]any, error) {
	target := s.base + s.list + "?" + url.Values{"client_id": {clientID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &errspkg.TransportError{Op: "list", URL: target, Err: err}
	}
	return s.do("list", req)
}

func (s *httpQueueService) postJSON(ctx context.Context, op, path string, payload any) (map[string]any, error) {
	target := s.base + path

	raw, err := jsoncodec.Marshal(payload)
	if err != nil {
		return nil, &errspkg.TransportError{Op: op, URL: target, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(raw))
	if err != nil {
		return nil, &errspkg.TransportError{Op: op, URL: target, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(op, req)
}

func (s *httpQueueService) do(op string, req *http.Request) (map[string]any, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &errspkg.TransportError{Op: op, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errspkg.TransportError{Op: op, URL: req.URL.String(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("remote queue rejected request", loggingpkg.LogFields{
			"op":     op,
			"status": resp.StatusCode,
		})
		return nil, &errspkg.RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// The upstream occasionally answers with plain text; keep it readable
	// instead of failing the call.
	var parsed map[string]any
	if err := jsoncodec.Unmarshal(body, &parsed); err != nil {
		return map[string]any{"raw": string(body)}, nil
	}
	return parsed, nil
}
