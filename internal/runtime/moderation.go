package runtime

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sterrors "errors"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	"github.com/drblury/renderflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
)

const (
	DefaultModerationPath = "/AI/AIModel/BigModelCheckPrompt"

	// moderationBatchSize is how many prompts one remote call accepts.
	moderationBatchSize = 3
)

const CodeModerationFailed = "MODERATION_FAILED"

// ModerationClientConfig configures the prompt moderation collaborator.
type ModerationClientConfig struct {
	BaseURL    string
	Path       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// ModerationClient screens prompt text against the remote sensitive-word
// check before it is attached to a submission.
type ModerationClient struct {
	base   string
	path   string
	client *http.Client
	logger loggingpkg.ServiceLogger
}

// NewModerationClient builds a ModerationClient.
func NewModerationClient(cfg ModerationClientConfig, logger loggingpkg.ServiceLogger) (*ModerationClient, error) {
	if cfg.BaseURL == "" {
		return nil, errspkg.NewConfigValidationError(sterrors.New("moderation base URL is required"))
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}

	m := &ModerationClient{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		path:   cfg.Path,
		client: cfg.HTTPClient,
		logger: logger.With(loggingpkg.LogFields{"component": "moderation"}),
	}
	if m.path == "" {
		m.path = DefaultModerationPath
	}
	if m.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultHTTPTimeout
		}
		m.client = &http.Client{Timeout: timeout}
	}
	return m, nil
}

// CheckPrompts screens up to three prompts in one remote call. Missing slots
// are sent empty; extra prompts are ignored.
func (m *ModerationClient) CheckPrompts(ctx context.Context, prompts ...string) *Result {
	values := url.Values{}
	for i := 0; i < moderationBatchSize; i++ {
		prompt := ""
		if i < len(prompts) {
			prompt = prompts[i]
		}
		values.Set("prompt"+strconv.Itoa(i+1), prompt)
	}

	target := m.base + m.path + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return moderationFailure(err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return moderationFailure(&errspkg.TransportError{Op: "moderation", URL: target, Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return moderationFailure(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return moderationFailure(&errspkg.RemoteError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var parsed map[string]any
	if err := jsoncodec.Unmarshal(body, &parsed); err != nil {
		return moderationFailure(err)
	}
	// The check endpoint reports rejections inside a 200 response.
	if errField, ok := parsed["error"].(map[string]any); ok {
		msg, _ := errField["message"].(string)
		if msg == "" {
			msg = "prompt was rejected by the sensitive-word check"
		}
		m.logger.Warn("prompt rejected", loggingpkg.LogFields{"message": msg})
		return &Result{Success: false, Error: &ErrorInfo{Code: CodeModerationFailed, Message: msg}}
	}

	return &Result{Success: true, Data: parsed}
}

// ModerateText screens a single prompt.
func (m *ModerationClient) ModerateText(ctx context.Context, text string) *Result {
	return m.CheckPrompts(ctx, text)
}

// ModerateAll screens any number of prompts in batches of three, one Result
// per batch.
func (m *ModerationClient) ModerateAll(ctx context.Context, texts []string) []*Result {
	var results []*Result
	for i := 0; i < len(texts); i += moderationBatchSize {
		end := i + moderationBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		results = append(results, m.CheckPrompts(ctx, texts[i:end]...))
	}
	return results
}

func moderationFailure(err error) *Result {
	return &Result{Success: false, Error: &ErrorInfo{Code: CodeModerationFailed, Message: err.Error()}}
}
