package runtime

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	sterrors "errors"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	"github.com/drblury/renderflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
)

const (
	DefaultUploadPath = "/AI/AIModel/uploadReferenceImage"

	// MaxUploadSize caps reference images at 10 MiB, matching the remote
	// queue's limit.
	MaxUploadSize = 10 << 20
)

// Upload validation error codes.
const (
	CodeMissingFile      = "MISSING_FILE"
	CodeInvalidImageType = "INVALID_IMAGE_TYPE"
	CodeImageTooLarge    = "IMAGE_TOO_LARGE"
	CodeUploadFailed     = "UPLOAD_FAILED"
)

// UploadFile is one reference image to upload.
type UploadFile struct {
	Name        string
	ContentType string
	Data        io.Reader
}

// UploadedImage is the outcome of a successful upload. Content is the path
// the remote service stored; URL is Content resolved against the image base
// URL when the service answered with a relative path.
type UploadedImage struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// UploadClientConfig configures the reference-image upload collaborator.
type UploadClientConfig struct {
	BaseURL string
	// ImageBaseURL resolves relative upload paths into browsable URLs.
	ImageBaseURL string
	Path         string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// UploadClient uploads reference images to the remote queue's asset store.
type UploadClient struct {
	base      string
	imageBase string
	path      string
	client    *http.Client
	logger    loggingpkg.ServiceLogger
}

// NewUploadClient builds an UploadClient.
func NewUploadClient(cfg UploadClientConfig, logger loggingpkg.ServiceLogger) (*UploadClient, error) {
	if cfg.BaseURL == "" {
		return nil, errspkg.NewConfigValidationError(sterrors.New("upload base URL is required"))
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}

	u := &UploadClient{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBase: strings.TrimRight(cfg.ImageBaseURL, "/"),
		path:      cfg.Path,
		client:    cfg.HTTPClient,
		logger:    logger.With(loggingpkg.LogFields{"component": "upload"}),
	}
	if u.path == "" {
		u.path = DefaultUploadPath
	}
	if u.imageBase == "" {
		u.imageBase = u.base
	}
	if u.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultHTTPTimeout
		}
		u.client = &http.Client{Timeout: timeout}
	}
	return u, nil
}

// UploadReferenceImage validates and uploads one image, returning its stored
// location. Validation failures never reach the network.
func (u *UploadClient) UploadReferenceImage(ctx context.Context, file UploadFile) (*UploadedImage, error) {
	if file.Data == nil {
		return nil, errspkg.NewValidationError(CodeMissingFile, "file", "an image file is required")
	}
	if !strings.HasPrefix(file.ContentType, "image/") {
		return nil, errspkg.NewValidationError(CodeInvalidImageType, "file", "content type %q is not an image", file.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(file.Data, MaxUploadSize+1))
	if err != nil {
		return nil, &errspkg.TransportError{Op: "upload", URL: u.base + u.path, Err: err}
	}
	if len(data) > MaxUploadSize {
		return nil, errspkg.NewValidationError(CodeImageTooLarge, "file", "image exceeds the %d byte limit", MaxUploadSize)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	target := u.base + u.path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &buf)
	if err != nil {
		return nil, &errspkg.TransportError{Op: "upload", URL: target, Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, &errspkg.TransportError{Op: "upload", URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errspkg.TransportError{Op: "upload", URL: target, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errspkg.RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		Content string `json:"content"`
	}
	if err := jsoncodec.Unmarshal(body, &parsed); err != nil || parsed.Content == "" {
		return nil, errspkg.NewValidationError(CodeUploadFailed, "content", "upload succeeded but no image URL was returned")
	}

	u.logger.Info("reference image uploaded", loggingpkg.LogFields{
		"name":    file.Name,
		"content": parsed.Content,
	})
	return &UploadedImage{URL: u.resolveURL(parsed.Content), Content: parsed.Content}, nil
}

// UploadMultiple uploads several images concurrently. The returned slice is
// positionally aligned with files; the first failure wins the error slot but
// all uploads run to completion.
func (u *UploadClient) UploadMultiple(ctx context.Context, files []UploadFile) ([]*UploadedImage, error) {
	if len(files) == 0 {
		return nil, errspkg.NewValidationError(CodeMissingFile, "files", "at least one image file is required")
	}

	results := make([]*UploadedImage, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file UploadFile) {
			defer wg.Done()
			results[i], errs[i] = u.UploadReferenceImage(ctx, file)
		}(i, file)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (u *UploadClient) resolveURL(content string) string {
	if strings.HasPrefix(content, "http") {
		return content
	}
	if !strings.HasPrefix(content, "/") {
		content = "/" + content
	}
	return u.imageBase + content
}
