package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"manim-service/ddd/domain/gateway"
	"manim-service/pkg/errno"
	"manim-service/pkg/logger"
)

const maxErrorBody = 800

// WorkerError is a non-2xx answer from the worker.
type WorkerError struct {
	StatusCode int
	Message    string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker returned %d: %s", e.StatusCode, e.Message)
}

// WorkerClient talks to another instance of this service running as a worker.
type WorkerClient struct {
	locator    gateway.WorkerLocator
	httpClient *http.Client
}

var _ gateway.WorkerGateway = (*WorkerClient)(nil)

// NewWorkerClient creates a client. timeout bounds start and status calls;
// video downloads are bounded only by the caller's context.
func NewWorkerClient(locator gateway.WorkerLocator, timeout time.Duration) *WorkerClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WorkerClient{
		locator:    locator,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Start sends POST <worker>/start.
func (c *WorkerClient) Start(ctx context.Context, req gateway.WorkerStartRequest) (*gateway.WorkerStartResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := c.do(ctx, c.httpClient, http.MethodPost, "/start", nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, upstreamError(resp)
	}
	var result gateway.WorkerStartResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errno.NewBizError(errno.ErrInvalidWorkerResponse, err)
	}
	if strings.TrimSpace(result.JobID) == "" {
		return nil, errno.NewBizError(errno.ErrInvalidWorkerResponse, fmt.Errorf("missing jobId"))
	}
	return &result, nil
}

// Status sends GET <worker>/status?jobId=.
func (c *WorkerClient) Status(ctx context.Context, jobID string) (*gateway.RemoteJob, error) {
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, "/status", url.Values{"jobId": {jobID}}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(resp)
	}
	var job gateway.RemoteJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, errno.NewBizError(errno.ErrInvalidWorkerResponse, err)
	}
	return &job, nil
}

// OpenVideo sends GET <worker>/video?jobId= and hands back the open body.
func (c *WorkerClient) OpenVideo(ctx context.Context, jobID string) (*gateway.VideoStream, error) {
	// 视频可能很大，不使用带总超时的 client
	streaming := &http.Client{Transport: c.httpClient.Transport}
	resp, err := c.do(ctx, streaming, http.MethodGet, "/video", url.Values{"jobId": {jobID}}, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, upstreamError(resp)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return &gateway.VideoStream{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		ContentType:   contentType,
	}, nil
}

func (c *WorkerClient) do(ctx context.Context, client *http.Client, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	base, err := c.locator.WorkerURL(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(base, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrWorkerNotConfigured, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("worker request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, errno.NewBizError(errno.ErrWorkerUnreachable, err)
	}
	return resp, nil
}

// upstreamError maps a worker failure onto the code a local instance would
// have answered with, so callers cannot tell local from remote.
func upstreamError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	werr := &WorkerError{StatusCode: resp.StatusCode, Message: workerMessage(raw)}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errno.NewBizError(errno.ErrJobNotFound, werr)
	case http.StatusConflict:
		return errno.NewBizError(errno.ErrVideoNotReady, werr)
	case http.StatusBadRequest:
		return errno.NewBizError(errno.ErrInvalidParam, werr)
	case http.StatusTooManyRequests:
		return errno.NewBizError(errno.ErrTooManyRequests, werr)
	}
	status := resp.StatusCode
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	return errno.NewBizError(errno.ErrWorkerRejected.WithStatus(status), werr)
}

// workerMessage prefers the error field of a JSON error body.
func workerMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
