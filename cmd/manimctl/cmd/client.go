package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"manim-service/ddd/application/dto"
	"manim-service/pkg/restapi"
)

// RenderClient handles API calls to the render service.
type RenderClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewRenderClient creates a client for the given API base URL.
func NewRenderClient(baseURL string) *RenderClient {
	return &RenderClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	var e restapi.ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		apiErr.Code = e.Code
		apiErr.Message = e.Error
	}
	return apiErr
}

type startRequest struct {
	Prompt   string `json:"prompt"`
	ClientID string `json:"clientId"`
}

// Start sends POST /start.
func (c *RenderClient) Start(prompt, clientID string) (*dto.StartRenderJobDTO, error) {
	bodyBytes, err := json.Marshal(startRequest{Prompt: prompt, ClientID: clientID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.BaseURL+"/start", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")
	httpReq.Header.Add("X-Client-ID", clientID)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}

	var result dto.StartRenderJobDTO
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// Status sends GET /status?jobId=.
func (c *RenderClient) Status(jobID string) (*dto.RenderJobDTO, error) {
	endpoint := fmt.Sprintf("%s/status?jobId=%s", c.BaseURL, url.QueryEscape(jobID))
	resp, err := c.HTTPClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}

	var result dto.RenderJobDTO
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// Video sends GET /video?jobId= and copies the mp4 into w.
func (c *RenderClient) Video(jobID string, w io.Writer) (int64, error) {
	endpoint := fmt.Sprintf("%s/video?jobId=%s", c.BaseURL, url.QueryEscape(jobID))
	// 视频可能较大，不设置整体超时
	client := *c.HTTPClient
	client.Timeout = 0
	resp, err := client.Get(endpoint)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, newAPIError(resp)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download interrupted: %w", err)
	}
	return n, nil
}
