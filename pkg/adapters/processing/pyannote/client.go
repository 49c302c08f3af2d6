// Package pyannote implements the processing collaborator against the
// pyannote.ai HTTP API: presigned media upload, diarization job
// submission and status polling.
package pyannote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

// Config holds client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MediaSpace string
	// SyncPollInterval paces the internal wait of SubmitSync and
	// SubscribeProgress.
	SyncPollInterval time.Duration
}

// Client talks to the pyannote.ai API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

var _ ports.Processing = (*Client)(nil)

// NewClient creates a pyannote API client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pyannote API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pyannote.ai/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MediaSpace == "" {
		cfg.MediaSpace = "audio-studio"
	}
	if cfg.SyncPollInterval <= 0 {
		cfg.SyncPollInterval = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// apiError is a non-2xx response from the API.
type apiError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *apiError) Error() string {
	return fmt.Sprintf("pyannote API error %d: %s", e.StatusCode, e.Message)
}

// RetryDelay surfaces the parsed Retry-After as a ports.RetryDelayer
// hint. Zero means the server gave none.
func (e *apiError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// Health checks credentials against the /test endpoint.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	return c.doJSON(ctx, http.MethodGet, "/test", nil, &out)
}

// RequestUploadTarget issues a presigned URL for one media object.
func (c *Client) RequestUploadTarget(ctx context.Context, filename, contentType string) (ports.UploadTarget, error) {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = filename[i:]
	}
	mediaURI := fmt.Sprintf("media://%s/%s%s", c.cfg.MediaSpace, uuid.NewString(), ext)

	var out struct {
		URL string `json:"url"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/media", map[string]string{"url": mediaURI}, &out)
	if err != nil {
		return ports.UploadTarget{}, err
	}
	return ports.UploadTarget{
		UploadURL:   out.URL,
		ResourceURI: mediaURI,
		TTLSeconds:  3600,
	}, nil
}

// UploadBytes PUTs the raw file to the presigned URL.
func (c *Client) UploadBytes(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{StatusCode: resp.StatusCode, Message: "upload rejected"}
	}
	return nil
}

// jobPayload is the /diarize request body. Optional fields are omitted
// when unset.
type jobPayload struct {
	URL                 string `json:"url"`
	Model               string `json:"model,omitempty"`
	NumSpeakers         *int   `json:"numSpeakers,omitempty"`
	MinSpeakers         *int   `json:"minSpeakers,omitempty"`
	MaxSpeakers         *int   `json:"maxSpeakers,omitempty"`
	TurnLevelConfidence bool   `json:"turnLevelConfidence,omitempty"`
	Exclusive           bool   `json:"exclusive,omitempty"`
	Confidence          bool   `json:"confidence,omitempty"`
}

// SubmitJob creates a diarization job and returns its handle.
func (c *Client) SubmitJob(ctx context.Context, resourceURI string, opts ports.SubmitOptions) (string, error) {
	payload := jobPayload{
		URL:                 resourceURI,
		Model:               opts.Model,
		NumSpeakers:         opts.NumSpeakers,
		MinSpeakers:         opts.MinSpeakers,
		MaxSpeakers:         opts.MaxSpeakers,
		TurnLevelConfidence: opts.TurnLevelConfidence,
		Exclusive:           opts.Exclusive,
		Confidence:          opts.Confidence,
	}
	var out struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/diarize", payload, &out); err != nil {
		return "", err
	}
	c.logger.Info("diarization job created", zap.String("job_id", out.JobID))
	return out.JobID, nil
}

// jobResponse is the /jobs/{id} response body.
type jobResponse struct {
	JobID   string          `json:"jobId"`
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Output  json.RawMessage `json:"output,omitempty"`
}

// GetJobStatus reads the current job state. Rate-limited reads honor
// the Retry-After header by surfacing it to the caller as an error.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (ports.JobStatus, error) {
	var out jobResponse
	if err := c.doJSON(ctx, http.MethodGet, "/jobs/"+jobID, nil, &out); err != nil {
		return ports.JobStatus{}, err
	}

	status := ports.JobStatus{
		JobID:   out.JobID,
		State:   mapState(out.Status),
		Message: out.Message,
	}
	if status.State == ports.JobStateSucceeded {
		segments, err := DecodeSegments(out.Output)
		if err != nil {
			return ports.JobStatus{}, fmt.Errorf("failed to decode job output: %w", err)
		}
		status.Result = &ports.SubmitResult{
			Status:       out.Status,
			OutputURI:    c.cfg.BaseURL + "/jobs/" + jobID,
			SpeakerCount: countSpeakers(segments),
			SegmentCount: len(segments),
		}
	}
	return status, nil
}

// CancelJob asks the API to cancel a job. The API answers 2xx for
// jobs that already finished, so callers need no terminal-state check.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/jobs/"+jobID, nil, nil); err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	c.logger.Info("diarization job cancelled", zap.String("job_id", jobID))
	return nil
}

// SubmitSync submits a job and blocks until it reaches a terminal
// state, returning the final result record.
func (c *Client) SubmitSync(ctx context.Context, resourceURI string, opts ports.SubmitOptions) (ports.SubmitResult, error) {
	jobID, err := c.SubmitJob(ctx, resourceURI, opts)
	if err != nil {
		return ports.SubmitResult{}, err
	}
	for {
		select {
		case <-ctx.Done():
			return ports.SubmitResult{}, ctx.Err()
		case <-time.After(c.cfg.SyncPollInterval):
		}
		status, err := c.GetJobStatus(ctx, jobID)
		if err != nil {
			if apiErr, ok := err.(*apiError); ok && apiErr.StatusCode == http.StatusTooManyRequests {
				// Back off for the advertised window before the next read.
				select {
				case <-ctx.Done():
					return ports.SubmitResult{}, ctx.Err()
				case <-time.After(apiErr.RetryAfter):
				}
				continue
			}
			return ports.SubmitResult{}, err
		}
		if !status.State.Terminal() {
			continue
		}
		if status.State != ports.JobStateSucceeded || status.Result == nil {
			return ports.SubmitResult{}, fmt.Errorf("job %s ended with status %s", jobID, status.State)
		}
		return *status.Result, nil
	}
}

// SubscribeProgress adapts the polling API into a push stream: one
// goroutine polls and forwards each state change until a terminal
// event or cancellation, then closes the channel.
func (c *Client) SubscribeProgress(ctx context.Context, jobID string) (<-chan ports.StatusEvent, error) {
	events := make(chan ports.StatusEvent, 8)
	go func() {
		defer close(events)
		last := ports.JobState("")
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.SyncPollInterval):
			}
			status, err := c.GetJobStatus(ctx, jobID)
			if err != nil {
				c.logger.Warn("status poll failed", zap.String("job_id", jobID), zap.Error(err))
				if delay, ok := ports.RetryDelay(err); ok && delay > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(delay):
					}
				}
				continue
			}
			if status.State == last && !status.State.Terminal() {
				continue
			}
			last = status.State
			event := ports.StatusEvent{
				JobID:     jobID,
				State:     status.State,
				Message:   status.Message,
				Result:    status.Result,
				Timestamp: time.Now().UTC(),
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
			if status.State.Terminal() {
				return
			}
		}
	}()
	return events, nil
}

// FetchResultObject retrieves and decodes a segment list. The payload
// may be a wrapper object or a bare array.
func (c *Client) FetchResultObject(ctx context.Context, resourceURI string) ([]domain.SpeakerSegment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resourceURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build result request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("result fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read result body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apiError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	// The resource may be the job record itself.
	var job jobResponse
	if err := json.Unmarshal(body, &job); err == nil && len(job.Output) > 0 {
		return DecodeSegments(job.Output)
	}
	return DecodeSegments(body)
}

// doJSON performs one API call with auth and JSON bodies.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60
		if v := resp.Header.Get("Retry-After"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				retryAfter = parsed
			}
		}
		return &apiError{
			StatusCode: resp.StatusCode,
			Message:    "rate limit exceeded",
			RetryAfter: time.Duration(retryAfter) * time.Second,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiMsg struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiMsg) == nil && apiMsg.Error != "" {
			msg = apiMsg.Error
		}
		return &apiError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func mapState(status string) ports.JobState {
	switch strings.ToLower(status) {
	case "created", "submitted":
		return ports.JobStateSubmitted
	case "queued":
		return ports.JobStateQueued
	case "pending":
		return ports.JobStatePending
	case "running", "processing":
		return ports.JobStateRunning
	case "succeeded", "completed":
		return ports.JobStateSucceeded
	case "failed", "error":
		return ports.JobStateFailed
	case "canceled", "cancelled":
		return ports.JobStateCancelled
	default:
		return ports.JobStatePending
	}
}

func countSpeakers(segments []domain.SpeakerSegment) int {
	speakers := map[string]bool{}
	for _, s := range segments {
		speakers[s.Speaker] = true
	}
	return len(speakers)
}
