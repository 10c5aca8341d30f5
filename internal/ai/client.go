// Package ai talks to the external AI evaluation/question service over HTTP.
// Every call is best-effort: callers fall back to local heuristics on failure,
// except report generation which surfaces a retryable error to the user.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"go.uber.org/zap"
)

// Config holds AI service connection settings.
type Config struct {
	BaseURL string
	APIKey  string // optional bearer token
	Timeout time.Duration
}

// Client is an HTTP client for the AI service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// StatusError reports a non-2xx response from the AI service.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai service %s: status %d: %s", e.Endpoint, e.Code, e.Body)
}

// NewClient creates an AI service client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// GenerateQuestion asks the service for the next interview question.
func (c *Client) GenerateQuestion(ctx context.Context, req QuestionRequest) (string, error) {
	var resp questionResponse
	if err := c.postJSON(ctx, "/generate/question", req, &resp); err != nil {
		return "", err
	}
	if resp.Question == "" {
		return "", fmt.Errorf("ai service returned empty question")
	}
	return resp.Question, nil
}

// EvaluateComprehensive scores an answer remotely.
func (c *Client) EvaluateComprehensive(ctx context.Context, req EvaluationRequest) (*Evaluation, error) {
	var resp Evaluation
	if err := c.postJSON(ctx, "/evaluate/comprehensive", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateReport produces the final comprehensive evaluation from a session summary.
func (c *Client) GenerateReport(ctx context.Context, summary any) (*ReportPayload, error) {
	var resp ReportPayload
	if err := c.postJSON(ctx, "/generate/comprehensive-evaluation", summary, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnalyzeVoice submits an audio blob for voice analysis (multipart form).
func (c *Client) AnalyzeVoice(ctx context.Context, sessionID, questionID, filename, contentType string, audio io.Reader) (VoiceAnalysis, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}
	_ = w.WriteField("session_id", sessionID)
	_ = w.WriteField("question_id", questionID)
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze/voice", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze voice: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Endpoint: "/analyze/voice", Code: resp.StatusCode, Body: truncate(raw)}
	}
	var metrics VoiceAnalysis
	if err := json.Unmarshal(raw, &metrics); err != nil {
		return nil, fmt.Errorf("decode voice analysis: %w", err)
	}
	return metrics, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("ai service error",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: truncate(raw)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
	}
	return nil
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
