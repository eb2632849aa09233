// Package whisprly is the HTTP client for the Whisprly dictation server,
// which transcribes a recording and rewrites it in the requested tone.
package whisprly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"whisprly/internal/domain"
)

const (
	DefaultBaseURL        = "http://localhost:8899"
	DefaultRequestTimeout = 60 * time.Second
	DefaultProbeTimeout   = 5 * time.Second

	maxErrorBody = 64 << 10
)

// Config controls the server client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	ProbeTimeout   time.Duration
	EnableHTTP2    bool
}

// Tones is the server's tone catalogue.
type Tones struct {
	Tones   []string `json:"tones"`
	Default string   `json:"default"`
}

// Client implements ports.DictationPipeline against POST /process.
type Client struct {
	baseURL      string
	http         *http.Client
	probeTimeout time.Duration
	log          *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		http:         newHTTPClient(cfg),
		probeTimeout: cfg.ProbeTimeout,
		log:          logger.With(zap.String("component", "server_client")),
	}
}

func newHTTPClient(cfg Config) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.EnableHTTP2 {
		_ = http2.ConfigureTransport(tr)
	}
	return &http.Client{
		Transport: tr,
		Timeout:   cfg.RequestTimeout,
	}
}

type processResponse struct {
	RawText   string `json:"raw_text"`
	CleanText string `json:"clean_text"`
}

// Run uploads the WAV capture and returns the raw and cleaned text.
func (c *Client) Run(ctx context.Context, audio []byte, tone string) (domain.PipelineResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return domain.PipelineResult{}, domain.NewPipelineError(domain.PipelineUnknown, "failed to build upload", err)
	}
	if _, err := part.Write(audio); err != nil {
		return domain.PipelineResult{}, domain.NewPipelineError(domain.PipelineUnknown, "failed to build upload", err)
	}
	if tone != "" {
		_ = writer.WriteField("tone", tone)
	}
	if err := writer.Close(); err != nil {
		return domain.PipelineResult{}, domain.NewPipelineError(domain.PipelineUnknown, "failed to build upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", body)
	if err != nil {
		return domain.PipelineResult{}, domain.NewPipelineError(domain.PipelineUnknown, "invalid server url", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	var out processResponse
	if err := c.do(req, &out); err != nil {
		return domain.PipelineResult{}, err
	}
	c.log.Debug("server processed audio", zap.Duration("elapsed", time.Since(start)), zap.String("tone", tone))

	return domain.PipelineResult{RawText: out.RawText, CleanedText: out.CleanText}, nil
}

// Tones fetches the server's tone list.
func (c *Client) Tones(ctx context.Context) (Tones, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tones", nil)
	if err != nil {
		return Tones{}, err
	}
	var out Tones
	if err := c.do(req, &out); err != nil {
		return Tones{}, err
	}
	return out, nil
}

// Health reports whether the server answers GET /health.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(req, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return domain.NewPipelineError(domain.PipelineRejected, "server status "+out.Status, nil)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.NewPipelineError(domain.PipelineRejected, errorDetail(resp.StatusCode, raw), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewPipelineError(domain.PipelineUnknown, "invalid server response", err)
	}
	return nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return domain.NewPipelineError(domain.PipelineTimedOut, "", err)
	case errors.Is(err, context.Canceled):
		return domain.NewPipelineError(domain.PipelineUnknown, "request canceled", err)
	default:
		return domain.NewPipelineError(domain.PipelineUnreachable, "", err)
	}
}

// errorDetail extracts the "detail" field of an error response. Validation
// errors carry a structured detail, which is passed through as JSON.
func errorDetail(status int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil {
			return text
		}
		return string(payload.Detail)
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}
