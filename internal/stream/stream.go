// Package stream consumes the analysis backend's streamed report.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
)

// Backend defaults.
const (
	DefaultBaseURL  = "http://127.0.0.1:8000"
	DefaultEndpoint = "/analyze_stream"
	HealthEndpoint  = "/health"
)

const readChunkSize = 32 * 1024

// Form is an encoded request body. The client does not look inside it.
type Form interface {
	Encode() (body io.Reader, contentType string, err error)
}

// Config represents the configuration for the analysis client.
type Config struct {
	BaseURL    string
	Endpoint   string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// DefaultConfig returns the default configuration for the given backend.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Endpoint:   DefaultEndpoint,
		HTTPClient: &http.Client{},
	}
}

// Client talks to the analysis backend.
type Client struct {
	config Config
	logger *log.Logger

	requestBuilder RequestBuilder
}

// New creates a new Client with the given configuration.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		config:         config,
		logger:         logger.WithPrefix("stream"),
		requestBuilder: NewRequestBuilder(),
	}
}

func (c *Client) url(path string) string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) newRequest(ctx context.Context, method, url string, setters ...requestOption) (*http.Request, error) {
	args := &requestOptions{
		header: make(http.Header),
	}
	for _, setter := range setters {
		setter(args)
	}
	return c.requestBuilder.Build(ctx, method, url, args.body, args.header)
}

// Analyze submits the form and feeds the decoded report to onChunk as it
// arrives. It returns once the stream is exhausted, failed, or ctx is done;
// in the last case the returned error matches ctx.Err().
func (c *Client) Analyze(ctx context.Context, form Form, onChunk func(string)) error {
	body, contentType, err := form.Encode()
	if err != nil {
		return fmt.Errorf("could not encode request: %w", err)
	}

	req, err := c.newRequest(
		ctx,
		http.MethodPost,
		c.url(c.config.Endpoint),
		withBody(body),
		withContentType(contentType),
	)
	if err != nil {
		return err
	}

	c.logger.Debug("sending analysis request", "url", req.URL.String())
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr //nolint:wrapcheck
		}
		return &TransportError{Host: req.URL.Host, Err: err}
	}
	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	stop := context.AfterFunc(ctx, func() { _ = resp.Body.Close() })
	defer stop()
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("analysis response", "status", resp.StatusCode)
	if isFailureStatusCode(resp) {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    ErrorMessage(resp),
		}
	}

	if !hasBody(resp) {
		fallback, _ := io.ReadAll(resp.Body)
		if strings.TrimSpace(string(fallback)) != "" {
			return errors.New(string(fallback))
		}
		return ErrStreamUnavailable
	}

	return c.consume(ctx, resp.Body, onChunk)
}

func (c *Client) consume(ctx context.Context, body io.Reader, onChunk func(string)) error {
	dec := newDecoder()
	buf := make([]byte, readChunkSize)
	var seen bool
	var chunks int

	for {
		n, readErr := body.Read(buf)
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.logger.Debug("stream cancelled", "chunks", chunks)
			return ctxErr //nolint:wrapcheck
		}
		if n > 0 {
			if text := dec.Decode(buf[:n]); text != "" {
				// the backend pings with whitespace before the report starts.
				if !seen && strings.TrimSpace(text) == "" {
					c.logger.Debug("discarding leading padding", "bytes", len(text))
				} else {
					onChunk(text)
					chunks++
				}
				seen = true
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return fmt.Errorf("stream interrupted: %w", readErr)
		}
	}

	if tail := dec.Flush(); strings.TrimSpace(tail) != "" {
		onChunk(tail)
	}
	c.logger.Debug("stream finished", "chunks", chunks)
	return nil
}

// Health is the backend's health report.
type Health struct {
	Status       string         `json:"status"`
	EngineStatus map[string]any `json:"engine_status"`
	Version      string         `json:"version"`
}

// Healthy reports whether the backend is fully operational.
func (h Health) Healthy() bool {
	return h.Status == "healthy"
}

// Health queries the backend health endpoint.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	req, err := c.newRequest(ctx, http.MethodGet, c.url(HealthEndpoint))
	if err != nil {
		return h, err
	}
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return h, ctxErr //nolint:wrapcheck
		}
		return h, &TransportError{Host: req.URL.Host, Err: err}
	}
	if isFailureStatusCode(resp) {
		return h, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    ErrorMessage(resp),
		}
	}
	defer resp.Body.Close() //nolint:errcheck
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return h, fmt.Errorf("could not decode health report: %w", err)
	}
	return h, nil
}
