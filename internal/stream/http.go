package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// RequestBuilder is an interface for building HTTP requests for the analysis
// backend.
type RequestBuilder interface {
	Build(ctx context.Context, method, url string, body io.Reader, header http.Header) (*http.Request, error)
}

// HTTPRequestBuilder is an implementation of RequestBuilder that builds HTTP
// requests.
type HTTPRequestBuilder struct{}

// NewRequestBuilder creates a new HTTPRequestBuilder.
func NewRequestBuilder() *HTTPRequestBuilder {
	return &HTTPRequestBuilder{}
}

// Build builds an HTTP request.
func (b *HTTPRequestBuilder) Build(
	ctx context.Context,
	method string,
	url string,
	body io.Reader,
	header http.Header,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if header != nil {
		req.Header = header
	}
	return req, nil
}

type requestOptions struct {
	body   io.Reader
	header http.Header
}

type requestOption func(*requestOptions)

func withBody(body io.Reader) requestOption {
	return func(args *requestOptions) {
		args.body = body
	}
}

func withContentType(contentType string) requestOption {
	return func(args *requestOptions) {
		args.header.Set("Content-Type", contentType)
	}
}

func isFailureStatusCode(resp *http.Response) bool {
	return resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices
}

// hasBody reports whether the status allows a streamed body. An empty 200
// still counts as a stream; net/http hands it over as http.NoBody.
func hasBody(resp *http.Response) bool {
	if resp.Body == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusResetContent, http.StatusNotModified:
		return false
	}
	return true
}
