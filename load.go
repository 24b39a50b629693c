package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/talentos/talentos/internal/proto"
)

// loadMsg resolves a job description given as literal text, a file:// path
// or an http(s) URL.
func loadMsg(ctx context.Context, client *http.Client, msg string) (string, error) {
	if strings.HasPrefix(msg, "https://") || strings.HasPrefix(msg, "http://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, msg, nil)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("fetching %s: %s", msg, resp.Status)
		}
		bts, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		return string(bts), nil
	}

	if strings.HasPrefix(msg, "file://") {
		bts, err := os.ReadFile(strings.TrimPrefix(msg, "file://"))
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		return string(bts), nil
	}

	return msg, nil
}

// loadFile reads a document to attach to the request.
func loadFile(path string) (proto.File, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return proto.File{}, err //nolint:wrapcheck
	}
	return proto.File{Name: filepath.Base(path), Content: bts}, nil
}
