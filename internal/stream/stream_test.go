package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// chunkReader returns exactly one chunk per Read call.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

func chunked(chunks ...string) io.ReadCloser {
	r := &chunkReader{}
	for _, c := range chunks {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

func ok(body io.ReadCloser) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       body,
	}
}

func testClient(rt roundTripFunc) *Client {
	return New(Config{
		BaseURL:    "http://backend.test",
		HTTPClient: &http.Client{Transport: rt},
	})
}

type stubForm string

func (f stubForm) Encode() (io.Reader, string, error) {
	return strings.NewReader(string(f)), "multipart/form-data; boundary=x", nil
}

type brokenForm struct{}

func (brokenForm) Encode() (io.Reader, string, error) { return nil, "", errors.New("file vanished") }

func collect(t *testing.T, client *Client, ctx context.Context) (string, error) {
	t.Helper()
	var sb strings.Builder
	err := client.Analyze(ctx, stubForm("form"), func(s string) { sb.WriteString(s) })
	return sb.String(), err
}

func TestAnalyze(t *testing.T) {
	t.Run("request shape", func(t *testing.T) {
		var got *http.Request
		var body string
		client := testClient(func(r *http.Request) (*http.Response, error) {
			got = r
			bts, _ := io.ReadAll(r.Body)
			body = string(bts)
			return ok(chunked("report")), nil
		})
		out, err := collect(t, client, context.Background())
		require.NoError(t, err)
		require.Equal(t, "report", out)
		require.Equal(t, http.MethodPost, got.Method)
		require.Equal(t, "http://backend.test/analyze_stream", got.URL.String())
		require.Equal(t, "multipart/form-data; boundary=x", got.Header.Get("Content-Type"))
		require.Equal(t, "form", body)
	})

	t.Run("leading whitespace chunk discarded", func(t *testing.T) {
		client := testClient(func(*http.Request) (*http.Response, error) {
			return ok(chunked("   \n", "Hello", " world")), nil
		})
		out, err := collect(t, client, context.Background())
		require.NoError(t, err)
		require.Equal(t, "Hello world", out)
	})

	t.Run("only first chunk is eligible", func(t *testing.T) {
		client := testClient(func(*http.Request) (*http.Response, error) {
			return ok(chunked("Hello", "   ", "world")), nil
		})
		out, err := collect(t, client, context.Background())
		require.NoError(t, err)
		require.Equal(t, "Hello   world", out)
	})

	t.Run("second whitespace chunk kept", func(t *testing.T) {
		client := testClient(func(*http.Request) (*http.Response, error) {
			return ok(chunked(" ", "\n", "# Report")), nil
		})
		out, err := collect(t, client, context.Background())
		require.NoError(t, err)
		require.Equal(t, "\n# Report", out)
	})

	t.Run("multi byte split across chunks", func(t *testing.T) {
		bts := []byte("简历分析")
		client := testClient(func(*http.Request) (*http.Response, error) {
			return ok(chunked(string(bts[:2]), string(bts[2:7]), string(bts[7:]))), nil
		})
		out, err := collect(t, client, context.Background())
		require.NoError(t, err)
		require.Equal(t, "简历分析", out)
	})

	t.Run("dangling tail flushed", func(t *testing.T) {
		bts := []byte("done 简")
		client := testClient(func(*http.Request) (*http.Response, error) {
			return ok(chunked(string(bts[:len(bts)-1]))), nil
		})
		out, err := collect(t, client, context.Background())
		require.NoError(t, err)
		require.Equal(t, "done �", out)
	})

	t.Run("status error", func(t *testing.T) {
		client := testClient(func(*http.Request) (*http.Response, error) {
			return newResponse("400 Bad Request", "application/json", strings.NewReader(`{"detail":"Unsupported file format: .exe"}`)), nil
		})
		out, err := collect(t, client, context.Background())
		require.Empty(t, out)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		require.Equal(t, http.StatusBadRequest, se.StatusCode)
		require.EqualError(t, err, "400 Bad Request: Unsupported file format: .exe")
	})

	t.Run("no content", func(t *testing.T) {
		client := testClient(func(*http.Request) (*http.Response, error) {
			resp := ok(http.NoBody)
			resp.StatusCode, resp.Status = http.StatusNoContent, "204 No Content"
			return resp, nil
		})
		_, err := collect(t, client, context.Background())
		require.ErrorIs(t, err, ErrStreamUnavailable)
	})

	t.Run("no content with fallback text", func(t *testing.T) {
		client := testClient(func(*http.Request) (*http.Response, error) {
			resp := ok(io.NopCloser(strings.NewReader("blocked by proxy policy")))
			resp.StatusCode, resp.Status = http.StatusResetContent, "205 Reset Content"
			return resp, nil
		})
		_, err := collect(t, client, context.Background())
		require.EqualError(t, err, "blocked by proxy policy")
	})

	t.Run("empty ok body", func(t *testing.T) {
		client := testClient(func(*http.Request) (*http.Response, error) {
			return ok(http.NoBody), nil
		})
		out, err := collect(t, client, context.Background())
		require.NoError(t, err)
		require.Empty(t, out)
	})

	t.Run("empty ok from server", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		session := NewSession(New(DefaultConfig(srv.URL)))
		state := session.Start(context.Background(), stubForm("resume"))
		require.False(t, state.Active)
		require.Empty(t, state.Content)
		require.Empty(t, state.Failure)
	})

	t.Run("transport failure", func(t *testing.T) {
		client := testClient(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")
		})
		_, err := collect(t, client, context.Background())
		var te *TransportError
		require.ErrorAs(t, err, &te)
		require.Equal(t, "backend.test", te.Host)
		require.EqualError(t, err, "network error: cannot reach the analysis backend (check backend.test)")
	})

	t.Run("server gone", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client := New(DefaultConfig(srv.URL))
		_, err := collect(t, client, context.Background())
		var te *TransportError
		require.ErrorAs(t, err, &te)
	})

	t.Run("read failure", func(t *testing.T) {
		client := testClient(func(*http.Request) (*http.Response, error) {
			return ok(io.NopCloser(io.MultiReader(strings.NewReader("partial"), failingReader{}))), nil
		})
		out, err := collect(t, client, context.Background())
		require.Equal(t, "partial", out)
		require.EqualError(t, err, "stream interrupted: connection reset")
	})

	t.Run("encode failure", func(t *testing.T) {
		client := testClient(func(*http.Request) (*http.Response, error) {
			t.Fatal("should not send")
			return nil, nil
		})
		err := client.Analyze(context.Background(), brokenForm{}, func(string) {})
		require.EqualError(t, err, "could not encode request: file vanished")
	})

	t.Run("cancel mid stream", func(t *testing.T) {
		pr, pw := io.Pipe()
		client := testClient(func(*http.Request) (*http.Response, error) {
			return ok(pr), nil
		})
		ctx, cancel := context.WithCancel(context.Background())
		var mu sync.Mutex
		var out strings.Builder
		errc := make(chan error, 1)
		go func() {
			errc <- client.Analyze(ctx, stubForm("form"), func(s string) {
				mu.Lock()
				out.WriteString(s)
				mu.Unlock()
			})
		}()

		_, err := pw.Write([]byte("Hello"))
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return out.String() == "Hello"
		}, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case err := <-errc:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("stream did not stop after cancel")
		}
	})

	t.Run("cancel before response", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		client := testClient(func(r *http.Request) (*http.Response, error) {
			cancel()
			return nil, r.Context().Err()
		})
		_, err := collect(t, client, ctx)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("real server", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/analyze_stream" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte(" "))
			w.(http.Flusher).Flush()
			time.Sleep(50 * time.Millisecond)
			_, _ = w.Write([]byte("# Match score: 82"))
		}))
		defer srv.Close()
		out, err := collect(t, New(DefaultConfig(srv.URL)), context.Background())
		require.NoError(t, err)
		require.Equal(t, "# Match score: 82", out)
	})
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"healthy","engine_status":{"llm_provider":{"healthy":true}},"version":"1.0.0"}`))
		}))
		defer srv.Close()
		h, err := New(DefaultConfig(srv.URL+"/")).Health(context.Background())
		require.NoError(t, err)
		require.True(t, h.Healthy())
		require.Equal(t, "1.0.0", h.Version)
		require.Contains(t, h.EngineStatus, "llm_provider")
	})

	t.Run("status error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		_, err := New(DefaultConfig(srv.URL)).Health(context.Background())
		var se *StatusError
		require.ErrorAs(t, err, &se)
		require.Equal(t, "503 Service Unavailable: maintenance\n", se.Message)
	})
}
