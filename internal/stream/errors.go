package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 1 << 20

// Messages surfaced to the user.
const (
	unexpectedMessage  = "an unexpected error occurred during streaming"
	unavailableMessage = "streaming response unavailable, check your network proxy configuration"
)

// ErrStreamUnavailable happens when a successful response carries no body to
// stream from.
var ErrStreamUnavailable = errors.New(unavailableMessage)

// StatusError is a non-2xx response from the analysis backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string { return e.Message }

// TransportError happens when the request never reached the backend.
type TransportError struct {
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network error: cannot reach the analysis backend (check %s)", e.Host)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrorMessage builds a single diagnostic line out of a failed response, in
// the form "<status>[ <status text>][: <detail>]". It never fails: anything
// that cannot be read or parsed degrades to the status part alone.
//
// The body is consumed and closed.
func ErrorMessage(resp *http.Response) string {
	status := statusPart(resp)
	if resp.Body == nil {
		return status
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err != nil || !gjson.ValidBytes(body) {
			return status
		}
		detail := gjson.GetBytes(body, "detail")
		if detail.Type != gjson.String || strings.TrimSpace(detail.Str) == "" {
			return status
		}
		return status + ": " + detail.Str
	}

	if err != nil {
		return status
	}
	if text := string(body); strings.TrimSpace(text) != "" {
		return status + ": " + text
	}
	return status
}

func statusPart(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, code))
	if text == "" {
		return code
	}
	return code + " " + text
}

// FailureMessage turns an exchange error into the message stored in the
// session's failure field.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); strings.TrimSpace(msg) != "" {
		return msg
	}
	return unexpectedMessage
}

// recoveredError converts a recovered panic value into an error.
func recoveredError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return errors.New(unexpectedMessage)
}
