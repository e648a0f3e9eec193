package influx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response is read for its message
const maxErrorBody = 64 << 10

// apiError is a non-2xx response from the bucket API, decoded before the
// generated client sees it so the status code is kept
type apiError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// statusTransport fails bucket API requests that get a 4xx or 5xx answer.
// Write responses pass through untouched; the HTTP service decodes those.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest || isWritePath(req.URL.Path) {
		return resp, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, decodeAPIError(resp.StatusCode, body)
}

func isWritePath(path string) bool {
	return strings.HasSuffix(strings.TrimSuffix(path, "/"), "/write")
}

func decodeAPIError(status int, body []byte) *apiError {
	aerr := &apiError{StatusCode: status}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		aerr.Code = payload.Code
		aerr.Message = payload.Message
	} else {
		aerr.Message = strings.TrimSpace(string(body))
	}

	if aerr.Message == "" {
		aerr.Message = aerr.Code
	}
	if aerr.Message == "" {
		aerr.Message = http.StatusText(status)
	}
	return aerr
}

// newHTTPClient wraps base (or a fresh client) with statusTransport and
// applies timeout when base sets none
func newHTTPClient(base *http.Client, timeout time.Duration) *http.Client {
	hc := &http.Client{}
	if base != nil {
		copied := *base
		hc = &copied
	}
	if hc.Timeout == 0 && timeout > 0 {
		hc.Timeout = timeout
	}

	rt := hc.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	hc.Transport = &statusTransport{base: rt}
	return hc
}
