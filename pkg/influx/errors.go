package influx

import (
	"errors"
	"fmt"

	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
)

// Operations reported by RemoteRequestError
const (
	OpList   = "list"
	OpDelete = "delete"
	OpCreate = "create"
	OpWrite  = "write"
)

// RemoteRequestError is returned for any non-success response (or transport
// failure) from the database API
type RemoteRequestError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *RemoteRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed with status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Op, e.Message)
}

func (e *RemoteRequestError) Unwrap() error {
	return e.Err
}

func remoteError(op string, err error) *RemoteRequestError {
	rerr := &RemoteRequestError{
		Op:      op,
		Message: err.Error(),
		Err:     err,
	}

	var herr *ihttp.Error
	var aerr *apiError
	switch {
	case errors.As(err, &herr):
		rerr.StatusCode = herr.StatusCode
		rerr.Code = herr.Code
		if herr.Message != "" {
			rerr.Message = herr.Message
		}
	case errors.As(err, &aerr):
		rerr.StatusCode = aerr.StatusCode
		rerr.Code = aerr.Code
		rerr.Message = aerr.Message
	}
	return rerr
}
