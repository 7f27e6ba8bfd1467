package xerrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusStaleToken is returned by the backend when the presented access token
// has expired but the session behind it may still be refreshed.
const StatusStaleToken = 498

// APIError is the normalized failure shape every dispatcher call rejects with.
// Status is 0 when no response was received.
type APIError struct {
	Op      string
	Status  int
	Data    json.RawMessage
	Network bool // no response received
	Local   bool // produced before transmission
	Err     error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil && e.Status > 0:
		return fmt.Sprintf("%s: status=%d: %v", e.Op, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Status > 0:
		return fmt.Sprintf("%s: status=%d", e.Op, e.Status)
	default:
		return e.Op
	}
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is maps auth statuses onto the package sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrStaleToken:
		return e.Status == StatusStaleToken
	}
	return false
}

// Message extracts the "message" field of an error envelope, if present.
func (e *APIError) Message() string {
	if e == nil || len(e.Data) == 0 {
		return ""
	}
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(e.Data, &envelope); err != nil {
		return ""
	}
	if envelope.Error != "" {
		return envelope.Message + ": " + envelope.Error
	}
	return envelope.Message
}

// NewLocalUnauthorized builds the synthetic 401 used when a request is
// aborted because no credential could be obtained.
func NewLocalUnauthorized(op string) *APIError {
	data, _ := json.Marshal(map[string]string{"message": ErrNoToken.Error()})
	return &APIError{
		Op:     op,
		Status: http.StatusUnauthorized,
		Data:   data,
		Local:  true,
		Err:    ErrNoToken,
	}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
