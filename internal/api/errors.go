package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ServerError is a non-2xx answer from the dashboard server
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// TransportError is a failure to reach the server or read its answer
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a 401 from the server
func IsUnauthorized(err error) bool {
	var serr *ServerError
	return errors.As(err, &serr) && serr.StatusCode == http.StatusUnauthorized
}

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error string `json:"error"`
}

// newServerError builds a ServerError from a response, preferring the
// server's own "error" string over a generic message
func newServerError(resp *http.Response) *ServerError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && strings.TrimSpace(eb.Error) != "" {
		return &ServerError{StatusCode: resp.StatusCode, Message: eb.Error}
	}

	return &ServerError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
	}
}
