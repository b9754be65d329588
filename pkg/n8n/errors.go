package n8n

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Sentinel errors returned by the client.
var (
	ErrEmptyBaseURL        = errors.New("base URL cannot be empty")
	ErrUnexpectedResponse  = errors.New("unexpected response from server")
	ErrEmptyWorkflowID     = errors.New("workflow ID cannot be empty")
	ErrInvalidWorkflowJSON = errors.New("workflow definition is not valid JSON")
)

const maxErrorMessageLen = 200

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	status := fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, strings.TrimSpace(status))
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, strings.TrimSpace(status), e.Message)
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func newStatusError(method, path string, code int, body []byte) *StatusError {
	msg := ""
	if gjson.ValidBytes(body) {
		msg = gjson.GetBytes(body, "message").String()
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen] + "..."
	}
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: code,
		Message:    msg,
	}
}
