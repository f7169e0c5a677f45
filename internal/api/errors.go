package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoConnection is returned when the request never reached the server.
	ErrNoConnection = errors.New("no connection to server")
	// ErrTimeout is returned when the request deadline passed.
	ErrTimeout = errors.New("request timed out")
)

// HTTPError is a non-2xx response from the hub.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the hub.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}

const fallbackMessage = "server error"

// errorMessage extracts a human message from an error body: a JSON "detail"
// (re-encoded when it is not a string), then "message", then the whole JSON
// document, then the raw text.
func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fallbackMessage
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return string(body)
	}
	for _, key := range []string{"detail", "message"} {
		raw, ok := doc[key]
		if !ok || isEmptyJSON(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}
	return string(body)
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}
