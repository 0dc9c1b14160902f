// Package instagram holds the two HTTP clients around the Instagram login:
// BackendClient, used by the callback screen to reach this service's proxy
// endpoints, and GraphClient, used by the proxy to reach Instagram itself.
package instagram

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// APIError is a non-success answer from Instagram or from the proxy.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Type != "" {
		return e.Type
	}
	return http.StatusText(e.Status)
}

// errorEnvelope covers the shapes seen in practice: {"error":"..."},
// {"error":{"message":"...","type":"..."}} and {"error_type":"...","error_message":"..."}.
type errorEnvelope struct {
	Error        json.RawMessage `json:"error"`
	ErrorMessage string          `json:"error_message"`
	ErrorType    string          `json:"error_type"`
}

type errorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// errorField returns the text of the "error" member, whether a string or an object.
func (e errorEnvelope) errorField() (text, kind string) {
	raw := bytes.TrimSpace(e.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, ""
	}
	var obj errorObject
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message, obj.Type
	}
	return "", ""
}

// compactBody renders raw as single-line JSON, or trimmed text when it is not JSON.
func compactBody(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return strings.TrimSpace(string(raw))
}
