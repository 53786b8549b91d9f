package util

import "github.com/google/uuid"

// NewSessionID returns an opaque chat session id for callers that did not supply one.
func NewSessionID() string {
	return "sess_" + uuid.NewString()
}

// NewRequestID returns an id for correlating a request across log lines.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}
