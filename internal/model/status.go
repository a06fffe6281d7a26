// internal/model/status.go
package model

import "encoding/json"

// Status is the result of a control RPC. A status is OK exactly when it has
// no message property; an empty message still counts as an error.
type Status struct {
	Message *string    `json:"message,omitempty"`
	Code    *ErrorCode `json:"code,omitempty"`
}

// OK is the successful status
var OK = Status{}

// Well-known error statuses
var (
	NotConnected     = ErrorStatus("Not connected.")
	AlreadyConnected = ErrorStatus("Already connected.")
	ConfigMissing    = ErrorStatus("Monitor configuration is missing.")
)

// ErrorStatus builds a non-OK status
func ErrorStatus(message string) Status {
	return Status{Message: &message}
}

// ErrorStatusWithCode builds a non-OK status carrying a classified code
func ErrorStatusWithCode(message string, code *ErrorCode) Status {
	return Status{Message: &message, Code: code}
}

// IsOK reports whether the status has no message
func (s Status) IsOK() bool {
	return s.Message == nil
}

// Error returns the message or the empty string for OK
func (s Status) Error() string {
	if s.Message == nil {
		return ""
	}
	return *s.Message
}

// UnmarshalJSON keeps a present-but-null message distinguishable from an
// absent one.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Status{}
	if msg, ok := raw["message"]; ok {
		var text string
		if string(msg) != "null" {
			if err := json.Unmarshal(msg, &text); err != nil {
				return err
			}
		}
		s.Message = &text
	}
	if code, ok := raw["code"]; ok && string(code) != "null" {
		var c ErrorCode
		if err := json.Unmarshal(code, &c); err != nil {
			return err
		}
		s.Code = &c
	}
	return nil
}
