// internal/model/errors.go
package model

import "fmt"

// ErrorCode classifies monitor failures. A nil *ErrorCode means unknown.
type ErrorCode string

const (
	// ErrClientCancel means the local side tore the connection down
	ErrClientCancel ErrorCode = "CLIENT_CANCEL"
	// ErrDeviceNotConfigured means the device was detached while open
	ErrDeviceNotConfigured ErrorCode = "DEVICE_NOT_CONFIGURED"
	// ErrDeviceBusy means another process holds the port
	ErrDeviceBusy ErrorCode = "DEVICE_BUSY"
)

// Code returns a pointer suitable for MonitorError.Code
func Code(c ErrorCode) *ErrorCode {
	return &c
}

// MonitorError is a classified failure of a monitor connection
type MonitorError struct {
	Message string        `json:"message"`
	Code    *ErrorCode    `json:"code,omitempty"`
	Config  MonitorConfig `json:"config"`
}

func (e MonitorError) Error() string {
	if e.Code == nil {
		return fmt.Sprintf("monitor error on %s: %s", e.Config.Port.Address, e.Message)
	}
	return fmt.Sprintf("monitor error %s on %s: %s", *e.Code, e.Config.Port.Address, e.Message)
}

// Is reports whether the error carries the given code
func (e MonitorError) Is(code ErrorCode) bool {
	return e.Code != nil && *e.Code == code
}

// IsUnknown reports whether the error has no classification
func (e MonitorError) IsUnknown() bool {
	return e.Code == nil
}
