// internal/stream/envelope.go
package stream

import (
	"encoding/json"
	"fmt"

	"monitor-service/internal/model"
)

// Command names an outbound request on the streaming channel
type Command string

const (
	CommandSendMessage    Command = "SEND_MESSAGE"
	CommandChangeSettings Command = "CHANGE_SETTINGS"
)

// Envelope is one outbound frame: {command, data}
type Envelope struct {
	Command Command         `json:"command"`
	Data    json.RawMessage `json:"data"`
}

// NewEnvelope encodes data under cmd
func NewEnvelope(cmd Command, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", cmd, err)
	}
	return Envelope{Command: cmd, Data: raw}, nil
}

// Message decodes the payload of a SEND_MESSAGE envelope
func (e Envelope) Message() (string, error) {
	if e.Command != CommandSendMessage {
		return "", fmt.Errorf("envelope is %s, not %s", e.Command, CommandSendMessage)
	}
	var msg string
	if err := json.Unmarshal(e.Data, &msg); err != nil {
		return "", fmt.Errorf("invalid message payload: %w", err)
	}
	return msg, nil
}

// Settings decodes the payload of a CHANGE_SETTINGS envelope
func (e Envelope) Settings() (model.SettingsDescriptor, error) {
	if e.Command != CommandChangeSettings {
		return nil, fmt.Errorf("envelope is %s, not %s", e.Command, CommandChangeSettings)
	}
	var settings model.SettingsDescriptor
	if err := json.Unmarshal(e.Data, &settings); err != nil {
		return nil, fmt.Errorf("invalid settings payload: %w", err)
	}
	return settings, nil
}

// DecodeEnvelope parses an outbound frame
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	switch env.Command {
	case CommandSendMessage, CommandChangeSettings:
		return env, nil
	default:
		return Envelope{}, fmt.Errorf("unknown command %q", env.Command)
	}
}

// EncodeFragments builds an inbound frame
func EncodeFragments(fragments []string) ([]byte, error) {
	if fragments == nil {
		fragments = []string{}
	}
	return json.Marshal(fragments)
}

// DecodeFragments parses an inbound frame
func DecodeFragments(frame []byte) ([]string, error) {
	var fragments []string
	if err := json.Unmarshal(frame, &fragments); err != nil {
		return nil, fmt.Errorf("invalid fragment batch: %w", err)
	}
	return fragments, nil
}
