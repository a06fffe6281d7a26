// internal/monitor/settings.go
package monitor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"monitor-service/internal/model"
)

// Settings negotiates device parameters. The descriptor is opaque; callers
// look up well-known keys and treat a missing key as an unsupported feature.
type Settings struct {
	service Service
	manager *Manager
	logger  *zap.Logger
}

// NewSettings creates a negotiator. manager may be nil, in which case all
// changes go through the control RPC.
func NewSettings(service Service, manager *Manager, logger *zap.Logger) *Settings {
	return &Settings{
		service: service,
		manager: manager,
		logger:  logger.With(zap.String("component", "monitor-settings")),
	}
}

// Current returns the parameters the device advertises for board and port
func (s *Settings) Current(ctx context.Context, board model.BoardRef, port model.PortRef) (model.SettingsDescriptor, error) {
	settings, err := s.service.GetCurrentSettings(ctx, board, port)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for %s: %w", port.Address, err)
	}
	return settings, nil
}

// Change applies settings. An open connection receives them over the
// stream; otherwise they go through the control RPC.
func (s *Settings) Change(ctx context.Context, settings model.SettingsDescriptor) model.Status {
	if s.manager != nil && s.manager.State() == model.StateConnected {
		return s.manager.ChangeSettings(ctx, settings)
	}
	return s.service.ChangeSettings(ctx, settings)
}

// ChangeBaudRate selects rate on the device. supported is false when the
// device has no adjustable baud rate; that is not an error.
func (s *Settings) ChangeBaudRate(ctx context.Context, board model.BoardRef, port model.PortRef, rate model.BaudRate) (supported bool, status model.Status) {
	if err := model.ValidateBaudRate(rate); err != nil {
		return false, model.ErrorStatus(err.Error())
	}

	current, err := s.Current(ctx, board, port)
	if err != nil {
		return false, model.ErrorStatus(err.Error())
	}
	if _, ok := current.Lookup(model.BaudRateSetting); !ok {
		s.logger.Debug("Baud rate not adjustable", zap.String("port", port.Address))
		return false, model.OK
	}

	next, ok := current.Select(model.BaudRateSetting, rate.String())
	if !ok {
		return true, model.ErrorStatus(fmt.Sprintf("baud rate %d is not offered by %s", rate, port.Address))
	}
	return true, s.Change(ctx, next)
}
