// internal/repository/event_repository.go
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"monitor-service/internal/database"
	"monitor-service/internal/model"
)

// eventRepository implements EventRepository on postgres
type eventRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewEventRepository creates a new postgres event repository
func NewEventRepository(db *database.DB, logger *zap.Logger) EventRepository {
	return &eventRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a journal event
func (r *eventRepository) Create(ctx context.Context, event *model.MonitorEvent) error {
	query := `
		INSERT INTO monitor_events (
			id, event_type, port_address, protocol, board_name, fqbn,
			baud_rate, code, message, config, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	config, err := json.Marshal(event.Config)
	if err != nil {
		return fmt.Errorf("failed to encode event config: %w", err)
	}

	var code *string
	if event.Code != nil {
		c := string(*event.Code)
		code = &c
	}

	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.EventType, event.Config.Port.Address, event.Config.Port.Protocol,
		event.Config.Board.Name, event.Config.Board.FQBN, int(event.Config.BaudRate),
		code, event.Message, string(config), event.OccurredAt,
	)
	if err != nil {
		r.logger.Error("Failed to create event", zap.Error(err), zap.String("event_type", string(event.EventType)))
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// List returns the newest events first
func (r *eventRepository) List(ctx context.Context, filter *EventFilter) ([]*model.MonitorEvent, error) {
	var (
		conditions []string
		args       []any
	)
	if filter != nil && filter.PortAddress != nil {
		args = append(args, *filter.PortAddress)
		conditions = append(conditions, fmt.Sprintf("port_address = $%d", len(args)))
	}
	if filter != nil && filter.EventType != nil {
		args = append(args, *filter.EventType)
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)))
	}

	query := `SELECT id, event_type, code, message, config, occurred_at FROM monitor_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*model.MonitorEvent{}
	for rows.Next() {
		var (
			event   model.MonitorEvent
			code    *string
			message *string
			config  []byte
		)
		if err := rows.Scan(&event.ID, &event.EventType, &code, &message, &config, &event.OccurredAt); err != nil {
			r.logger.Error("Failed to scan event", zap.Error(err))
			continue
		}
		if code != nil {
			event.Code = model.Code(model.ErrorCode(*code))
		}
		if message != nil {
			event.Message = *message
		}
		if err := json.Unmarshal(config, &event.Config); err != nil {
			r.logger.Warn("Failed to decode event config", zap.Error(err), zap.String("id", event.ID.String()))
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

// DeleteOlderThan removes old events
func (r *eventRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM monitor_events WHERE occurred_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	return result.RowsAffected()
}
