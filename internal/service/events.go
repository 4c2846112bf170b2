// internal/service/events.go
package service

import (
	"time"

	"github.com/google/uuid"

	"ecf-service/internal/model"
)

// EventPublisher receives device events. The HTTP layer's event bus is the
// production implementation.
type EventPublisher interface {
	Publish(event model.DeviceEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.DeviceEvent) {}

func newEvent(eventType model.EventType, deviceID uuid.UUID, severity string, data model.JSONObject, now time.Time) model.DeviceEvent {
	return model.DeviceEvent{
		ID:        uuid.New(),
		EventType: eventType,
		DeviceID:  deviceID,
		Data:      data,
		Timestamp: now,
		Source:    "ecf-service",
		Severity:  severity,
	}
}
