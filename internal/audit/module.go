package audit

import (
	"leadcrm_backend/internal/events"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
)

// Module owns the audit stream publisher. Unlike the HTTP modules it
// registers no routes; it only attaches itself to the event bus.
type Module struct {
	publisher *Publisher
}

// NewModule creates the audit module. When auditing is disabled (or
// Redis is not configured) it returns a module that subscribes nothing.
func NewModule(cfg config.AuditConfig, log *logger.Logger) (*Module, error) {
	if !cfg.IsAuditEnabled() {
		log.Info("audit stream disabled")
		return &Module{}, nil
	}

	publisher, err := NewPublisher(cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("audit stream enabled", "stream", cfg.GetAuditStreamName())
	return &Module{publisher: publisher}, nil
}

// RegisterHandlers subscribes the publisher to stage transitions.
func (m *Module) RegisterHandlers(bus events.Bus) {
	if m.publisher == nil {
		return
	}
	bus.Subscribe(events.StageTransitioned{}.EventName(), m.publisher)
}

// Close releases the publisher's Redis connection.
func (m *Module) Close() error {
	if m.publisher == nil {
		return nil
	}
	return m.publisher.Close()
}
