// Package notification bridges domain events to outbound channels: email
// alerts for hot leads today, more channels behind the same seam later.
package notification

import (
	"context"

	"swipelink_backend/internal/email"
	"swipelink_backend/internal/events"
	"swipelink_backend/platform/config"
	"swipelink_backend/platform/logger"
)

// Module subscribes to engagement events and fans them out. All delivery is
// best-effort: a failed alert is logged and dropped, never retried into the
// evaluation path.
type Module struct {
	sender     email.Sender
	alertEmail string
	log        *logger.Logger
}

func New(sender email.Sender, cfg config.EmailConfig, log *logger.Logger) *Module {
	return &Module{
		sender:     sender,
		alertEmail: cfg.GetAlertEmail(),
		log:        log,
	}
}

// RegisterHandlers subscribes the module to the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.DealWentHot{}.EventName(), events.HandlerFunc(m.onDealWentHot))
}

func (m *Module) onDealWentHot(ctx context.Context, event events.Event) error {
	e, ok := event.(events.DealWentHot)
	if !ok {
		return nil
	}
	if m.sender == nil || m.alertEmail == "" {
		return nil
	}

	if err := m.sender.SendHotLeadAlert(ctx, m.alertEmail, e.ClientName, e.DealID.String(), e.Score); err != nil {
		m.log.Error("notification: hot lead alert failed", "dealId", e.DealID, "error", err)
	}
	return nil
}
