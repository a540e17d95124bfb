// Package notify turns marketplace events into operator alerts. An Alerter
// subscribes to the event bus and fans each matching event out to all
// registered senders (Telegram, Discord), filtered by event type so operators
// receive only the alerts they care about.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mazadapp/mazad/internal/domain"
)

// Sender is the interface each notification channel implements.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Alerter consumes marketplace events from the bus and dispatches alerts. It
// maintains a set of allowed event types; events outside the set are dropped.
// An empty set allows everything.
type Alerter struct {
	bus     domain.EventBus
	senders []Sender
	events  map[domain.EventType]bool
	logger  *slog.Logger
}

// NewAlerter creates an Alerter delivering to the given senders. Only events
// whose type appears in events are forwarded; an empty list allows all.
func NewAlerter(bus domain.EventBus, senders []Sender, events []string, logger *slog.Logger) *Alerter {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		allowed[domain.EventType(strings.TrimSpace(e))] = true
	}
	return &Alerter{
		bus:     bus,
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "alerter")),
	}
}

// Run subscribes to the auction and order channels and dispatches alerts
// until ctx ends.
func (a *Alerter) Run(ctx context.Context) error {
	if len(a.senders) == 0 {
		a.logger.Info("no senders configured, alerter idle")
		<-ctx.Done()
		return ctx.Err()
	}

	msgs, stop, err := a.bus.Subscribe(ctx, domain.ChannelAuctions, domain.ChannelOrders)
	if err != nil {
		return fmt.Errorf("notify: subscribe: %w", err)
	}
	defer stop()

	a.logger.Info("alerter started", slog.Int("senders", len(a.senders)))

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("alerter stopped")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("notify: event stream closed")
			}
			a.handle(ctx, msg)
		}
	}
}

func (a *Alerter) handle(ctx context.Context, msg domain.EventMessage) {
	var ev domain.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		a.logger.Warn("undecodable event", slog.String("channel", msg.Channel), slog.String("error", err.Error()))
		return
	}

	if len(a.events) > 0 && !a.events[ev.Type] {
		return
	}

	title, message := formatEvent(ev)
	if title == "" {
		return
	}
	a.dispatch(ctx, title, message)
}

// formatEvent renders an event as an operator-readable alert. Events without
// a rendering return an empty title and are dropped.
func formatEvent(ev domain.Event) (title, message string) {
	switch ev.Type {
	case domain.EventAuctionConcluded:
		if ev.UserID == "" {
			return "Auction concluded",
				fmt.Sprintf("Product %s closed without bids.", ev.ProductID)
		}
		return "Auction concluded",
			fmt.Sprintf("Product %s won by %s at %d.%02d (order %s).",
				ev.ProductID, ev.UserID, ev.Amount/100, ev.Amount%100, ev.OrderID)
	case domain.EventPaymentSettled:
		if ev.Status == string(domain.OrderPaid) {
			return "Payment received",
				fmt.Sprintf("Order %s paid: %d.%02d.", ev.OrderID, ev.Amount/100, ev.Amount%100)
		}
		return "Payment failed",
			fmt.Sprintf("Order %s settled as %s.", ev.OrderID, ev.Status)
	default:
		return "", ""
	}
}

// dispatch sends to every sender; one failing sender does not block the rest.
func (a *Alerter) dispatch(ctx context.Context, title, message string) {
	for _, s := range a.senders {
		if err := s.Send(ctx, title, message); err != nil {
			a.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
}
