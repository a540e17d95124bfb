package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mazadapp/mazad/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func jsonEvent(ev domain.Event) ([]byte, error) {
	return json.Marshal(ev)
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		ev        domain.Event
		wantTitle string
		wantIn    string
	}{
		{
			name: "auction concluded with winner",
			ev: domain.Event{
				Type: domain.EventAuctionConcluded, ProductID: "p1",
				UserID: "u1", Amount: 150_50, OrderID: "o1", At: at,
			},
			wantTitle: "Auction concluded",
			wantIn:    "150.50",
		},
		{
			name:      "auction concluded without bids",
			ev:        domain.Event{Type: domain.EventAuctionConcluded, ProductID: "p1", At: at},
			wantTitle: "Auction concluded",
			wantIn:    "without bids",
		},
		{
			name: "payment paid",
			ev: domain.Event{
				Type: domain.EventPaymentSettled, OrderID: "o1",
				Amount: 25_00, Status: string(domain.OrderPaid), At: at,
			},
			wantTitle: "Payment received",
			wantIn:    "25.00",
		},
		{
			name: "payment failed",
			ev: domain.Event{
				Type: domain.EventPaymentSettled, OrderID: "o1",
				Status: string(domain.OrderFailed), At: at,
			},
			wantTitle: "Payment failed",
			wantIn:    "failed",
		},
		{
			name:      "bid events are not alerted",
			ev:        domain.Event{Type: domain.EventBidPlaced, ProductID: "p1", At: at},
			wantTitle: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, message := formatEvent(tt.ev)
			assert.Equal(t, tt.wantTitle, title)
			if tt.wantIn != "" {
				assert.Contains(t, message, tt.wantIn)
			}
		})
	}
}

type recordingSender struct {
	titles []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return "recorder" }

func TestAlerterFiltersEventTypes(t *testing.T) {
	sender := &recordingSender{}
	a := NewAlerter(nil, []Sender{sender}, []string{"payment_settled"}, testLogger())

	paid, _ := jsonEvent(domain.Event{Type: domain.EventPaymentSettled, OrderID: "o1", Status: string(domain.OrderPaid)})
	concluded, _ := jsonEvent(domain.Event{Type: domain.EventAuctionConcluded, ProductID: "p1", UserID: "u1"})

	a.handle(context.Background(), domain.EventMessage{Channel: domain.ChannelOrders, Data: paid})
	a.handle(context.Background(), domain.EventMessage{Channel: domain.ChannelAuctions, Data: concluded})

	assert.Equal(t, []string{"Payment received"}, sender.titles)
}

func TestAlerterSurvivesBadPayloadAndSenderFailure(t *testing.T) {
	failing := &recordingSender{err: context.DeadlineExceeded}
	working := &recordingSender{}
	a := NewAlerter(nil, []Sender{failing, working}, nil, testLogger())

	a.handle(context.Background(), domain.EventMessage{Channel: domain.ChannelOrders, Data: []byte("{broken")})

	ev, _ := jsonEvent(domain.Event{Type: domain.EventPaymentSettled, OrderID: "o1", Status: string(domain.OrderFailed)})
	a.handle(context.Background(), domain.EventMessage{Channel: domain.ChannelOrders, Data: ev})

	assert.Equal(t, []string{"Payment failed"}, working.titles)
}
