package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

func sampleEvent() ledger.StatusChangedEvent {
	tx := "tx-1"
	d := &ledger.Donation{
		ID:            uuid.New(),
		DonorID:       uuid.New(),
		CampaignID:    uuid.New(),
		Amount:        decimal.RequireFromString("50.00"),
		Status:        ledger.StatusCompleted,
		TransactionID: &tx,
	}
	c := &ledger.Campaign{ID: d.CampaignID, RaisedAmount: decimal.RequireFromString("150.00")}
	return ledger.NewStatusChangedEvent(d, c, ledger.StatusPending, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestEncodeDecodeEvent(t *testing.T) {
	ev := sampleEvent()
	raw, err := EncodeEvent(ev)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	got, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if got.DonationID != ev.DonationID || got.To != ledger.StatusCompleted || got.From != ledger.StatusPending {
		t.Fatalf("decoded event mismatch: want=%+v got=%+v", ev, got)
	}
	if !got.RaisedAmount.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("raised: want=150 got=%s", got.RaisedAmount)
	}
	if got.TransactionID != "tx-1" {
		t.Fatalf("transaction_id: want=tx-1 got=%q", got.TransactionID)
	}
}

func TestDecodeEventRejectsOtherTypes(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"type":"campaign.deleted"}`)); err == nil {
		t.Fatalf("expected error for foreign event type")
	}
	if _, err := DecodeEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestNopEventBus(t *testing.T) {
	b := NewNopEventBus()
	if err := b.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.StartForwarder(context.Background(), nil); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewClientRequiresAddr(t *testing.T) {
	if _, err := NewClient(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error without addr")
	}
	if _, err := NewEventBusFromClient(logger.Nop(), nil, ""); err == nil {
		t.Fatalf("expected error without client")
	}
}

func TestEventBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := NewClient(ctx, Options{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer rdb.Close()
	bus, err := NewEventBusFromClient(logger.Nop(), rdb, "fundtracer.test."+uuid.NewString())
	if err != nil {
		t.Fatalf("NewEventBusFromClient: %v", err)
	}

	got := make(chan ledger.StatusChangedEvent, 1)
	if err := bus.StartForwarder(ctx, func(ev ledger.StatusChangedEvent) { got <- ev }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	ev := sampleEvent()
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case recv := <-got:
		if recv.DonationID != ev.DonationID {
			t.Fatalf("donation id: want=%s got=%s", ev.DonationID, recv.DonationID)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for event")
	}
}
