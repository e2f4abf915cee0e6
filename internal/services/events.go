package services

import (
	"context"

	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
)

// EventPublisher delivers committed ledger events to external consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev ledger.StatusChangedEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ledger.StatusChangedEvent) error { return nil }

// PageResult is one page of a newest-first listing.
type PageResult[T any] struct {
	Items []T
	Page  ledger.Page
	Total int64
}

// NextPage returns the following page number, or 0 on the last page.
func (p PageResult[T]) NextPage() int {
	if !p.Page.HasNext(p.Total) {
		return 0
	}
	return p.Page.Number + 1
}
