package ledger

import "github.com/google/uuid"

const (
	DefaultPageSize      = 10
	DefaultAdminPageSize = 20
	MaxPageSize          = 100
)

// Page is a 1-based offset page request.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page into range, using def when no size was requested.
func (p Page) Normalize(def int) Page {
	if def <= 0 {
		def = DefaultPageSize
	}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = def
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// HasNext reports whether rows exist past this page.
func (p Page) HasNext(total int64) bool {
	return int64(p.Offset()+p.Size) < total
}

// DonationFilter narrows admin listings. Zero values match everything.
type DonationFilter struct {
	Status     DonationStatus
	CampaignID uuid.UUID
}
