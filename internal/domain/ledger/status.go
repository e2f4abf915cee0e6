package ledger

import "strings"

// DonationStatus is the lifecycle state of a donation.
type DonationStatus string

const (
	StatusPending   DonationStatus = "PENDING"
	StatusCompleted DonationStatus = "COMPLETED"
	StatusFailed    DonationStatus = "FAILED"
	StatusRefunded  DonationStatus = "REFUNDED"
)

// Statuses lists every known status in lifecycle order.
func Statuses() []DonationStatus {
	return []DonationStatus{StatusPending, StatusCompleted, StatusFailed, StatusRefunded}
}

// ParseStatus normalizes s and reports whether it names a known status.
func ParseStatus(s string) (DonationStatus, bool) {
	st := DonationStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

func (s DonationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s.
func (s DonationStatus) Terminal() bool {
	return len(transitionTable[s]) == 0
}

func (s DonationStatus) String() string { return string(s) }

// PaymentMethod tags how the donor paid. Settlement happens outside this service.
type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "card"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetbanking PaymentMethod = "netbanking"
)

// ParsePaymentMethod defaults an empty value to card.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PaymentCard, true
	}
	switch pm := PaymentMethod(s); pm {
	case PaymentCard, PaymentUPI, PaymentNetbanking:
		return pm, true
	default:
		return "", false
	}
}
