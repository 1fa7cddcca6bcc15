package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BidStatus string

const (
	BidSubmitted BidStatus = "submitted"
	BidRevised   BidStatus = "revised"
	BidAccepted  BidStatus = "accepted"
	BidRejected  BidStatus = "rejected"
	BidWithdrawn BidStatus = "withdrawn"
)

func ValidBidStatus(t BidStatus) bool {
	switch t {
	case BidSubmitted, BidRevised, BidAccepted, BidRejected, BidWithdrawn:
		return true
	default:
		return false
	}
}

// Active reports whether a bid in status t may still be revised, withdrawn or awarded.
func (t BidStatus) Active() bool {
	return t == BidSubmitted || t == BidRevised
}

const DefaultCurrency = "USD"

type Bid struct {
	Id             string          `json:"id"`
	Version        int             `json:"version"`
	TenderId       string          `json:"tenderId"`
	VendorId       string          `json:"vendorId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Notes          string          `json:"notes"`
	Documents      []string        `json:"documents"`
	Status         BidStatus       `json:"status"`
	WithdrawReason string          `json:"withdrawReason,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// BidChanges carries the vendor-editable part of a bid.
type BidChanges struct {
	Amount    decimal.Decimal
	Notes     string
	Documents []string
}

// Apply revises the bid in place.
func (b *Bid) Apply(c BidChanges, now time.Time) {
	b.Amount = c.Amount
	b.Notes = c.Notes
	b.Documents = c.Documents
	b.Status = BidRevised
	b.UpdatedAt = now
}

// MutableBy checks that vendor owns the bid and that it is still active.
func (b Bid) MutableBy(vendor User) error {
	if b.VendorId != vendor.Id {
		return ErrForbidden
	}
	if !b.Status.Active() {
		return ErrInvalidState
	}
	return nil
}

// BidVersion is a snapshot of a bid taken on every write.
type BidVersion struct {
	BidId     string          `json:"bidId"`
	Version   int             `json:"version"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Notes     string          `json:"notes"`
	Documents []string        `json:"documents"`
	Status    BidStatus       `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (b Bid) Snapshot() BidVersion {
	return BidVersion{
		BidId:     b.Id,
		Version:   b.Version,
		Amount:    b.Amount,
		Currency:  b.Currency,
		Notes:     b.Notes,
		Documents: b.Documents,
		Status:    b.Status,
		CreatedAt: b.UpdatedAt,
	}
}
