package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TenderStatus string

const (
	TenderDraft     TenderStatus = "draft"
	TenderPublished TenderStatus = "published"
	TenderClosed    TenderStatus = "closed"
	TenderAwarded   TenderStatus = "awarded"
)

func ValidTenderStatus(t TenderStatus) bool {
	switch t {
	case TenderDraft, TenderPublished, TenderClosed, TenderAwarded:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from status t.
func (t TenderStatus) Terminal() bool {
	return t == TenderClosed || t == TenderAwarded
}

// CanTransitionTo follows draft -> published -> {closed | awarded}.
func (t TenderStatus) CanTransitionTo(next TenderStatus) bool {
	switch t {
	case TenderDraft:
		return next == TenderPublished
	case TenderPublished:
		return next == TenderClosed || next == TenderAwarded
	default:
		return false
	}
}

type TenderCategory string

const (
	CategoryOpen   TenderCategory = "open"
	CategoryClosed TenderCategory = "closed"
)

func ValidTenderCategory(c TenderCategory) bool {
	switch c {
	case CategoryOpen, CategoryClosed:
		return true
	default:
		return false
	}
}

type Tender struct {
	Id           string          `json:"id"`
	Version      int             `json:"version"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     TenderCategory  `json:"category"`
	BasePrice    decimal.Decimal `json:"basePrice"`
	Deadline     time.Time       `json:"deadline"`
	DurationDays int             `json:"durationDays"`
	Status       TenderStatus    `json:"status"`
	CreatedBy    string          `json:"createdBy"`
	AwardedBidId string          `json:"awardedBidId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// BiddingOpen reports whether bids may be placed or changed at moment now.
func (t Tender) BiddingOpen(now time.Time) error {
	if t.Status != TenderPublished {
		return ErrInvalidState
	}
	if !now.Before(t.Deadline) {
		return ErrDeadlinePassed
	}
	return nil
}

// VisibleTo reports whether user may see the tender at all. Drafts are private to their owner.
func (t Tender) VisibleTo(user User) bool {
	if t.Status != TenderDraft {
		return true
	}
	return t.ManagedBy(user)
}

// ManagedBy reports whether user is the tender's owner or an administrator.
func (t Tender) ManagedBy(user User) bool {
	switch user.Role {
	case RoleAdmin:
		return true
	case RoleTenderCreator, RoleVendor:
		return t.CreatedBy == user.Id
	default:
		return false
	}
}
