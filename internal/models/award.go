package models

import "time"

// AwardGuard holds the precondition checks the award transaction runs after taking the tender row lock
// and before any write. Either check returning an error aborts the award.
type AwardGuard struct {
	Tender func(Tender) error
	Bid    func(Tender, Bid) error
}

// AwardResult describes every row written by a successful award.
type AwardResult struct {
	Tender   Tender `json:"tender"`
	Winner   Bid    `json:"winner"`
	Rejected []Bid  `json:"rejected"`
}

// CheckAwardTender validates the tender side of an award by actor. Together with CheckAwardBid the order is:
// authorization, idempotency guard, tender stage, then bid stage.
func CheckAwardTender(actor User, t Tender) error {
	if !t.ManagedBy(actor) {
		return ErrForbidden
	}
	if len(t.AwardedBidId) > 0 || t.Status == TenderAwarded {
		return ErrAlreadyAwarded
	}
	if t.Status != TenderPublished {
		return ErrInvalidState
	}
	return nil
}

// AwardWindowOpen reports whether a published tender can still be awarded at moment now. The window
// ends window after the deadline, when the expiry sweep would close the tender.
func (t Tender) AwardWindowOpen(now time.Time, window time.Duration) error {
	if !now.Before(t.Deadline.Add(window)) {
		return ErrInvalidState
	}
	return nil
}

// CheckAwardBid rejects bids of other tenders and bids that are no longer active.
func CheckAwardBid(t Tender, b Bid) error {
	if b.TenderId != t.Id {
		return ErrNoBid
	}
	if !b.Status.Active() {
		return ErrInvalidState
	}
	return nil
}
