package service

import (
	"context"
	"fmt"
	"procurement/internal/models"
	"procurement/internal/notify"
	"procurement/internal/repository"
	"regexp"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

func (s *Service) SubmitBid(ctx context.Context, username string, bid models.Bid) (models.Bid, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return bid, fmt.Errorf("service.Service.SubmitBid: %w", err)
	}

	if !user.Role.CanBid() {
		return bid, fmt.Errorf("service.Service.SubmitBid: %w: role %s", models.ErrForbidden, user.Role)
	}

	if len(bid.Currency) == 0 {
		bid.Currency = models.DefaultCurrency
	}
	if err = validateAmount(bid.Amount); err != nil {
		return bid, fmt.Errorf("service.Service.SubmitBid: %w", err)
	}
	if !currencyCode.MatchString(bid.Currency) {
		return bid, fmt.Errorf("service.Service.SubmitBid: %w: currency %q", models.ErrInvalidArgument, bid.Currency)
	}

	bid.VendorId = user.Id

	var tender models.Tender
	created, err := s.repo.AddBid(ctx, bid, func(t models.Tender) error {
		tender = t
		return t.BiddingOpen(s.now())
	})
	if err != nil {
		return bid, fmt.Errorf("service.Service.SubmitBid: %w", err)
	}

	s.notifyOwner(ctx, models.EventBidSubmitted, tender, created)
	return created, nil
}

func (s *Service) ReviseBid(ctx context.Context, username, bidId string, changes models.BidChanges) (models.Bid, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.ReviseBid: %w", err)
	}

	if err = validateAmount(changes.Amount); err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.ReviseBid: %w", err)
	}

	var tender models.Tender
	bid, err := s.repo.ModifyBid(ctx, bidId, func(t models.Tender, b *models.Bid) error {
		tender = t
		if err := b.MutableBy(user); err != nil {
			return err
		}
		if err := t.BiddingOpen(s.now()); err != nil {
			return err
		}
		b.Apply(changes, s.now())
		return nil
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.ReviseBid: %w", err)
	}

	s.notifyOwner(ctx, models.EventBidRevised, tender, bid)
	return bid, nil
}

func (s *Service) WithdrawBid(ctx context.Context, username, bidId, reason string) (models.Bid, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.WithdrawBid: %w", err)
	}

	var tender models.Tender
	bid, err := s.repo.ModifyBid(ctx, bidId, func(t models.Tender, b *models.Bid) error {
		tender = t
		if err := b.MutableBy(user); err != nil {
			return err
		}
		if err := t.BiddingOpen(s.now()); err != nil {
			return err
		}
		b.Status = models.BidWithdrawn
		b.WithdrawReason = reason
		b.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.WithdrawBid: %w", err)
	}

	s.notifyOwner(ctx, models.EventBidWithdrawn, tender, bid)
	return bid, nil
}

func (s *Service) GetUserBids(ctx context.Context, username string) ([]models.Bid, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetUserBids: %w", err)
	}

	bids, err := s.repo.GetBids(ctx, repository.BidFilter{VendorId: user.Id})
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetUserBids: %w", err)
	}

	return bids, nil
}

// GetTenderBids returns the bids user may see: managers see every bid, others see all bids of an
// open tender and only their own on a closed one.
func (s *Service) GetTenderBids(ctx context.Context, username, tenderId string) ([]models.Bid, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetTenderBids: %w", err)
	}

	tender, err := s.visibleTender(ctx, user, tenderId)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetTenderBids: %w", err)
	}

	filter := repository.BidFilter{TenderId: tender.Id}
	if !tender.ManagedBy(user) && tender.Category == models.CategoryClosed {
		filter.VendorId = user.Id
	}

	bids, err := s.repo.GetBids(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetTenderBids: %w", err)
	}

	return bids, nil
}

// BidHistory is available to the bid's vendor and to the managers of its tender.
func (s *Service) BidHistory(ctx context.Context, username, bidId string) ([]models.BidVersion, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.BidHistory: %w", err)
	}

	bid, err := s.bidByUUID(ctx, bidId)
	if err != nil {
		return nil, fmt.Errorf("service.Service.BidHistory: %w", err)
	}

	if bid.VendorId != user.Id {
		tender, err := s.tenderByUUID(ctx, bid.TenderId)
		if err != nil {
			return nil, fmt.Errorf("service.Service.BidHistory: %w", err)
		}
		if !tender.ManagedBy(user) {
			return nil, fmt.Errorf("service.Service.BidHistory: %w", models.ErrForbidden)
		}
	}

	versions, err := s.repo.GetBidVersions(ctx, bid.Id)
	if err != nil {
		return nil, fmt.Errorf("service.Service.BidHistory: %w", err)
	}

	return versions, nil
}

//// Award

// AwardTender selects bidId as the winner of the tender. Every check runs under the tender row lock,
// notices go out only after the award is committed.
func (s *Service) AwardTender(ctx context.Context, username, tenderId, bidId string) (models.AwardResult, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.AwardResult{}, fmt.Errorf("service.Service.AwardTender: %w", err)
	}

	result, err := s.repo.AwardTender(ctx, tenderId, bidId, models.AwardGuard{
		Tender: func(t models.Tender) error {
			if err := models.CheckAwardTender(user, t); err != nil {
				return err
			}
			if err := t.AwardWindowOpen(s.now(), s.awardWindow); err != nil {
				return fmt.Errorf("%w: award window closed at %s", err, t.Deadline.Add(s.awardWindow))
			}
			return nil
		},
		Bid:    models.CheckAwardBid,
	})
	if err != nil {
		return models.AwardResult{}, fmt.Errorf("service.Service.AwardTender: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"tender":   result.Tender.Id,
		"bid":      result.Winner.Id,
		"rejected": len(result.Rejected),
		"user":     user.Username,
	}).Info("tender awarded")

	s.notifier.Notify(ctx, notify.Notice{
		Event:     models.EventBidAccepted,
		Recipient: result.Winner.VendorId,
		TenderId:  result.Tender.Id,
		BidId:     result.Winner.Id,
		Payload:   bidPayload(result.Tender, result.Winner),
	})
	for _, bid := range result.Rejected {
		s.notifier.Notify(ctx, notify.Notice{
			Event:     models.EventBidNotSelected,
			Recipient: bid.VendorId,
			TenderId:  result.Tender.Id,
			BidId:     bid.Id,
			Payload:   bidPayload(result.Tender, bid),
		})
	}
	if result.Tender.CreatedBy != user.Id {
		s.notifier.Notify(ctx, notify.Notice{
			Event:     models.EventTenderAwarded,
			Recipient: result.Tender.CreatedBy,
			TenderId:  result.Tender.Id,
			BidId:     result.Winner.Id,
			Payload:   bidPayload(result.Tender, result.Winner),
		})
	}

	return result, nil
}

func (s *Service) notifyOwner(ctx context.Context, event models.NotificationEvent, tender models.Tender, bid models.Bid) {
	s.notifier.Notify(ctx, notify.Notice{
		Event:     event,
		Recipient: tender.CreatedBy,
		TenderId:  tender.Id,
		BidId:     bid.Id,
		Payload:   bidPayload(tender, bid),
	})
}

func validateAmount(amount decimal.Decimal) error {
	return models.CheckMoney(amount)
}
