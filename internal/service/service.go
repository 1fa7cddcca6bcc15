package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"procurement/internal/models"
	"procurement/internal/notify"
	"procurement/internal/repository"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Repository is the persistence the service needs. *repository.Repository implements it.
type Repository interface {
	UserByUsername(ctx context.Context, username string) (models.User, bool, error)
	UserByUUID(ctx context.Context, UUID string) (models.User, bool, error)

	GetTenders(ctx context.Context, filter repository.TenderFilter) ([]models.Tender, error)
	GetTenderByUUID(ctx context.Context, UUID string) (models.Tender, error)
	AddTender(ctx context.Context, t models.Tender) (models.Tender, error)
	ModifyTender(ctx context.Context, UUID string, fn func(*models.Tender) error) (models.Tender, error)
	AwardTender(ctx context.Context, tenderId, bidId string, guard models.AwardGuard) (models.AwardResult, error)
	CloseExpiredTenders(ctx context.Context, cutoff time.Time) ([]models.Tender, error)

	AddBid(ctx context.Context, bid models.Bid, guard func(models.Tender) error) (models.Bid, error)
	ModifyBid(ctx context.Context, UUID string, fn func(models.Tender, *models.Bid) error) (models.Bid, error)
	GetBids(ctx context.Context, filter repository.BidFilter) ([]models.Bid, error)
	GetBidByUUID(ctx context.Context, UUID string) (models.Bid, error)
	GetBidVersions(ctx context.Context, UUID string) ([]models.BidVersion, error)

	AddComment(ctx context.Context, comment models.Comment) (models.Comment, error)
	GetComments(ctx context.Context, tenderId, authorId string) ([]models.Comment, error)
	AddInvitation(ctx context.Context, inv models.TenderInvitation) (models.TenderInvitation, bool, error)
	GetInvitations(ctx context.Context, tenderId string) ([]models.TenderInvitation, error)
	GetNotifications(ctx context.Context, recipientId string, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, UUID, recipientId string) (models.Notification, error)
}

// Notifier receives notices after the change they describe has been committed.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notice)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notify.Notice) {}

type Service struct {
	repo        Repository
	notifier    Notifier
	log         logrus.FieldLogger
	now         func() time.Time
	awardWindow time.Duration
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAwardWindow sets how long after the deadline a published tender may still be awarded.
func WithAwardWindow(d time.Duration) Option {
	return func(s *Service) { s.awardWindow = d }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		notifier:    nopNotifier{},
		log:         logrus.StandardLogger(),
		now:         time.Now,
		awardWindow: 30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

//// Tenders

// GetTenders lists tenders visible to username. An empty username lists published and finished tenders only.
func (s *Service) GetTenders(ctx context.Context, username string, statuses []models.TenderStatus) ([]models.Tender, error) {
	var user models.User
	var err error
	if len(username) > 0 {
		user, err = s.userByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("service.Service.GetTenders: %w", err)
		}
	}

	for _, status := range statuses {
		if !models.ValidTenderStatus(status) {
			return nil, fmt.Errorf("service.Service.GetTenders: %w: status %q", models.ErrInvalidArgument, status)
		}
	}

	tenders, err := s.repo.GetTenders(ctx, repository.TenderFilter{Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetTenders: %w", err)
	}

	visible := make([]models.Tender, 0, len(tenders))
	for _, tender := range tenders {
		if tender.VisibleTo(user) {
			visible = append(visible, tender)
		}
	}
	return visible, nil
}

func (s *Service) CreateTender(ctx context.Context, username string, tender models.Tender) (models.Tender, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return tender, fmt.Errorf("service.Service.CreateTender: %w", err)
	}

	if !user.Role.CanCreateTenders() {
		return tender, fmt.Errorf("service.Service.CreateTender: %w: role %s", models.ErrForbidden, user.Role)
	}

	if len(tender.Category) == 0 {
		tender.Category = models.CategoryOpen
	}
	switch {
	case len(strings.TrimSpace(tender.Title)) == 0:
		return tender, fmt.Errorf("service.Service.CreateTender: %w: empty title", models.ErrInvalidArgument)
	case !models.ValidTenderCategory(tender.Category):
		return tender, fmt.Errorf("service.Service.CreateTender: %w: category %q", models.ErrInvalidArgument, tender.Category)
	case tender.DurationDays <= 0:
		return tender, fmt.Errorf("service.Service.CreateTender: %w: duration must be positive", models.ErrInvalidArgument)
	case tender.Deadline.IsZero():
		return tender, fmt.Errorf("service.Service.CreateTender: %w: deadline is required", models.ErrInvalidArgument)
	}

	if err = models.CheckMoney(tender.BasePrice); err != nil {
		return tender, fmt.Errorf("service.Service.CreateTender: base price: %w", err)
	}

	tender.CreatedBy = user.Id
	tender, err = s.repo.AddTender(ctx, tender)
	if err != nil {
		return tender, fmt.Errorf("service.Service.CreateTender: %w", err)
	}

	return tender, nil
}

func (s *Service) GetUserTenders(ctx context.Context, username string) ([]models.Tender, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetUserTenders: %w", err)
	}

	tenders, err := s.repo.GetTenders(ctx, repository.TenderFilter{CreatedBy: user.Id})
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetUserTenders: %w", err)
	}

	return tenders, nil
}

func (s *Service) GetTender(ctx context.Context, username, tenderId string) (models.Tender, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.GetTender: %w", err)
	}

	tender, err := s.visibleTender(ctx, user, tenderId)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.GetTender: %w", err)
	}

	return tender, nil
}

// PublishTender opens a draft for bidding. The deadline must still be ahead.
func (s *Service) PublishTender(ctx context.Context, username, tenderId string) (models.Tender, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.PublishTender: %w", err)
	}

	tender, err := s.repo.ModifyTender(ctx, tenderId, func(t *models.Tender) error {
		if !t.ManagedBy(user) {
			return models.ErrForbidden
		}
		if t.Status != models.TenderDraft {
			return models.ErrInvalidState
		}
		if !s.now().Before(t.Deadline) {
			return models.ErrDeadlinePassed
		}
		t.Status = models.TenderPublished
		return nil
	})
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.PublishTender: %w", err)
	}

	s.log.WithFields(logrus.Fields{"tender": tender.Id, "user": user.Username}).Info("tender published")
	return tender, nil
}

// CloseExpiredTenders closes published tenders whose award window has elapsed and tells their owners.
func (s *Service) CloseExpiredTenders(ctx context.Context) ([]models.Tender, error) {
	cutoff := s.now().Add(-s.awardWindow)

	closed, err := s.repo.CloseExpiredTenders(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("service.Service.CloseExpiredTenders: %w", err)
	}

	for _, tender := range closed {
		s.notifier.Notify(ctx, notify.Notice{
			Event:     models.EventTenderClosed,
			Recipient: tender.CreatedBy,
			TenderId:  tender.Id,
			Payload:   tenderPayload(tender),
		})
	}

	if len(closed) > 0 {
		s.log.WithField("count", len(closed)).Info("expired tenders closed")
	}
	return closed, nil
}

//// Service

func (s *Service) userByUsername(ctx context.Context, username string) (models.User, error) {
	user, ok, err := s.repo.UserByUsername(ctx, username)
	if err != nil {
		return models.User{}, fmt.Errorf("service.Service.userByUsername: %w", err)
	}
	if !ok {
		return models.User{}, fmt.Errorf("service.Service.userByUsername: %w: %s", models.ErrInvalidUser, username)
	}
	return user, err
}

func (s *Service) tenderByUUID(ctx context.Context, tenderId string) (models.Tender, error) {
	tender, err := s.repo.GetTenderByUUID(ctx, tenderId)
	if errors.Is(err, sql.ErrNoRows) {
		return tender, models.ErrNoTender
	}
	return tender, err
}

// visibleTender hides drafts from everyone but their managers.
func (s *Service) visibleTender(ctx context.Context, user models.User, tenderId string) (models.Tender, error) {
	tender, err := s.tenderByUUID(ctx, tenderId)
	if err != nil {
		return tender, err
	}
	if !tender.VisibleTo(user) {
		return models.Tender{}, models.ErrForbidden
	}
	return tender, nil
}

func (s *Service) bidByUUID(ctx context.Context, bidId string) (models.Bid, error) {
	bid, err := s.repo.GetBidByUUID(ctx, bidId)
	if errors.Is(err, sql.ErrNoRows) {
		return bid, models.ErrNoBid
	}
	return bid, err
}

func tenderPayload(t models.Tender) map[string]any {
	return map[string]any{"title": t.Title}
}

func bidPayload(t models.Tender, b models.Bid) map[string]any {
	return map[string]any{
		"title":    t.Title,
		"amount":   b.Amount.String(),
		"currency": b.Currency,
	}
}
