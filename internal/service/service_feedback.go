package service

import (
	"context"
	"fmt"
	"procurement/internal/models"
	"procurement/internal/notify"
	"strings"
	"unicode/utf8"
)

//// Comments

func (s *Service) AddComment(ctx context.Context, username, tenderId, text string) (models.Comment, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.Comment{}, fmt.Errorf("service.Service.AddComment: %w", err)
	}

	text = strings.TrimSpace(text)
	if len(text) == 0 || utf8.RuneCountInString(text) > models.MaxCommentLength {
		return models.Comment{}, fmt.Errorf("service.Service.AddComment: %w: comment must be 1 to %d characters", models.ErrInvalidArgument, models.MaxCommentLength)
	}

	tender, err := s.visibleTender(ctx, user, tenderId)
	if err != nil {
		return models.Comment{}, fmt.Errorf("service.Service.AddComment: %w", err)
	}

	comment, err := s.repo.AddComment(ctx, models.Comment{TenderId: tender.Id, AuthorId: user.Id, Text: text})
	if err != nil {
		return models.Comment{}, fmt.Errorf("service.Service.AddComment: %w", err)
	}

	return comment, nil
}

func (s *Service) TenderComments(ctx context.Context, username, tenderId string) ([]models.Comment, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.TenderComments: %w", err)
	}

	tender, err := s.visibleTender(ctx, user, tenderId)
	if err != nil {
		return nil, fmt.Errorf("service.Service.TenderComments: %w", err)
	}

	comments, err := s.repo.GetComments(ctx, tender.Id, "")
	if err != nil {
		return nil, fmt.Errorf("service.Service.TenderComments: %w", err)
	}

	return comments, nil
}

//// Invitations

// InviteVendor invites a vendor to bid. Inviting the same vendor twice returns the first invitation
// and sends no second notice.
func (s *Service) InviteVendor(ctx context.Context, username, tenderId, vendorUsername string) (models.TenderInvitation, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.TenderInvitation{}, fmt.Errorf("service.Service.InviteVendor: %w", err)
	}

	tender, err := s.tenderByUUID(ctx, tenderId)
	if err != nil {
		return models.TenderInvitation{}, fmt.Errorf("service.Service.InviteVendor: %w", err)
	}
	if !tender.ManagedBy(user) {
		return models.TenderInvitation{}, fmt.Errorf("service.Service.InviteVendor: %w", models.ErrForbidden)
	}
	if tender.Status.Terminal() {
		return models.TenderInvitation{}, fmt.Errorf("service.Service.InviteVendor: %w", models.ErrInvalidState)
	}

	vendor, ok, err := s.repo.UserByUsername(ctx, vendorUsername)
	if err != nil {
		return models.TenderInvitation{}, fmt.Errorf("service.Service.InviteVendor: %w", err)
	}
	if !ok || vendor.Role != models.RoleVendor {
		return models.TenderInvitation{}, fmt.Errorf("service.Service.InviteVendor: %w: %s is not a vendor", models.ErrInvalidArgument, vendorUsername)
	}

	inv, created, err := s.repo.AddInvitation(ctx, models.TenderInvitation{TenderId: tender.Id, VendorId: vendor.Id, InvitedBy: user.Id})
	if err != nil {
		return models.TenderInvitation{}, fmt.Errorf("service.Service.InviteVendor: %w", err)
	}

	if created {
		s.notifier.Notify(ctx, notify.Notice{
			Event:     models.EventTenderInvitation,
			Recipient: vendor.Id,
			TenderId:  tender.Id,
			Payload:   tenderPayload(tender),
		})
	}
	return inv, nil
}

func (s *Service) TenderInvitations(ctx context.Context, username, tenderId string) ([]models.TenderInvitation, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.TenderInvitations: %w", err)
	}

	tender, err := s.tenderByUUID(ctx, tenderId)
	if err != nil {
		return nil, fmt.Errorf("service.Service.TenderInvitations: %w", err)
	}
	if !tender.ManagedBy(user) {
		return nil, fmt.Errorf("service.Service.TenderInvitations: %w", models.ErrForbidden)
	}

	invitations, err := s.repo.GetInvitations(ctx, tender.Id)
	if err != nil {
		return nil, fmt.Errorf("service.Service.TenderInvitations: %w", err)
	}

	return invitations, nil
}

//// Notifications

func (s *Service) UserNotifications(ctx context.Context, username string, unreadOnly bool) ([]models.Notification, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.UserNotifications: %w", err)
	}

	notifications, err := s.repo.GetNotifications(ctx, user.Id, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("service.Service.UserNotifications: %w", err)
	}

	return notifications, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, username, notificationId string) (models.Notification, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.Notification{}, fmt.Errorf("service.Service.MarkNotificationRead: %w", err)
	}

	n, err := s.repo.MarkNotificationRead(ctx, notificationId, user.Id)
	if err != nil {
		return models.Notification{}, fmt.Errorf("service.Service.MarkNotificationRead: %w", err)
	}

	return n, nil
}
