package service

import (
	"context"
	"procurement/internal/models"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.published(t, models.CategoryOpen)

	comment, err := f.svc.AddComment(ctx, f.vendors[0].Username, tender.Id, "  Is the asphalt supplied?  ")
	require.NoError(t, err)
	assert.Equal(t, "Is the asphalt supplied?", comment.Text)
	assert.Equal(t, f.vendors[0].Id, comment.AuthorId)

	_, err = f.svc.AddComment(ctx, f.owner.Username, tender.Id, "Yes.")
	require.NoError(t, err)

	_, err = f.svc.AddComment(ctx, f.owner.Username, tender.Id, "   ")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.svc.AddComment(ctx, f.owner.Username, tender.Id, strings.Repeat("x", models.MaxCommentLength+1))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	comments, err := f.svc.TenderComments(ctx, f.vendors[1].Username, tender.Id)
	require.NoError(t, err)
	assert.Len(t, comments, 2)

	draft, err := f.svc.CreateTender(ctx, f.owner.Username, newTender(models.CategoryOpen, tender.Deadline))
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, f.vendors[0].Username, draft.Id, "early question")
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = f.svc.TenderComments(ctx, f.vendors[0].Username, "missing")
	assert.ErrorIs(t, err, models.ErrNoTender)
}

func TestInvitations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.published(t, models.CategoryClosed)

	inv, err := f.svc.InviteVendor(ctx, f.owner.Username, tender.Id, f.vendors[0].Username)
	require.NoError(t, err)
	assert.Equal(t, f.vendors[0].Id, inv.VendorId)
	assert.Equal(t, []models.NotificationEvent{models.EventTenderInvitation}, f.notes.events(f.vendors[0].Id))

	_, err = f.svc.InviteVendor(ctx, f.owner.Username, tender.Id, f.vendors[0].Username)
	require.NoError(t, err)
	assert.Len(t, f.notes.events(f.vendors[0].Id), 1, "re-inviting must not notify again")

	_, err = f.svc.InviteVendor(ctx, f.other.Username, tender.Id, f.vendors[1].Username)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.InviteVendor(ctx, f.owner.Username, tender.Id, f.other.Username)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.svc.InviteVendor(ctx, f.owner.Username, tender.Id, "nobody")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	invitations, err := f.svc.TenderInvitations(ctx, f.admin.Username, tender.Id)
	require.NoError(t, err)
	assert.Len(t, invitations, 1)

	_, err = f.svc.TenderInvitations(ctx, f.vendors[0].Username, tender.Id)
	assert.ErrorIs(t, err, models.ErrForbidden)

	bid := f.submit(t, tender, f.vendors[0], 100)
	_, err = f.svc.AwardTender(ctx, f.owner.Username, tender.Id, bid.Id)
	require.NoError(t, err)
	_, err = f.svc.InviteVendor(ctx, f.owner.Username, tender.Id, f.vendors[1].Username)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestUserNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.vendors[0]

	first, err := f.repo.AddNotification(ctx, models.Notification{RecipientId: vendor.Id, Event: models.EventBidAccepted, TenderId: "t"})
	require.NoError(t, err)
	_, err = f.repo.AddNotification(ctx, models.Notification{RecipientId: vendor.Id, Event: models.EventTenderInvitation, TenderId: "t"})
	require.NoError(t, err)

	list, err := f.svc.UserNotifications(ctx, vendor.Username, false)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.svc.MarkNotificationRead(ctx, f.vendors[1].Username, first.Id)
	assert.ErrorIs(t, err, models.ErrNoNotification)

	read, err := f.svc.MarkNotificationRead(ctx, vendor.Username, first.Id)
	require.NoError(t, err)
	assert.NotNil(t, read.ReadAt)

	unread, err := f.svc.UserNotifications(ctx, vendor.Username, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, models.EventTenderInvitation, unread[0].Event)

	_, err = f.svc.UserNotifications(ctx, "nobody", false)
	assert.ErrorIs(t, err, models.ErrInvalidUser)
}
