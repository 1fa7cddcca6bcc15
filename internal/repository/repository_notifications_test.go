package repository

import (
	"context"
	"procurement/internal/models"
	"testing"
	"time"
)

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	users := InsertTestUsers(t, repo)
	owner := users[models.RoleTenderCreator][0]
	vendor := users[models.RoleVendor][0]

	tender := AddTestTender(t, repo, owner, models.TenderPublished, time.Now().Add(time.Hour))
	bid := AddTestBid(t, repo, tender, vendor, 100)

	submitted, err := repo.AddNotification(ctx, models.Notification{
		RecipientId: owner.Id,
		Event:       models.EventBidSubmitted,
		TenderId:    tender.Id,
		BidId:       bid.Id,
		Payload:     map[string]any{"amount": "100"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if submitted.Payload["amount"] != "100" || submitted.BidId != bid.Id || submitted.ReadAt != nil {
		t.Fatalf("Unexpected stored notification: %+v", submitted)
	}

	_, err = repo.AddNotification(ctx, models.Notification{RecipientId: owner.Id, Event: models.EventTenderClosed, TenderId: tender.Id})
	if err != nil {
		t.Fatal(err)
	}

	list, err := repo.GetNotifications(ctx, owner.Id, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(list))
	}

	// only the recipient can mark it
	_, err = repo.MarkNotificationRead(ctx, submitted.Id, vendor.Id)
	expectErr(t, err, models.ErrNoNotification)

	read, err := repo.MarkNotificationRead(ctx, submitted.Id, owner.Id)
	if err != nil {
		t.Fatal(err)
	}
	if read.ReadAt == nil {
		t.Fatal("Expected read_at to be set")
	}

	again, err := repo.MarkNotificationRead(ctx, submitted.Id, owner.Id)
	if err != nil {
		t.Fatal(err)
	}
	if !again.ReadAt.Equal(*read.ReadAt) {
		t.Error("Expected marking as read to keep the first timestamp")
	}

	unread, err := repo.GetNotifications(ctx, owner.Id, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 || unread[0].Event != models.EventTenderClosed {
		t.Errorf("Expected only the closed notice to be unread, got %+v", unread)
	}
}
