package notify

import (
	"context"
	"fmt"
	"procurement/internal/models"
	"strings"

	"golang.org/x/time/rate"
)

type NotificationStore interface {
	AddNotification(ctx context.Context, n models.Notification) (models.Notification, error)
}

// InApp stores notices for the polling endpoint.
type InApp struct {
	store NotificationStore
}

func NewInApp(store NotificationStore) *InApp {
	return &InApp{store: store}
}

func (c *InApp) Name() string { return "in-app" }

func (c *InApp) Deliver(ctx context.Context, n Notice) error {
	_, err := c.store.AddNotification(ctx, models.Notification{
		RecipientId: n.Recipient,
		Event:       n.Event,
		TenderId:    n.TenderId,
		BidId:       n.BidId,
		Payload:     n.Payload,
	})
	if err != nil {
		return fmt.Errorf("notify.InApp.Deliver: %w", err)
	}
	return nil
}

type UserLookup interface {
	UserByUUID(ctx context.Context, UUID string) (models.User, bool, error)
}

// Email resolves the recipient's address and hands a rendered message to a Mailer,
// no faster than the configured rate.
type Email struct {
	users   UserLookup
	mailer  Mailer
	limiter *rate.Limiter
}

// NewEmail builds an email channel sending at most perSecond messages per second. Zero or less disables the limit.
func NewEmail(users UserLookup, mailer Mailer, perSecond float64) *Email {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Email{
		users:   users,
		mailer:  mailer,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *Email) Name() string { return "email" }

func (c *Email) Deliver(ctx context.Context, n Notice) error {
	user, ok, err := c.users.UserByUUID(ctx, n.Recipient)
	if err != nil {
		return fmt.Errorf("notify.Email.Deliver: %w", err)
	}
	if !ok || len(user.Email) == 0 {
		return nil
	}

	if err = c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify.Email.Deliver: %w", err)
	}

	subject, body := Render(user, n)
	err = c.mailer.Send(ctx, user.Email, subject, body)
	if err != nil {
		return fmt.Errorf("notify.Email.Deliver: %w", err)
	}
	return nil
}

var subjects = map[models.NotificationEvent]string{
	models.EventBidSubmitted:     "New bid on your tender",
	models.EventBidRevised:       "A bid on your tender was revised",
	models.EventBidWithdrawn:     "A bid on your tender was withdrawn",
	models.EventBidAccepted:      "Your bid was accepted",
	models.EventBidNotSelected:   "Your bid was not selected",
	models.EventTenderAwarded:    "Tender awarded",
	models.EventTenderClosed:     "Tender closed without award",
	models.EventTenderInvitation: "You are invited to bid",
}

// Render builds a plain-text subject and body for n addressed to user.
func Render(user models.User, n Notice) (subject, body string) {
	subject, ok := subjects[n.Event]
	if !ok {
		subject = string(n.Event)
	}

	var b strings.Builder
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if len(name) == 0 {
		name = user.Username
	}
	fmt.Fprintf(&b, "Hello %s,\r\n\r\n%s.\r\n\r\nTender: %s\r\n", name, subject, n.TenderId)
	if len(n.BidId) > 0 {
		fmt.Fprintf(&b, "Bid: %s\r\n", n.BidId)
	}
	if title, ok := n.Payload["title"]; ok {
		fmt.Fprintf(&b, "Title: %v\r\n", title)
	}
	return subject, b.String()
}
