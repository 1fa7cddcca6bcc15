package models

import "time"

type NotificationEvent string

const (
	EventBidSubmitted     NotificationEvent = "bid_submitted"
	EventBidRevised       NotificationEvent = "bid_revised"
	EventBidWithdrawn     NotificationEvent = "bid_withdrawn"
	EventBidAccepted      NotificationEvent = "bid_accepted"
	EventBidNotSelected   NotificationEvent = "bid_not_selected"
	EventTenderAwarded    NotificationEvent = "tender_awarded"
	EventTenderClosed     NotificationEvent = "tender_closed"
	EventTenderInvitation NotificationEvent = "tender_invitation"
)

type Notification struct {
	Id          string            `json:"id"`
	RecipientId string            `json:"recipientId"`
	Event       NotificationEvent `json:"event"`
	TenderId    string            `json:"tenderId"`
	BidId       string            `json:"bidId,omitempty"`
	Payload     map[string]any    `json:"payload"`
	ReadAt      *time.Time        `json:"readAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}
