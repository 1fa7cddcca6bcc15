package models

import "time"

const MaxCommentLength = 1000

type Comment struct {
	Id        string    `json:"id"`
	TenderId  string    `json:"tenderId"`
	AuthorId  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TenderInvitation struct {
	TenderId  string    `json:"tenderId"`
	VendorId  string    `json:"vendorId"`
	InvitedBy string    `json:"invitedBy"`
	CreatedAt time.Time `json:"createdAt"`
}
