package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"procurement/internal/models"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// decimals are validated through their string form
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && models.CheckMoney(d) == nil
	})

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// parseRequest unmarshals data into req and runs the struct validation tags.
func parseRequest(data []byte, req any) error {
	err := json.Unmarshal(data, req)
	if err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}

	err = validate.Struct(req)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return errors.New(validationMessage(fieldErrs[0]))
	}
	return err
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "max":
		return e.Field() + " exceeds the limit of " + e.Param()
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "oneof":
		return e.Field() + " should be one of: " + e.Param()
	case "money":
		return e.Field() + " must be a positive amount with at most 2 decimal places and 16 integer digits"
	case "uuid":
		return e.Field() + " must be a valid UUID"
	case "iso4217":
		return e.Field() + " must be a 3-letter ISO 4217 code"
	default:
		return e.Field() + " is invalid"
	}
}

// New tender request

type NewTenderReq struct {
	Title        string                `json:"title" validate:"required,max=100"`
	Description  string                `json:"description" validate:"max=500"`
	Category     models.TenderCategory `json:"category" validate:"omitempty,oneof=open closed"`
	BasePrice    decimal.Decimal       `json:"basePrice" validate:"money"`
	Deadline     time.Time             `json:"deadline"`
	DurationDays int                   `json:"durationDays" validate:"min=1"`
}

func ParseNewTenderReq(data []byte) (*NewTenderReq, error) {
	t := &NewTenderReq{}

	if err := parseRequest(data, t); err != nil {
		return nil, err
	}
	if t.Deadline.IsZero() {
		return nil, errors.New("deadline is required")
	}
	if len(t.Category) == 0 {
		t.Category = models.CategoryOpen
	}

	return t, nil
}

func (t *NewTenderReq) Tender() models.Tender {
	return models.Tender{
		Title:        t.Title,
		Description:  t.Description,
		Category:     t.Category,
		BasePrice:    t.BasePrice,
		Deadline:     t.Deadline,
		DurationDays: t.DurationDays,
	}
}

// Award request

type AwardReq struct {
	BidId string `json:"bidId" validate:"required,uuid"`
}

func ParseAwardReq(data []byte) (*AwardReq, error) {
	a := &AwardReq{}
	if err := parseRequest(data, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Bid requests

type NewBidReq struct {
	TenderId  string          `json:"tenderId" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" validate:"money"`
	Currency  string          `json:"currency" validate:"omitempty,iso4217"`
	Notes     string          `json:"notes" validate:"max=1000"`
	Documents []string        `json:"documents" validate:"max=20,dive,required,max=500"`
}

func ParseNewBidReq(data []byte) (*NewBidReq, error) {
	b := &NewBidReq{}

	if err := parseRequest(data, b); err != nil {
		return nil, err
	}
	if len(b.Currency) == 0 {
		b.Currency = models.DefaultCurrency
	}
	if b.Documents == nil {
		b.Documents = []string{}
	}

	return b, nil
}

func (b *NewBidReq) Bid() models.Bid {
	return models.Bid{
		TenderId:  b.TenderId,
		Amount:    b.Amount,
		Currency:  b.Currency,
		Notes:     b.Notes,
		Documents: b.Documents,
	}
}

type ReviseBidReq struct {
	Amount    decimal.Decimal `json:"amount" validate:"money"`
	Notes     string          `json:"notes" validate:"max=1000"`
	Documents []string        `json:"documents" validate:"max=20,dive,required,max=500"`
}

func ParseReviseBidReq(data []byte) (*ReviseBidReq, error) {
	b := &ReviseBidReq{}

	if err := parseRequest(data, b); err != nil {
		return nil, err
	}
	if b.Documents == nil {
		b.Documents = []string{}
	}

	return b, nil
}

func (b *ReviseBidReq) Changes() models.BidChanges {
	return models.BidChanges{
		Amount:    b.Amount,
		Notes:     b.Notes,
		Documents: b.Documents,
	}
}

// WithdrawBidReq may be sent as an empty body.
type WithdrawBidReq struct {
	Reason string `json:"reason" validate:"max=500"`
}

func ParseWithdrawBidReq(data []byte) (*WithdrawBidReq, error) {
	w := &WithdrawBidReq{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return w, nil
	}
	if err := parseRequest(data, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Feedback requests

type CommentReq struct {
	Text string `json:"text" validate:"required"`
}

func ParseCommentReq(data []byte) (*CommentReq, error) {
	c := &CommentReq{}
	if err := parseRequest(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

type InvitationReq struct {
	Username string `json:"username" validate:"required,max=100"`
}

func ParseInvitationReq(data []byte) (*InvitationReq, error) {
	i := &InvitationReq{}
	if err := parseRequest(data, i); err != nil {
		return nil, err
	}
	return i, nil
}

// Responses

type ErrorResponse struct {
	Reason string `json:"reason"`
}
