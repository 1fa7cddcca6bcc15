package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"procurement/internal/models"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxBodySize = 1 << 20

type Service interface {
	GetTenders(ctx context.Context, username string, statuses []models.TenderStatus) ([]models.Tender, error)
	CreateTender(ctx context.Context, username string, tender models.Tender) (models.Tender, error)
	GetUserTenders(ctx context.Context, username string) ([]models.Tender, error)
	GetTender(ctx context.Context, username, tenderId string) (models.Tender, error)
	PublishTender(ctx context.Context, username, tenderId string) (models.Tender, error)
	AwardTender(ctx context.Context, username, tenderId, bidId string) (models.AwardResult, error)

	SubmitBid(ctx context.Context, username string, bid models.Bid) (models.Bid, error)
	ReviseBid(ctx context.Context, username, bidId string, changes models.BidChanges) (models.Bid, error)
	WithdrawBid(ctx context.Context, username, bidId, reason string) (models.Bid, error)
	GetUserBids(ctx context.Context, username string) ([]models.Bid, error)
	GetTenderBids(ctx context.Context, username, tenderId string) ([]models.Bid, error)
	BidHistory(ctx context.Context, username, bidId string) ([]models.BidVersion, error)

	AddComment(ctx context.Context, username, tenderId, text string) (models.Comment, error)
	TenderComments(ctx context.Context, username, tenderId string) ([]models.Comment, error)
	InviteVendor(ctx context.Context, username, tenderId, vendorUsername string) (models.TenderInvitation, error)
	TenderInvitations(ctx context.Context, username, tenderId string) ([]models.TenderInvitation, error)
	UserNotifications(ctx context.Context, username string, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, username, notificationId string) (models.Notification, error)
}

type Controller struct {
	service Service
	log     logrus.FieldLogger
}

func NewController(service Service, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{service: service, log: log}
}

// GET /api/ping
func (c *Controller) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

//// Tenders

// GET /api/tenders
func (c *Controller) GetTenders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var statuses []models.TenderStatus
	for _, s := range query["status"] {
		status := models.TenderStatus(s)
		if !models.ValidTenderStatus(status) {
			c.errorResponse(w, http.StatusBadRequest, "invalid status supplied: "+s)
			return
		}
		statuses = append(statuses, status)
	}

	tenders, err := c.service.GetTenders(r.Context(), query.Get("username"), statuses)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, tenders)
}

// POST /api/tenders/new
func (c *Controller) NewTender(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseNewTenderReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tender, err := c.service.CreateTender(r.Context(), username, req.Tender())
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, tender)
}

// GET /api/tenders/my
func (c *Controller) MyTenders(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}

	tenders, err := c.service.GetUserTenders(r.Context(), username)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, tenders)
}

// GET /api/tenders/{tenderId}
func (c *Controller) GetTender(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	tender, err := c.service.GetTender(r.Context(), username, tenderId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, tender)
}

// PUT /api/tenders/{tenderId}/publish
func (c *Controller) PublishTender(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	tender, err := c.service.PublishTender(r.Context(), username, tenderId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, tender)
}

// POST /api/tenders/{tenderId}/award
func (c *Controller) AwardTender(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseAwardReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := c.service.AwardTender(r.Context(), username, tenderId, req.BidId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, result.Tender)
}

// GET /api/tenders/{tenderId}/bids
func (c *Controller) TenderBids(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	bids, err := c.service.GetTenderBids(r.Context(), username, tenderId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, bids)
}

// POST /api/tenders/{tenderId}/comments
func (c *Controller) AddComment(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseCommentReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := c.service.AddComment(r.Context(), username, tenderId, req.Text)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, comment)
}

// GET /api/tenders/{tenderId}/comments
func (c *Controller) TenderComments(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	comments, err := c.service.TenderComments(r.Context(), username, tenderId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, comments)
}

// POST /api/tenders/{tenderId}/invitations
func (c *Controller) InviteVendor(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseInvitationReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := c.service.InviteVendor(r.Context(), username, tenderId, req.Username)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, inv)
}

// GET /api/tenders/{tenderId}/invitations
func (c *Controller) TenderInvitations(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	invitations, err := c.service.TenderInvitations(r.Context(), username, tenderId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, invitations)
}

//// Bids

// POST /api/bids
func (c *Controller) NewBid(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseNewBidReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	bid, err := c.service.SubmitBid(r.Context(), username, req.Bid())
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, bid)
}

// PUT /api/bids/{bidId}
func (c *Controller) EditBid(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	bidId, ok := c.pathUUID(w, r, "bidId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseReviseBidReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	bid, err := c.service.ReviseBid(r.Context(), username, bidId, req.Changes())
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, bid)
}

// DELETE /api/bids/{bidId}
func (c *Controller) WithdrawBid(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	bidId, ok := c.pathUUID(w, r, "bidId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseWithdrawBidReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	bid, err := c.service.WithdrawBid(r.Context(), username, bidId, req.Reason)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, bid)
}

// GET /api/bids/my
func (c *Controller) MyBids(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}

	bids, err := c.service.GetUserBids(r.Context(), username)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, bids)
}

// GET /api/bids/{bidId}/history
func (c *Controller) BidHistory(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	bidId, ok := c.pathUUID(w, r, "bidId")
	if !ok {
		return
	}

	versions, err := c.service.BidHistory(r.Context(), username, bidId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, versions)
}

//// Notifications

// GET /api/notifications
func (c *Controller) Notifications(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	unread, err := c.getQueryBool(query, "unread")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'unread' query parameter: "+query.Get("unread"))
		return
	}

	notifications, err := c.service.UserNotifications(r.Context(), username, unread)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, notifications)
}

// PUT /api/notifications/{notificationId}/read
func (c *Controller) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	notificationId, ok := c.pathUUID(w, r, "notificationId")
	if !ok {
		return
	}

	notification, err := c.service.MarkNotificationRead(r.Context(), username, notificationId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, notification)
}

//// Service

func (c *Controller) username(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := r.URL.Query().Get("username")
	if len(username) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty username supplied")
		return "", false
	}
	return username, true
}

// pathUUID reads a path value and rejects anything that is not a UUID before it reaches the database.
func (c *Controller) pathUUID(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	value := r.PathValue(key)
	if len(value) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty "+key+" supplied")
		return "", false
	}
	if _, err := uuid.Parse(value); err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid "+key+" supplied: "+value)
		return "", false
	}
	return value, true
}

func (c *Controller) getQueryBool(query url.Values, key string) (bool, error) {
	strs, ok := query[key]
	if ok && len(strs) > 0 && len(strs[0]) > 0 {
		return strconv.ParseBool(strs[0])
	}
	return false, nil
}

func (c *Controller) errorResponse(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	data, err := json.Marshal(ErrorResponse{Reason: text})
	if err != nil {
		c.log.Errorf("controller.Controller.errorResponse: %s", err)
		return
	}

	_, err = w.Write(data)
	if err != nil {
		c.log.Errorf("controller.Controller.errorResponse: %s", err)
		return
	}
}

func (c *Controller) serviceErrorResponse(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidUser):
		c.errorResponse(w, http.StatusUnauthorized, "user does not exist or have no rights for requested action")
	case errors.Is(err, models.ErrForbidden):
		c.errorResponse(w, http.StatusForbidden, "user have no permission for requested action")
	case errors.Is(err, models.ErrNoTender):
		c.errorResponse(w, http.StatusNotFound, "requested tender does not exist or unacessible")
	case errors.Is(err, models.ErrNoBid):
		c.errorResponse(w, http.StatusNotFound, "requested bid does not exist or unacessible")
	case errors.Is(err, models.ErrNoNotification):
		c.errorResponse(w, http.StatusNotFound, "requested notification does not exist")
	case errors.Is(err, models.ErrAlreadyAwarded):
		c.errorResponse(w, http.StatusConflict, "tender is already awarded")
	case errors.Is(err, models.ErrDuplicateBid):
		c.errorResponse(w, http.StatusConflict, "vendor already has an active bid on this tender, revise it instead")
	case errors.Is(err, models.ErrConflictRetry):
		c.errorResponse(w, http.StatusConflict, "request conflicted with a concurrent change, please retry")
	case errors.Is(err, models.ErrInvalidState):
		c.errorResponse(w, http.StatusConflict, "operation is not allowed in the current tender or bid status")
	case errors.Is(err, models.ErrDeadlinePassed):
		c.errorResponse(w, http.StatusBadRequest, "bidding deadline has passed")
	case errors.Is(err, models.ErrInvalidArgument):
		c.errorResponse(w, http.StatusBadRequest, err.Error())
	default:
		c.log.WithError(err).Error("controller: unhandled service error")
		c.errorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

func (c *Controller) marshalResponse(w http.ResponseWriter, data any) {
	d, err := json.Marshal(data)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not marhsal response data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(d)
	if err != nil {
		c.log.Errorf("controller.Controller.marshalResponse: %s", err)
		return
	}
}

func (c *Controller) readBody(src io.ReadCloser) ([]byte, error) {
	defer src.Close()
	return io.ReadAll(io.LimitReader(src, maxBodySize))
}
