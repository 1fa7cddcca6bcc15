package service

import (
	"context"
	"database/sql"
	"fmt"
	"procurement/internal/models"
	"procurement/internal/repository"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo mirrors the Postgres repository semantics in memory. One mutex stands in for the row locks.
type memRepo struct {
	mu            sync.Mutex
	users         map[string]models.User
	tenders       map[string]models.Tender
	bids          map[string]models.Bid
	versions      map[string][]models.BidVersion
	comments      []models.Comment
	invitations   []models.TenderInvitation
	notifications []models.Notification
	order         []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:    make(map[string]models.User),
		tenders:  make(map[string]models.Tender),
		bids:     make(map[string]models.Bid),
		versions: make(map[string][]models.BidVersion),
	}
}

func (r *memRepo) addUser(username string, role models.Role) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := models.User{Id: uuid.NewString(), Username: username, Email: username + "@example.test", Role: role}
	r.users[user.Id] = user
	return user
}

func (r *memRepo) UserByUsername(_ context.Context, username string) (models.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, true, nil
		}
	}
	return models.User{}, false, nil
}

func (r *memRepo) UserByUUID(_ context.Context, UUID string) (models.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[UUID]
	return user, ok, nil
}

func (r *memRepo) GetTenders(_ context.Context, filter repository.TenderFilter) ([]models.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []models.Tender{}
	for _, id := range r.order {
		t, ok := r.tenders[id]
		if !ok {
			continue
		}
		if len(filter.Id) > 0 && t.Id != filter.Id ||
			len(filter.CreatedBy) > 0 && t.CreatedBy != filter.CreatedBy ||
			len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (r *memRepo) GetTenderByUUID(_ context.Context, UUID string) (models.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenders[UUID]
	if !ok {
		return t, fmt.Errorf("memRepo.GetTenderByUUID: %w", sql.ErrNoRows)
	}
	return t, nil
}

func (r *memRepo) AddTender(_ context.Context, t models.Tender) (models.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.Id = uuid.NewString()
	t.Version = 1
	t.Status = models.TenderDraft
	t.AwardedBidId = ""
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	r.tenders[t.Id] = t
	r.order = append(r.order, t.Id)
	return t, nil
}

func (r *memRepo) ModifyTender(_ context.Context, UUID string, fn func(*models.Tender) error) (models.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenders[UUID]
	if !ok {
		return t, models.ErrNoTender
	}
	previous := t.Status
	if err := fn(&t); err != nil {
		return t, err
	}
	if (t.Status != previous && !previous.CanTransitionTo(t.Status)) || t.Status == models.TenderAwarded {
		return t, models.ErrInvalidState
	}
	t.Version++
	t.AwardedBidId = r.tenders[UUID].AwardedBidId
	r.tenders[UUID] = t
	return t, nil
}

func (r *memRepo) AwardTender(_ context.Context, tenderId, bidId string, guard models.AwardGuard) (models.AwardResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result models.AwardResult

	t, ok := r.tenders[tenderId]
	if !ok {
		return result, models.ErrNoTender
	}
	if err := guard.Tender(t); err != nil {
		return result, err
	}
	b, ok := r.bids[bidId]
	if !ok || b.TenderId != t.Id {
		return result, models.ErrNoBid
	}
	if err := guard.Bid(t, b); err != nil {
		return result, err
	}
	if t.Status != models.TenderPublished || len(t.AwardedBidId) > 0 {
		return result, models.ErrConflictRetry
	}

	t.Status = models.TenderAwarded
	t.AwardedBidId = b.Id
	t.Version++
	r.tenders[t.Id] = t
	result.Tender = t

	b.Status = models.BidAccepted
	r.writeBid(b)
	result.Winner = r.bids[b.Id]

	for _, id := range r.bidOrder() {
		sibling := r.bids[id]
		if sibling.TenderId != t.Id || sibling.Id == b.Id || !sibling.Status.Active() {
			continue
		}
		sibling.Status = models.BidRejected
		r.writeBid(sibling)
		result.Rejected = append(result.Rejected, r.bids[id])
	}
	return result, nil
}

func (r *memRepo) CloseExpiredTenders(_ context.Context, cutoff time.Time) ([]models.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var closed []models.Tender
	for _, id := range r.order {
		t := r.tenders[id]
		if t.Status == models.TenderPublished && !t.Deadline.After(cutoff) {
			t.Status = models.TenderClosed
			t.Version++
			r.tenders[id] = t
			closed = append(closed, t)
		}
	}
	return closed, nil
}

func (r *memRepo) AddBid(_ context.Context, bid models.Bid, guard func(models.Tender) error) (models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenders[bid.TenderId]
	if !ok {
		return bid, models.ErrNoTender
	}
	if err := guard(t); err != nil {
		return bid, err
	}
	for _, other := range r.bids {
		if other.TenderId == bid.TenderId && other.VendorId == bid.VendorId && other.Status != models.BidWithdrawn {
			return bid, models.ErrDuplicateBid
		}
	}
	bid.Id = uuid.NewString()
	bid.Version = 0
	bid.Status = models.BidSubmitted
	bid.CreatedAt = time.Now()
	if bid.Documents == nil {
		bid.Documents = []string{}
	}
	r.writeBid(bid)
	return r.bids[bid.Id], nil
}

func (r *memRepo) ModifyBid(_ context.Context, UUID string, fn func(models.Tender, *models.Bid) error) (models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[UUID]
	if !ok {
		return b, models.ErrNoBid
	}
	current := b
	if err := fn(r.tenders[b.TenderId], &b); err != nil {
		return current, err
	}
	if b.Status != models.BidRevised && b.Status != models.BidWithdrawn {
		return current, models.ErrInvalidState
	}
	if !current.Status.Active() {
		return current, models.ErrInvalidState
	}
	r.writeBid(b)
	return r.bids[UUID], nil
}

func (r *memRepo) GetBids(_ context.Context, filter repository.BidFilter) ([]models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []models.Bid{}
	for _, id := range r.bidOrder() {
		b := r.bids[id]
		if len(filter.Id) > 0 && b.Id != filter.Id ||
			len(filter.TenderId) > 0 && b.TenderId != filter.TenderId ||
			len(filter.VendorId) > 0 && b.VendorId != filter.VendorId {
			continue
		}
		result = append(result, b)
	}
	return result, nil
}

func (r *memRepo) GetBidByUUID(_ context.Context, UUID string) (models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[UUID]
	if !ok {
		return b, fmt.Errorf("memRepo.GetBidByUUID: %w", sql.ErrNoRows)
	}
	return b, nil
}

func (r *memRepo) GetBidVersions(_ context.Context, UUID string) ([]models.BidVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.BidVersion{}, r.versions[UUID]...), nil
}

func (r *memRepo) AddComment(_ context.Context, c models.Comment) (models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Id = uuid.NewString()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.comments = append(r.comments, c)
	return c, nil
}

func (r *memRepo) GetComments(_ context.Context, tenderId, authorId string) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []models.Comment{}
	for _, c := range r.comments {
		if c.TenderId == tenderId && (len(authorId) == 0 || c.AuthorId == authorId) {
			result = append(result, c)
		}
	}
	return result, nil
}

func (r *memRepo) AddInvitation(_ context.Context, inv models.TenderInvitation) (models.TenderInvitation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.invitations {
		if existing.TenderId == inv.TenderId && existing.VendorId == inv.VendorId {
			return existing, false, nil
		}
	}
	inv.CreatedAt = time.Now()
	r.invitations = append(r.invitations, inv)
	return inv, true, nil
}

func (r *memRepo) GetInvitations(_ context.Context, tenderId string) ([]models.TenderInvitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []models.TenderInvitation{}
	for _, inv := range r.invitations {
		if inv.TenderId == tenderId {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (r *memRepo) GetNotifications(_ context.Context, recipientId string, unreadOnly bool) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []models.Notification{}
	for _, n := range r.notifications {
		if n.RecipientId == recipientId && (!unreadOnly || n.ReadAt == nil) {
			result = append(result, n)
		}
	}
	return result, nil
}

func (r *memRepo) MarkNotificationRead(_ context.Context, UUID, recipientId string) (models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.notifications {
		if n.Id == UUID && n.RecipientId == recipientId {
			if n.ReadAt == nil {
				now := time.Now()
				r.notifications[i].ReadAt = &now
			}
			return r.notifications[i], nil
		}
	}
	return models.Notification{}, models.ErrNoNotification
}

// AddNotification lets memRepo serve as the in-app notification store.
func (r *memRepo) AddNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.Id = uuid.NewString()
	n.CreatedAt = time.Now()
	r.notifications = append(r.notifications, n)
	return n, nil
}

// writeBid stores b with a bumped version and records its snapshot. Callers hold r.mu.
func (r *memRepo) writeBid(b models.Bid) {
	b.Version++
	b.UpdatedAt = time.Now()
	r.bids[b.Id] = b
	r.versions[b.Id] = append(r.versions[b.Id], b.Snapshot())
}

func (r *memRepo) bidOrder() []string {
	ids := make([]string, 0, len(r.bids))
	for id := range r.bids {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return r.bids[a].CreatedAt.Compare(r.bids[b].CreatedAt)
	})
	return ids
}

func (r *memRepo) bid(id string) models.Bid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bids[id]
}

func (r *memRepo) tender(id string) models.Tender {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tenders[id]
}
