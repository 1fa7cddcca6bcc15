package notify

import (
	"context"
	"errors"
	"io"
	"procurement/internal/config"
	"procurement/internal/models"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type recordingChannel struct {
	name  string
	err   error
	block chan struct{}

	mu   sync.Mutex
	seen []Notice
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Deliver(ctx context.Context, n Notice) error {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	c.seen = append(c.seen, n)
	c.mu.Unlock()
	return c.err
}

func (c *recordingChannel) notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.seen...)
}

func TestDispatcherFanOut(t *testing.T) {
	ok := &recordingChannel{name: "ok"}
	failing := &recordingChannel{name: "failing", err: errors.New("smtp down")}

	d := NewDispatcher(config.NotifyConfig{Workers: 2, QueueSize: 16}, quietLogger(), ok, failing)
	for i := 0; i < 5; i++ {
		d.Notify(context.Background(), Notice{Event: models.EventBidSubmitted, Recipient: "owner", TenderId: "t"})
	}
	d.Close()

	assert.Len(t, ok.notices(), 5, "a failing channel must not stop the others")
	assert.Len(t, failing.notices(), 5)
}

func TestDispatcherIgnoresCallerCancellation(t *testing.T) {
	ch := &recordingChannel{name: "ok"}
	d := NewDispatcher(config.NotifyConfig{Workers: 1, QueueSize: 4}, quietLogger(), ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Notify(ctx, Notice{Event: models.EventBidAccepted, Recipient: "vendor"})
	d.Close()

	require.Len(t, ch.notices(), 1)
	assert.Equal(t, models.EventBidAccepted, ch.notices()[0].Event)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	ch := &recordingChannel{name: "slow", block: make(chan struct{})}
	d := NewDispatcher(config.NotifyConfig{Workers: 1, QueueSize: 1}, quietLogger(), ch)

	// one notice is held by the worker, one waits in the queue, the rest are dropped
	for i := 0; i < 10; i++ {
		d.Notify(context.Background(), Notice{Event: models.EventBidRevised, Recipient: "owner"})
	}
	close(ch.block)
	d.Close()

	got := len(ch.notices())
	assert.GreaterOrEqual(t, got, 1)
	assert.LessOrEqual(t, got, 2)
}

func TestDispatcherClosed(t *testing.T) {
	ch := &recordingChannel{name: "ok"}
	d := NewDispatcher(config.NotifyConfig{Workers: 1, QueueSize: 4}, quietLogger(), ch)
	d.Close()
	d.Close()

	d.Notify(context.Background(), Notice{Event: models.EventTenderClosed, Recipient: "owner"})
	assert.Empty(t, ch.notices())
}

type fakeStore struct {
	mu    sync.Mutex
	saved []models.Notification
}

func (s *fakeStore) AddNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, n)
	return n, nil
}

func TestInApp(t *testing.T) {
	store := &fakeStore{}
	ch := NewInApp(store)

	err := ch.Deliver(context.Background(), Notice{
		Event:     models.EventBidNotSelected,
		Recipient: "vendor",
		TenderId:  "tender",
		BidId:     "bid",
		Payload:   map[string]any{"title": "Roads"},
	})
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.Equal(t, models.Notification{
		RecipientId: "vendor",
		Event:       models.EventBidNotSelected,
		TenderId:    "tender",
		BidId:       "bid",
		Payload:     map[string]any{"title": "Roads"},
	}, store.saved[0])
}

type fakeUsers map[string]models.User

func (u fakeUsers) UserByUUID(_ context.Context, id string) (models.User, bool, error) {
	user, ok := u[id]
	return user, ok, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func TestEmail(t *testing.T) {
	users := fakeUsers{
		"u1": {Id: "u1", Username: "acme", Email: "bids@acme.test"},
		"u2": {Id: "u2", Username: "noemail"},
	}
	mailer := &fakeMailer{}
	ch := NewEmail(users, mailer, 0)

	require.NoError(t, ch.Deliver(context.Background(), Notice{Event: models.EventBidAccepted, Recipient: "u1", TenderId: "t"}))
	require.NoError(t, ch.Deliver(context.Background(), Notice{Event: models.EventBidAccepted, Recipient: "u2", TenderId: "t"}))
	require.NoError(t, ch.Deliver(context.Background(), Notice{Event: models.EventBidAccepted, Recipient: "missing", TenderId: "t"}))

	assert.Equal(t, []string{"bids@acme.test|Your bid was accepted"}, mailer.sent)
}

func TestEmailRateLimitHonoursContext(t *testing.T) {
	users := fakeUsers{"u1": {Id: "u1", Email: "a@b.test"}}
	ch := NewEmail(users, &fakeMailer{}, 0.001)

	// the first message consumes the burst
	require.NoError(t, ch.Deliver(context.Background(), Notice{Event: models.EventBidRevised, Recipient: "u1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ch.Deliver(ctx, Notice{Event: models.EventBidRevised, Recipient: "u1"})
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	subject, body := Render(
		models.User{FirstName: "Ada", LastName: "Lovelace"},
		Notice{Event: models.EventTenderAwarded, TenderId: "t1", BidId: "b1", Payload: map[string]any{"title": "Bridge"}},
	)
	assert.Equal(t, "Tender awarded", subject)
	assert.Contains(t, body, "Hello Ada Lovelace")
	assert.Contains(t, body, "Bid: b1")
	assert.Contains(t, body, "Title: Bridge")

	subject, body = Render(models.User{Username: "acme"}, Notice{Event: "custom"})
	assert.Equal(t, "custom", subject)
	assert.Contains(t, body, "Hello acme")
}

func TestNewMailer(t *testing.T) {
	assert.IsType(t, &LogMailer{}, NewMailer(config.SMTPConfig{}, quietLogger()))
	assert.IsType(t, &SMTPMailer{}, NewMailer(config.SMTPConfig{Host: "smtp.test", Port: "25"}, quietLogger()))
	assert.NoError(t, NewMailer(config.SMTPConfig{}, quietLogger()).Send(context.Background(), "a@b.test", "s", "b"))
}
