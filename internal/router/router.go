package router

import (
	"context"
	"net/http"
	"procurement/internal/controller"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIdHeader = "X-Request-Id"

func NewRouter(c *controller.Controller, log logrus.FieldLogger, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ping", c.Ping)

	mux.HandleFunc("GET /api/tenders", c.GetTenders)
	mux.HandleFunc("POST /api/tenders/new", c.NewTender)
	mux.HandleFunc("GET /api/tenders/my", c.MyTenders)
	mux.HandleFunc("GET /api/tenders/{tenderId}", c.GetTender)
	mux.HandleFunc("PUT /api/tenders/{tenderId}/publish", c.PublishTender)
	mux.HandleFunc("POST /api/tenders/{tenderId}/award", c.AwardTender)
	mux.HandleFunc("GET /api/tenders/{tenderId}/bids", c.TenderBids)
	mux.HandleFunc("POST /api/tenders/{tenderId}/comments", c.AddComment)
	mux.HandleFunc("GET /api/tenders/{tenderId}/comments", c.TenderComments)
	mux.HandleFunc("POST /api/tenders/{tenderId}/invitations", c.InviteVendor)
	mux.HandleFunc("GET /api/tenders/{tenderId}/invitations", c.TenderInvitations)

	mux.HandleFunc("POST /api/bids", c.NewBid)
	mux.HandleFunc("GET /api/bids/my", c.MyBids)
	mux.HandleFunc("PUT /api/bids/{bidId}", c.EditBid)
	mux.HandleFunc("DELETE /api/bids/{bidId}", c.WithdrawBid)
	mux.HandleFunc("GET /api/bids/{bidId}/history", c.BidHistory)

	mux.HandleFunc("GET /api/notifications", c.Notifications)
	mux.HandleFunc("PUT /api/notifications/{notificationId}/read", c.MarkNotificationRead)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("page not found"))
	})

	handler := withTimeout(mux, timeout)
	handler = withLogging(handler, log)

	cors := http.NewServeMux()
	cors.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIdHeader)
		w.Header().Set("Accept", "*/*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
		} else {
			handler.ServeHTTP(w, r)
		}
	})

	return cors
}

// withTimeout bounds the request context, which every repository call inherits.
func withTimeout(next http.Handler, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// withLogging assigns a request id (keeping one supplied by the client) and logs every request once it completes.
func withLogging(next http.Handler, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get(requestIdHeader)
		if _, err := uuid.Parse(requestId); err != nil {
			requestId = uuid.NewString()
		}
		w.Header().Set(requestIdHeader, requestId)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		entry := log.WithFields(logrus.Fields{
			"request_id": requestId,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     sw.status,
			"duration":   time.Since(start).Milliseconds(),
		})
		if sw.status >= http.StatusInternalServerError {
			entry.Warn("request failed")
		} else {
			entry.Debug("request processed")
		}
	})
}
