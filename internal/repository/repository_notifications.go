package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"procurement/internal/models"
)

const notificationColumns = `id, recipient_id, event, tender_id, bid_id, payload, read_at, created_at`

func scanNotification(row scanner) (models.Notification, error) {
	var n models.Notification
	var bidId sql.NullString
	var readAt sql.NullTime
	var payload []byte

	err := row.Scan(&n.Id, &n.RecipientId, &n.Event, &n.TenderId, &bidId, &payload, &readAt, &n.CreatedAt)
	if err != nil {
		return n, err
	}

	n.BidId = bidId.String
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	if len(payload) > 0 {
		err = json.Unmarshal(payload, &n.Payload)
	}
	return n, err
}

func (repo *Repository) AddNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	query := `
	INSERT INTO notifications
		(recipient_id, event, tender_id, bid_id, payload)
	VALUES
		($1, $2, $3, $4, $5)
	RETURNING
		` + notificationColumns

	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return n, fmt.Errorf("repository.Repository.AddNotification: payload: %w", err)
	}
	if n.Payload == nil {
		payload = []byte("{}")
	}

	var bidId sql.NullString
	if len(n.BidId) > 0 {
		bidId = sql.NullString{String: n.BidId, Valid: true}
	}

	result, err := scanNotification(repo.db.QueryRowContext(ctx, query, n.RecipientId, n.Event, n.TenderId, bidId, string(payload)))
	if err != nil {
		return n, fmt.Errorf("repository.Repository.AddNotification: %w", err)
	}
	return result, nil
}

// GetNotifications returns the recipient's notifications, newest first.
func (repo *Repository) GetNotifications(ctx context.Context, recipientId string, unreadOnly bool) ([]models.Notification, error) {
	query := `
	SELECT
		` + notificationColumns + `
	FROM notifications
	WHERE recipient_id = $1 AND (NOT $2 OR read_at IS NULL)
	ORDER BY created_at DESC, id
	`

	rows, err := repo.db.QueryContext(ctx, query, recipientId, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetNotifications: %w", err)
	}
	defer rows.Close()

	result := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetNotifications: rows scan failed: %w", err)
		}
		result = append(result, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Repository.GetNotifications: %w", err)
	}

	return result, nil
}

// MarkNotificationRead sets read_at once. Notifications of other recipients are reported as missing.
func (repo *Repository) MarkNotificationRead(ctx context.Context, UUID, recipientId string) (models.Notification, error) {
	query := `
	UPDATE notifications
	SET read_at = COALESCE(read_at, CURRENT_TIMESTAMP)
	WHERE id = $1 AND recipient_id = $2
	RETURNING
		` + notificationColumns

	n, err := scanNotification(repo.db.QueryRowContext(ctx, query, UUID, recipientId))
	if errors.Is(err, sql.ErrNoRows) {
		return n, fmt.Errorf("repository.Repository.MarkNotificationRead: %w", models.ErrNoNotification)
	} else if err != nil {
		return n, fmt.Errorf("repository.Repository.MarkNotificationRead: %w", err)
	}
	return n, nil
}
