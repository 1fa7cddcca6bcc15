package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"procurement/internal/models"
	"time"
)

const tenderColumns = `id, version, title, description, category, base_price, deadline, duration_days, status, created_by, awarded_bid_id, created_at, updated_at`

func scanTender(row scanner) (models.Tender, error) {
	var tender models.Tender
	var awarded sql.NullString
	err := row.Scan(&tender.Id, &tender.Version, &tender.Title, &tender.Description, &tender.Category, &tender.BasePrice, &tender.Deadline,
		&tender.DurationDays, &tender.Status, &tender.CreatedBy, &awarded, &tender.CreatedAt, &tender.UpdatedAt)
	tender.AwardedBidId = awarded.String
	return tender, err
}

// TenderFilter narrows GetTenders. Empty fields are ignored.
type TenderFilter struct {
	Id        string
	CreatedBy string
	Statuses  []models.TenderStatus
}

func (repo *Repository) prepTendersQuery(filter TenderFilter) (query string, queryParams []interface{}) {
	query = `
	SELECT
		` + tenderColumns + `
	FROM tenders
	$conditions$
	ORDER BY created_at DESC, id
	`

	queryParams = make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	if len(filter.Id) > 0 {
		conditions = append(conditions, "id = $$")
		queryParams = append(queryParams, filter.Id)
	}

	if len(filter.CreatedBy) > 0 {
		conditions = append(conditions, "created_by = $$")
		queryParams = append(queryParams, filter.CreatedBy)
	}

	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status = any($$::tender_status[])")
		queryParams = append(queryParams, sliceToSQLList(filter.Statuses))
	}

	query = buildConditions(query, conditions, 1)
	return query, queryParams
}

func (repo *Repository) GetTenders(ctx context.Context, filter TenderFilter) ([]models.Tender, error) {
	query, queryParams := repo.prepTendersQuery(filter)

	rows, err := repo.db.QueryContext(ctx, query, queryParams...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetTenders: %w", err)
	}
	defer rows.Close()

	result := []models.Tender{}
	for rows.Next() {
		tender, err := scanTender(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetTenders: row scan failed: %w", err)
		}
		result = append(result, tender)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Repository.GetTenders: %w", err)
	}

	return result, nil
}

// GetTenderByUUID returns a wrapped sql.ErrNoRows when the tender does not exist.
func (repo *Repository) GetTenderByUUID(ctx context.Context, UUID string) (models.Tender, error) {
	tender, err := repo.selectTender(ctx, repo.db, UUID, noLock)
	if err != nil {
		return tender, fmt.Errorf("repository.Repository.GetTenderByUUID: %w", err)
	}
	return tender, nil
}

func (repo *Repository) selectTender(ctx context.Context, q querier, UUID string, lock lockMode) (models.Tender, error) {
	query := `
	SELECT
		` + tenderColumns + `
	FROM tenders
	WHERE id = $1
	` + string(lock)

	return scanTender(q.QueryRowContext(ctx, query, UUID))
}

func (repo *Repository) AddTender(ctx context.Context, t models.Tender) (models.Tender, error) {
	query := `
	INSERT INTO tenders
		(version, title, description, category, base_price, deadline, duration_days, status, created_by)
	VALUES
		(1, $1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING
		` + tenderColumns

	row := repo.db.QueryRowContext(ctx, query, t.Title, t.Description, t.Category, t.BasePrice, t.Deadline, t.DurationDays, models.TenderDraft, t.CreatedBy)
	result, err := scanTender(row)
	if err != nil {
		return t, fmt.Errorf("repository.Repository.AddTender: %w", err)
	}

	return result, nil
}

// ModifyTender locks the tender row, lets fn validate and change it, and writes it back.
// fn must not move the tender into the awarded state: only AwardTender writes it.
func (repo *Repository) ModifyTender(ctx context.Context, UUID string, fn func(*models.Tender) error) (models.Tender, error) {
	tx, err := repo.beginTx(ctx)
	if err != nil {
		return models.Tender{}, fmt.Errorf("repository.Repository.ModifyTender: failed to start transaction: %w", err)
	}

	tender, err := repo.selectTender(ctx, tx, UUID, lockForUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return tender, fmt.Errorf("repository.Repository.ModifyTender: %w", wrapRollbackErr(tx, models.ErrNoTender))
	} else if err != nil {
		return tender, fmt.Errorf("repository.Repository.ModifyTender: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	previous := tender.Status
	err = fn(&tender)
	if err != nil {
		return tender, fmt.Errorf("repository.Repository.ModifyTender: %w", wrapRollbackErr(tx, err))
	}
	if (tender.Status != previous && !previous.CanTransitionTo(tender.Status)) || tender.Status == models.TenderAwarded {
		return tender, fmt.Errorf("repository.Repository.ModifyTender: %s -> %s: %w", previous, tender.Status, wrapRollbackErr(tx, models.ErrInvalidState))
	}

	query := `
	UPDATE tenders
	SET (version, title, description, category, base_price, deadline, duration_days, status, updated_at) =
		(version + 1, $1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
	WHERE id = $8 AND status = $9
	RETURNING
		` + tenderColumns

	row := tx.QueryRowContext(ctx, query, tender.Title, tender.Description, tender.Category, tender.BasePrice, tender.Deadline, tender.DurationDays,
		tender.Status, tender.Id, previous)
	updated, err := scanTender(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tender, fmt.Errorf("repository.Repository.ModifyTender: %w", wrapRollbackErr(tx, models.ErrConflictRetry))
	} else if err != nil {
		return tender, fmt.Errorf("repository.Repository.ModifyTender: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	err = tx.Commit()
	if err != nil {
		return tender, fmt.Errorf("repository.Repository.ModifyTender: failed to commit transaction: %w", classifyErr(err))
	}

	return updated, nil
}

// AwardTender atomically marks the tender awarded, accepts the winning bid and rejects every other active bid.
// The tender row is locked before the guard runs, so concurrent awards of one tender are serialized and the
// loser observes the committed award through guard.Tender.
func (repo *Repository) AwardTender(ctx context.Context, tenderId, bidId string, guard models.AwardGuard) (models.AwardResult, error) {
	var result models.AwardResult

	tx, err := repo.beginTx(ctx)
	if err != nil {
		return result, fmt.Errorf("repository.Repository.AwardTender: failed to start transaction: %w", err)
	}

	tender, err := repo.selectTender(ctx, tx, tenderId, lockForUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return result, fmt.Errorf("repository.Repository.AwardTender: %w", wrapRollbackErr(tx, models.ErrNoTender))
	} else if err != nil {
		return result, fmt.Errorf("repository.Repository.AwardTender: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	if err = guard.Tender(tender); err != nil {
		return result, fmt.Errorf("repository.Repository.AwardTender: %w", wrapRollbackErr(tx, err))
	}

	bid, err := repo.selectBid(ctx, tx, bidId, lockForUpdate)
	if errors.Is(err, sql.ErrNoRows) || err == nil && bid.TenderId != tender.Id {
		return result, fmt.Errorf("repository.Repository.AwardTender: %w", wrapRollbackErr(tx, models.ErrNoBid))
	} else if err != nil {
		return result, fmt.Errorf("repository.Repository.AwardTender: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	if err = guard.Bid(tender, bid); err != nil {
		return result, fmt.Errorf("repository.Repository.AwardTender: %w", wrapRollbackErr(tx, err))
	}

	// 1. tender
	tenderQuery := `
	UPDATE tenders
	SET (version, status, awarded_bid_id, updated_at) = (version + 1, 'awarded', $2, CURRENT_TIMESTAMP)
	WHERE id = $1 AND status = 'published' AND awarded_bid_id IS NULL
	RETURNING
		` + tenderColumns

	result.Tender, err = scanTender(tx.QueryRowContext(ctx, tenderQuery, tender.Id, bid.Id))
	if errors.Is(err, sql.ErrNoRows) {
		return result, fmt.Errorf("repository.Repository.AwardTender: tender update: %w", wrapRollbackErr(tx, models.ErrConflictRetry))
	} else if err != nil {
		return result, fmt.Errorf("repository.Repository.AwardTender: tender update: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	// 2. winner
	winnerQuery := `
	UPDATE bids
	SET (version, status, updated_at) = (version + 1, 'accepted', CURRENT_TIMESTAMP)
	WHERE id = $1 AND status IN ('submitted', 'revised')
	RETURNING
		` + bidColumns

	result.Winner, err = scanBid(tx.QueryRowContext(ctx, winnerQuery, bid.Id))
	if errors.Is(err, sql.ErrNoRows) {
		return result, fmt.Errorf("repository.Repository.AwardTender: winner update: %w", wrapRollbackErr(tx, models.ErrConflictRetry))
	} else if err != nil {
		return result, fmt.Errorf("repository.Repository.AwardTender: winner update: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	// 3. siblings; withdrawn bids stay untouched
	siblingsQuery := `
	UPDATE bids
	SET (version, status, updated_at) = (version + 1, 'rejected', CURRENT_TIMESTAMP)
	WHERE tender_id = $1 AND id <> $2 AND status IN ('submitted', 'revised')
	RETURNING
		` + bidColumns

	result.Rejected, err = repo.queryBids(ctx, tx, siblingsQuery, tender.Id, bid.Id)
	if err != nil {
		return result, fmt.Errorf("repository.Repository.AwardTender: siblings update: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	for _, b := range append([]models.Bid{result.Winner}, result.Rejected...) {
		err = repo.AddBidVersion(ctx, b.Snapshot(), tx)
		if err != nil {
			return result, fmt.Errorf("repository.Repository.AwardTender: %w", wrapRollbackErr(tx, classifyErr(err)))
		}
	}

	err = tx.Commit()
	if err != nil {
		return models.AwardResult{}, fmt.Errorf("repository.Repository.AwardTender: failed to commit transaction: %w", classifyErr(err))
	}

	return result, nil
}

// CloseExpiredTenders closes published tenders whose deadline is at or before cutoff.
// The status predicate is re-evaluated after any concurrent award commits, so awarded tenders are skipped.
func (repo *Repository) CloseExpiredTenders(ctx context.Context, cutoff time.Time) ([]models.Tender, error) {
	query := `
	UPDATE tenders
	SET (version, status, updated_at) = (version + 1, 'closed', CURRENT_TIMESTAMP)
	WHERE status = 'published' AND deadline <= $1
	RETURNING
		` + tenderColumns

	rows, err := repo.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.CloseExpiredTenders: %w", classifyErr(err))
	}
	defer rows.Close()

	var closed []models.Tender
	for rows.Next() {
		tender, err := scanTender(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.CloseExpiredTenders: row scan failed: %w", err)
		}
		closed = append(closed, tender)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Repository.CloseExpiredTenders: %w", err)
	}

	return closed, nil
}

func (repo *Repository) DeleteTender(ctx context.Context, tenderId string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM tenders WHERE id = $1", tenderId)
	if err != nil {
		return fmt.Errorf("repository.Repository.DeleteTender: %w", err)
	}
	return nil
}
