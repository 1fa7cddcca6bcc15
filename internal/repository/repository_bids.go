package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"procurement/internal/models"

	postgres "procurement/internal/repository/db"

	"github.com/lib/pq"
)

const bidColumns = `id, version, tender_id, vendor_id, amount, currency, notes, documents, status, withdraw_reason, created_at, updated_at`

const activeBidConstraint = "bids_one_active_per_vendor"

func scanBid(row scanner) (models.Bid, error) {
	var bid models.Bid
	err := row.Scan(&bid.Id, &bid.Version, &bid.TenderId, &bid.VendorId, &bid.Amount, &bid.Currency, &bid.Notes,
		pq.Array(&bid.Documents), &bid.Status, &bid.WithdrawReason, &bid.CreatedAt, &bid.UpdatedAt)
	if bid.Documents == nil {
		bid.Documents = []string{}
	}
	return bid, err
}

// AddBid inserts a submitted bid. The tender row is share-locked while guard runs so that
// the tender cannot be awarded or closed between the check and the insert.
func (repo *Repository) AddBid(ctx context.Context, bid models.Bid, guard func(models.Tender) error) (models.Bid, error) {
	tx, err := repo.beginTx(ctx)
	if err != nil {
		return bid, fmt.Errorf("repository.Repository.AddBid: failed to start transaction: %w", err)
	}

	tender, err := repo.selectTender(ctx, tx, bid.TenderId, lockForShare)
	if errors.Is(err, sql.ErrNoRows) {
		return bid, fmt.Errorf("repository.Repository.AddBid: %w", wrapRollbackErr(tx, models.ErrNoTender))
	} else if err != nil {
		return bid, fmt.Errorf("repository.Repository.AddBid: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	if err = guard(tender); err != nil {
		return bid, fmt.Errorf("repository.Repository.AddBid: %w", wrapRollbackErr(tx, err))
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bids WHERE tender_id = $1 AND vendor_id = $2 AND status <> 'withdrawn')`,
		bid.TenderId, bid.VendorId).Scan(&exists)
	if err != nil {
		return bid, fmt.Errorf("repository.Repository.AddBid: %w", wrapRollbackErr(tx, classifyErr(err)))
	}
	if exists {
		return bid, fmt.Errorf("repository.Repository.AddBid: %w", wrapRollbackErr(tx, models.ErrDuplicateBid))
	}

	currency := bid.Currency
	if len(currency) == 0 {
		currency = models.DefaultCurrency
	}

	query := `
	INSERT INTO bids
		(version, tender_id, vendor_id, amount, currency, notes, documents, status)
	VALUES
		(1, $1, $2, $3, $4, $5, $6, 'submitted')
	RETURNING
		` + bidColumns

	row := tx.QueryRowContext(ctx, query, bid.TenderId, bid.VendorId, bid.Amount, currency, bid.Notes, documentsArg(bid.Documents))
	result, err := scanBid(row)
	if postgres.IsUniqueViolation(err, activeBidConstraint) {
		// a concurrent submission by the same vendor won the race
		return bid, fmt.Errorf("repository.Repository.AddBid: %w", wrapRollbackErr(tx, models.ErrDuplicateBid))
	} else if err != nil {
		return bid, fmt.Errorf("repository.Repository.AddBid: scan failed: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	err = repo.AddBidVersion(ctx, result.Snapshot(), tx)
	if err != nil {
		return bid, fmt.Errorf("repository.Repository.AddBid: %w", wrapRollbackErr(tx, err))
	}

	err = tx.Commit()
	if err != nil {
		return bid, fmt.Errorf("repository.Repository.AddBid: failed to commit transaction: %w", classifyErr(err))
	}

	return result, nil
}

// ModifyBid locks the owning tender (shared) and then the bid, lets fn validate and change the bid
// and writes it back with a new version. fn may only revise or withdraw an active bid.
func (repo *Repository) ModifyBid(ctx context.Context, UUID string, fn func(models.Tender, *models.Bid) error) (models.Bid, error) {
	tx, err := repo.beginTx(ctx)
	if err != nil {
		return models.Bid{}, fmt.Errorf("repository.Repository.ModifyBid: failed to start transaction: %w", err)
	}

	// the unlocked read only locates the tender; tender_id of a bid never changes
	current, err := repo.selectBid(ctx, tx, UUID, noLock)
	if errors.Is(err, sql.ErrNoRows) {
		return current, fmt.Errorf("repository.Repository.ModifyBid: %w", wrapRollbackErr(tx, models.ErrNoBid))
	} else if err != nil {
		return current, fmt.Errorf("repository.Repository.ModifyBid: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	tender, err := repo.selectTender(ctx, tx, current.TenderId, lockForShare)
	if errors.Is(err, sql.ErrNoRows) {
		return current, fmt.Errorf("repository.Repository.ModifyBid: %w", wrapRollbackErr(tx, models.ErrNoTender))
	} else if err != nil {
		return current, fmt.Errorf("repository.Repository.ModifyBid: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	bid, err := repo.selectBid(ctx, tx, UUID, lockForUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return current, fmt.Errorf("repository.Repository.ModifyBid: %w", wrapRollbackErr(tx, models.ErrNoBid))
	} else if err != nil {
		return current, fmt.Errorf("repository.Repository.ModifyBid: %w", wrapRollbackErr(tx, classifyErr(err)))
	}
	current = bid

	err = fn(tender, &bid)
	if err != nil {
		return current, fmt.Errorf("repository.Repository.ModifyBid: %w", wrapRollbackErr(tx, err))
	}
	if bid.Status != models.BidRevised && bid.Status != models.BidWithdrawn {
		return current, fmt.Errorf("repository.Repository.ModifyBid: status %s: %w", bid.Status, wrapRollbackErr(tx, models.ErrInvalidState))
	}

	query := `
	UPDATE bids
	SET (version, amount, notes, documents, status, withdraw_reason, updated_at) =
		(version + 1, $1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
	WHERE id = $6 AND status IN ('submitted', 'revised')
	RETURNING
		` + bidColumns

	row := tx.QueryRowContext(ctx, query, bid.Amount, bid.Notes, documentsArg(bid.Documents), bid.Status, bid.WithdrawReason, bid.Id)
	updated, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return current, fmt.Errorf("repository.Repository.ModifyBid: %w", wrapRollbackErr(tx, models.ErrInvalidState))
	} else if err != nil {
		return current, fmt.Errorf("repository.Repository.ModifyBid: %w", wrapRollbackErr(tx, classifyErr(err)))
	}

	err = repo.AddBidVersion(ctx, updated.Snapshot(), tx)
	if err != nil {
		return current, fmt.Errorf("repository.Repository.ModifyBid: %w", wrapRollbackErr(tx, err))
	}

	err = tx.Commit()
	if err != nil {
		return current, fmt.Errorf("repository.Repository.ModifyBid: failed to commit transaction: %w", classifyErr(err))
	}

	return updated, nil
}

// BidFilter narrows GetBids. Empty fields are ignored.
type BidFilter struct {
	Id       string
	TenderId string
	VendorId string
}

func (repo *Repository) prepBidsQuery(filter BidFilter) (query string, queryParams []interface{}) {
	query = `
	SELECT
		` + bidColumns + `
	FROM bids
	$conditions$
	ORDER BY created_at, id
	`

	queryParams = make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	if len(filter.Id) > 0 {
		queryParams = append(queryParams, filter.Id)
		conditions = append(conditions, "id = $$")
	}
	if len(filter.TenderId) > 0 {
		queryParams = append(queryParams, filter.TenderId)
		conditions = append(conditions, "tender_id = $$")
	}
	if len(filter.VendorId) > 0 {
		queryParams = append(queryParams, filter.VendorId)
		conditions = append(conditions, "vendor_id = $$")
	}

	query = buildConditions(query, conditions, 1)
	return query, queryParams
}

func (repo *Repository) GetBids(ctx context.Context, filter BidFilter) ([]models.Bid, error) {
	query, params := repo.prepBidsQuery(filter)

	result, err := repo.queryBids(ctx, repo.db, query, params...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetBids: %w", err)
	}
	return result, nil
}

// GetBidByUUID returns a wrapped sql.ErrNoRows when the bid does not exist.
func (repo *Repository) GetBidByUUID(ctx context.Context, UUID string) (models.Bid, error) {
	bid, err := repo.selectBid(ctx, repo.db, UUID, noLock)
	if err != nil {
		return bid, fmt.Errorf("repository.Repository.GetBidByUUID: %w", err)
	}
	return bid, nil
}

func (repo *Repository) selectBid(ctx context.Context, q querier, UUID string, lock lockMode) (models.Bid, error) {
	query := `
	SELECT
		` + bidColumns + `
	FROM bids
	WHERE id = $1
	` + string(lock)

	return scanBid(q.QueryRowContext(ctx, query, UUID))
}

func (repo *Repository) queryBids(ctx context.Context, q querier, query string, args ...any) ([]models.Bid, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Bid{}
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("rows scan error: %w", err)
		}
		result = append(result, bid)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

//// Versions

func (repo *Repository) AddBidVersion(ctx context.Context, v models.BidVersion, q querier) error {
	query := `
	INSERT INTO bids_versions (id, version, amount, currency, notes, documents, status, created_at)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if q == nil {
		q = repo.db
	}

	_, err := q.ExecContext(ctx, query, v.BidId, v.Version, v.Amount, v.Currency, v.Notes, documentsArg(v.Documents), v.Status, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository.Repository.AddBidVersion: %w", err)
	}

	return nil
}

// GetBidVersions returns every stored snapshot of the bid, oldest first.
func (repo *Repository) GetBidVersions(ctx context.Context, UUID string) ([]models.BidVersion, error) {
	query := `
	SELECT id, version, amount, currency, notes, documents, status, created_at
	FROM bids_versions
	WHERE id = $1
	ORDER BY version
	`

	rows, err := repo.db.QueryContext(ctx, query, UUID)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetBidVersions: %w", err)
	}
	defer rows.Close()

	result := []models.BidVersion{}
	for rows.Next() {
		var v models.BidVersion
		err = rows.Scan(&v.BidId, &v.Version, &v.Amount, &v.Currency, &v.Notes, pq.Array(&v.Documents), &v.Status, &v.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetBidVersions: rows scan error: %w", err)
		}
		if v.Documents == nil {
			v.Documents = []string{}
		}
		result = append(result, v)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetBidVersions: %w", rows.Err())
	}

	return result, nil
}
