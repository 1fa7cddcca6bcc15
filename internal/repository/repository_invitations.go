package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"procurement/internal/models"
)

// AddInvitation records that vendorId was invited to the tender. Re-inviting is a no-op and
// reports created == false together with the stored invitation.
func (repo *Repository) AddInvitation(ctx context.Context, inv models.TenderInvitation) (models.TenderInvitation, bool, error) {
	query := `
	INSERT INTO tender_invitations
		(tender_id, vendor_id, invited_by)
	VALUES
		($1, $2, $3)
	ON CONFLICT (tender_id, vendor_id) DO NOTHING
	RETURNING
		tender_id, vendor_id, invited_by, created_at
	`

	row := repo.db.QueryRowContext(ctx, query, inv.TenderId, inv.VendorId, inv.InvitedBy)
	err := row.Scan(&inv.TenderId, &inv.VendorId, &inv.InvitedBy, &inv.CreatedAt)
	if err == nil {
		return inv, true, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return inv, false, fmt.Errorf("repository.Repository.AddInvitation: %w", err)
	}

	existing := `
	SELECT
		tender_id, vendor_id, invited_by, created_at
	FROM tender_invitations
	WHERE tender_id = $1 AND vendor_id = $2
	`

	row = repo.db.QueryRowContext(ctx, existing, inv.TenderId, inv.VendorId)
	err = row.Scan(&inv.TenderId, &inv.VendorId, &inv.InvitedBy, &inv.CreatedAt)
	if err != nil {
		return inv, false, fmt.Errorf("repository.Repository.AddInvitation: %w", err)
	}

	return inv, false, nil
}

func (repo *Repository) GetInvitations(ctx context.Context, tenderId string) ([]models.TenderInvitation, error) {
	query := `
	SELECT
		tender_id,
		vendor_id,
		invited_by,
		created_at
	FROM tender_invitations
	WHERE tender_id = $1
	ORDER BY created_at, vendor_id
	`

	rows, err := repo.db.QueryContext(ctx, query, tenderId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetInvitations: %w", err)
	}
	defer rows.Close()

	result := []models.TenderInvitation{}
	var inv models.TenderInvitation
	for rows.Next() {
		err = rows.Scan(&inv.TenderId, &inv.VendorId, &inv.InvitedBy, &inv.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetInvitations: rows scan failed: %w", err)
		}
		result = append(result, inv)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Repository.GetInvitations: %w", err)
	}

	return result, nil
}
