package repository

import (
	"context"
	"fmt"
	"procurement/internal/models"
)

func (repo *Repository) AddComment(ctx context.Context, comment models.Comment) (models.Comment, error) {
	query := `
	INSERT INTO comments (tender_id, author_id, text)
	VALUES
		($1, $2, $3)
	RETURNING
		id, tender_id, author_id, text, created_at, updated_at
	`

	row := repo.db.QueryRowContext(ctx, query, comment.TenderId, comment.AuthorId, comment.Text)
	err := row.Scan(&comment.Id, &comment.TenderId, &comment.AuthorId, &comment.Text, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return comment, fmt.Errorf("repository.Repository.AddComment: %w", err)
	}
	return comment, nil
}

// GetComments returns the comments of a tender, oldest first. An empty authorId matches every author.
func (repo *Repository) GetComments(ctx context.Context, tenderId, authorId string) ([]models.Comment, error) {
	query := `
	SELECT
		id,
		tender_id,
		author_id,
		text,
		created_at,
		updated_at
	FROM comments
	$conditions$
	ORDER BY created_at, id
	`

	conditions := make([]string, 0, 2)
	params := make([]interface{}, 0, 2)

	if len(tenderId) > 0 {
		conditions = append(conditions, "tender_id = $$")
		params = append(params, tenderId)
	}

	if len(authorId) > 0 {
		conditions = append(conditions, "author_id = $$")
		params = append(params, authorId)
	}

	query = buildConditions(query, conditions, 1)

	rows, err := repo.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetComments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	var comment models.Comment
	for rows.Next() {
		err = rows.Scan(&comment.Id, &comment.TenderId, &comment.AuthorId, &comment.Text, &comment.CreatedAt, &comment.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetComments: rows scan failed: %w", err)
		}
		comments = append(comments, comment)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Repository.GetComments: %w", err)
	}

	return comments, nil
}
