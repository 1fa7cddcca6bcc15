package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"procurement/internal/config"
	"procurement/internal/models"

	postgres "procurement/internal/repository/db"

	"github.com/lib/pq"
)

type Repository struct {
	db  *sql.DB
	cfg *config.PostgresConfig
}

func NewRepository(db *sql.DB, cfg *config.PostgresConfig) (*Repository, error) {
	var err error

	repo := &Repository{
		db:  db,
		cfg: cfg,
	}

	if repo.cfg == nil {
		repo.cfg, err = config.NewPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not load postgres config: %w", err)
		}
	}

	if repo.db == nil {
		repo.db, err = postgres.NewPostgresDB(repo.cfg)
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not open postgres db: %w", err)
		}
	}

	if repo.cfg.AutoMigrateUp == "true" {
		err = repo.MigrateUp()
		if err != nil {
			return nil, err
		}
	}

	return repo, nil
}

func (repo *Repository) MigrateUp() error {
	err := postgres.MigrateUp(repo.db, repo.cfg.MigrationsURL)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateUp: %w", err)
	}
	return nil
}

func (repo *Repository) MigrateDown() error {
	err := postgres.MigrateDown(repo.db, repo.cfg.MigrationsURL)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateDown: %w", err)
	}
	return nil
}

func (repo *Repository) Ping(ctx context.Context) error {
	if err := repo.db.PingContext(ctx); err != nil {
		return fmt.Errorf("repository.Repository.Ping: %w", err)
	}
	return nil
}

//// Users

const userColumns = `id, username, first_name, last_name, email, role, created_at, updated_at`

func scanUser(row scanner) (models.User, error) {
	var user models.User
	err := row.Scan(&user.Id, &user.Username, &user.FirstName, &user.LastName, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (repo *Repository) AddUser(ctx context.Context, user models.User) (models.User, error) {
	query := `
	INSERT INTO users
		(username, first_name, last_name, email, role)
	VALUES
		($1, $2, $3, $4, $5)
	RETURNING
		` + userColumns

	row := repo.db.QueryRowContext(ctx, query, user.Username, user.FirstName, user.LastName, user.Email, user.Role)
	result, err := scanUser(row)
	if err != nil {
		return user, fmt.Errorf("repository.Repository.AddUser: %w", err)
	}
	return result, nil
}

func (repo *Repository) UserByUsername(ctx context.Context, username string) (models.User, bool, error) {
	query := `
	SELECT
		` + userColumns + `
	FROM users
	WHERE username = $1
	LIMIT 1
	`
	user, err := scanUser(repo.db.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return user, false, nil
	} else if err != nil {
		return user, false, fmt.Errorf("repository.Repository.UserByUsername: %w", err)
	}

	return user, true, nil
}

func (repo *Repository) UserByUUID(ctx context.Context, UUID string) (models.User, bool, error) {
	query := `
	SELECT
		` + userColumns + `
	FROM users
	WHERE id = $1
	LIMIT 1
	`
	user, err := scanUser(repo.db.QueryRowContext(ctx, query, UUID))
	if errors.Is(err, sql.ErrNoRows) {
		return user, false, nil
	} else if err != nil {
		return user, false, fmt.Errorf("repository.Repository.UserByUUID: %w", err)
	}

	return user, true, nil
}

func (repo *Repository) Close() error {
	var migErr error
	if repo.cfg.AutoMigrateDown == "true" {
		migErr = repo.MigrateDown()
	}

	err := repo.db.Close()
	return errors.Join(migErr, err)
}

//// Service

type scanner interface {
	Scan(dest ...any) error
}

type lockMode string

const (
	noLock        lockMode = ""
	lockForShare  lockMode = "FOR SHARE"
	lockForUpdate lockMode = "FOR UPDATE"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (repo *Repository) beginTx(ctx context.Context) (*sql.Tx, error) {
	return repo.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func wrapRollbackErr(tx *sql.Tx, err error) error {
	rollerr := tx.Rollback()
	if rollerr == nil {
		return err
	}
	return fmt.Errorf("failed to rollback transaction after previous error: %w, %w", rollerr, err)
}

// classifyErr maps lock conflicts to models.ErrConflictRetry so callers can retry the whole operation.
func classifyErr(err error) error {
	if postgres.IsRetryable(err) {
		return fmt.Errorf("%w: %w", models.ErrConflictRetry, err)
	}
	return err
}

// buildConditions replaces $$ placeholders with positional parameters starting at first
// and substitutes the result for $conditions$ in query.
func buildConditions(query string, conditions []string, first int) string {
	condStr := ""
	if len(conditions) > 0 {
		for i := 0; i < len(conditions); i++ {
			conditions[i] = strings.Replace(conditions[i], "$$", "$"+strconv.Itoa(i+first), -1)
		}
		condStr = "WHERE " + strings.Join(conditions, " AND ")
	}
	return strings.Replace(query, "$conditions$", condStr, -1)
}

func sliceToSQLList[T ~string](t []T) string {
	parts := make([]string, 0, len(t))
	for _, v := range t {
		parts = append(parts, string(v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func documentsArg(docs []string) any {
	if docs == nil {
		docs = []string{}
	}
	return pq.Array(docs)
}

//// Test utils

func (repo *Repository) TestGetDB() *sql.DB {
	return repo.db
}
