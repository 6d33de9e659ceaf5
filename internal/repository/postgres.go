package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migration source
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"calculations-api/internal/models"
)

// uniqueViolation is the postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

type postgresStore struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewPostgresStore connects to a postgres database and applies the
// migrations under migrations/.
func NewPostgresStore(dsn string, logger *zap.Logger) (Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("connected to postgres database")
	return &postgresStore{db: db, log: logger}, nil
}

func migrateDB(db *sqlx.DB) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "calculations", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *postgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `INSERT INTO users (id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *postgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at
	          FROM users WHERE id = $1`
	if err := s.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *postgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at
	          FROM users WHERE username = $1`
	if err := s.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

func (s *postgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at
	          FROM users WHERE email = $1`
	if err := s.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (s *postgresStore) CreateCalculation(ctx context.Context, calc *models.Calculation) error {
	if calc.ID == uuid.Nil {
		calc.ID = uuid.New()
	}
	now := time.Now().UTC()
	calc.CreatedAt = now
	calc.UpdatedAt = now

	query := `INSERT INTO calculations (id, user_id, kind, operands, result, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, query,
		calc.ID, calc.UserID, calc.Kind, calc.Operands, calc.Result, calc.CreatedAt, calc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create calculation: %w", err)
	}
	return nil
}

func (s *postgresStore) GetCalculation(ctx context.Context, userID, id uuid.UUID) (*models.Calculation, error) {
	var calc models.Calculation
	query := `SELECT id, user_id, kind, operands, result, created_at, updated_at
	          FROM calculations WHERE id = $1 AND user_id = $2`
	if err := s.db.GetContext(ctx, &calc, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get calculation: %w", err)
	}
	return &calc, nil
}

func (s *postgresStore) ListCalculations(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.Calculation, error) {
	dir := "DESC"
	if filter.Ascending {
		dir = "ASC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	// Non-nil so an empty history serializes as [] rather than null.
	calcs := make([]models.Calculation, 0)
	var err error
	if filter.Kind != "" {
		query := fmt.Sprintf(`SELECT id, user_id, kind, operands, result, created_at, updated_at
		          FROM calculations WHERE user_id = $1 AND kind = $2
		          ORDER BY created_at %s, id LIMIT $3`, dir)
		err = s.db.SelectContext(ctx, &calcs, query, userID, filter.Kind, limit)
	} else {
		query := fmt.Sprintf(`SELECT id, user_id, kind, operands, result, created_at, updated_at
		          FROM calculations WHERE user_id = $1
		          ORDER BY created_at %s, id LIMIT $2`, dir)
		err = s.db.SelectContext(ctx, &calcs, query, userID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	return calcs, nil
}

func (s *postgresStore) UpdateCalculation(ctx context.Context, calc *models.Calculation) error {
	calc.UpdatedAt = time.Now().UTC()
	query := `UPDATE calculations SET operands = $1, result = $2, updated_at = $3
	          WHERE id = $4 AND user_id = $5`
	res, err := s.db.ExecContext(ctx, query,
		calc.Operands, calc.Result, calc.UpdatedAt, calc.ID, calc.UserID)
	if err != nil {
		return fmt.Errorf("failed to update calculation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) DeleteCalculation(ctx context.Context, userID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM calculations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete calculation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) UsageStats(ctx context.Context, userID uuid.UUID) (*UsageStats, error) {
	var rows []struct {
		Kind  string  `db:"kind"`
		Cnt   int64   `db:"cnt"`
		Total float64 `db:"total"`
	}
	query := `SELECT kind, COUNT(*) AS cnt, SUM(result) AS total
	          FROM calculations WHERE user_id = $1 GROUP BY kind`
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	stats := &UsageStats{ByKind: make(map[string]int64, len(rows))}
	var sum float64
	for _, row := range rows {
		stats.Total += row.Cnt
		stats.ByKind[row.Kind] = row.Cnt
		sum += row.Total
	}
	if stats.Total > 0 {
		avg := sum / float64(stats.Total)
		stats.AverageResult = &avg
	}

	var newest sql.NullTime
	err := s.db.GetContext(ctx, &newest,
		`SELECT MAX(created_at) FROM calculations WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read newest calculation time: %w", err)
	}
	if newest.Valid {
		stats.MostRecent = &newest.Time
	}

	return stats, nil
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}
