package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"calculations-api/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist or does not
	// belong to the requesting user.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateUser is returned when a username or email is already taken.
	ErrDuplicateUser = errors.New("user already exists")
)

// List limits applied when the caller does not specify one.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// ListFilter narrows and orders a calculation listing. A zero Kind matches
// all kinds. Results are ordered by creation time, newest first unless
// Ascending is set.
type ListFilter struct {
	Kind      string
	Ascending bool
	Limit     int
}

// UsageStats aggregates a single user's calculation history. AverageResult
// and MostRecent are nil when the user has no calculations; ByKind contains
// only kinds the user has actually used.
type UsageStats struct {
	Total         int64
	ByKind        map[string]int64
	AverageResult *float64
	MostRecent    *time.Time
}

// UserRepository persists user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// CalculationRepository persists calculations. Every read and write is
// scoped to the owning user; a record owned by someone else behaves
// exactly like a missing one.
type CalculationRepository interface {
	CreateCalculation(ctx context.Context, calc *models.Calculation) error
	GetCalculation(ctx context.Context, userID, id uuid.UUID) (*models.Calculation, error)
	ListCalculations(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.Calculation, error)
	UpdateCalculation(ctx context.Context, calc *models.Calculation) error
	DeleteCalculation(ctx context.Context, userID, id uuid.UUID) error
	UsageStats(ctx context.Context, userID uuid.UUID) (*UsageStats, error)
}

// Store is the full persistence surface of the service.
type Store interface {
	UserRepository
	CalculationRepository
	Close() error
}

// Open connects to the configured database and returns a ready Store.
func Open(driver, dsn string, logger *zap.Logger) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLiteStore(dsn, logger)
	case "postgres":
		return NewPostgresStore(dsn, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
