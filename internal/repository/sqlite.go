package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"calculations-api/internal/models"
)

type sqliteStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewSQLiteStore opens (or creates) a sqlite database at dsn and migrates
// the schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(dsn string, logger *zap.Logger) (Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Calculation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	logger.Info("connected to sqlite database", zap.String("dsn", dsn))
	return &sqliteStore{db: db, log: logger}, nil
}

func (s *sqliteStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *sqliteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *sqliteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

func (s *sqliteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (s *sqliteStore) CreateCalculation(ctx context.Context, calc *models.Calculation) error {
	if err := s.db.WithContext(ctx).Create(calc).Error; err != nil {
		return fmt.Errorf("failed to create calculation: %w", err)
	}
	return nil
}

func (s *sqliteStore) GetCalculation(ctx context.Context, userID, id uuid.UUID) (*models.Calculation, error) {
	var calc models.Calculation
	err := s.db.WithContext(ctx).First(&calc, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get calculation: %w", err)
	}
	return &calc, nil
}

func (s *sqliteStore) ListCalculations(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.Calculation, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	order := "created_at DESC, id"
	if filter.Ascending {
		order = "created_at ASC, id"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	// Non-nil so an empty history serializes as [] rather than null.
	calcs := make([]models.Calculation, 0)
	if err := q.Order(order).Limit(limit).Find(&calcs).Error; err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	return calcs, nil
}

func (s *sqliteStore) UpdateCalculation(ctx context.Context, calc *models.Calculation) error {
	calc.UpdatedAt = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Calculation{}).
		Where("id = ? AND user_id = ?", calc.ID, calc.UserID).
		Updates(map[string]interface{}{
			"operands":   calc.Operands,
			"result":     calc.Result,
			"updated_at": calc.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update calculation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteCalculation(ctx context.Context, userID, id uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Calculation{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete calculation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) UsageStats(ctx context.Context, userID uuid.UUID) (*UsageStats, error) {
	var rows []struct {
		Kind  string
		Cnt   int64
		Total float64
	}
	err := s.db.WithContext(ctx).Model(&models.Calculation{}).
		Select("kind, COUNT(*) AS cnt, SUM(result) AS total").
		Where("user_id = ?", userID).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
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

	// The sqlite driver returns MAX(created_at) as a bare string, so fetch
	// the newest row's timestamp through the model instead.
	var stamps []time.Time
	err = s.db.WithContext(ctx).Model(&models.Calculation{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Pluck("created_at", &stamps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read newest calculation time: %w", err)
	}
	if len(stamps) > 0 {
		stats.MostRecent = &stamps[0]
	}

	return stats, nil
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
