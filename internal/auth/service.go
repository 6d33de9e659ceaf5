package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"calculations-api/internal/models"
	"calculations-api/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for an unknown username or a wrong
	// password. Callers must not reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken is returned for tokens that fail validation or are
	// used for the wrong purpose.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInactiveUser is returned when a deactivated account tries to
	// log in or refresh.
	ErrInactiveUser = errors.New("user account is inactive")
)

// Token types carried in the token_type claim. Access tokens authorize API
// calls; refresh tokens can only be exchanged for a new access token.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the JWT payload for both token types.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenType string    `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login returns. ExpiresAt is the access
// token's expiry; the refresh token lives longer.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RegisterParams carries the fields of a registration request after
// transport-level validation.
type RegisterParams struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Service implements registration, login and the stateless JWT scheme.
// Tokens are HS256-signed and carry no server-side state, so they cannot
// be revoked before expiry.
type Service struct {
	users      repository.UserRepository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *zap.Logger
}

func NewService(users repository.UserRepository, secret []byte, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:      users,
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        logger,
	}
}

// Register creates a new active account with a bcrypt password hash.
// It returns repository.ErrDuplicateUser when the username or email is
// already taken.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	if _, err := s.users.GetUserByUsername(ctx, p.Username); err == nil {
		return nil, repository.ErrDuplicateUser
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.users.GetUserByEmail(ctx, p.Email); err == nil {
		return nil, repository.ErrDuplicateUser
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: string(hash),
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		IsActive:     true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("username", user.Username))
	return user, nil
}

// Login verifies the credentials and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrInactiveUser
	}

	now := time.Now()
	access, expiresAt, err := s.signToken(user.ID, TokenTypeAccess, now, s.accessTTL)
	if err != nil {
		return nil, nil, err
	}
	refresh, _, err := s.signToken(user.ID, TokenTypeRefresh, now, s.refreshTTL)
	if err != nil {
		return nil, nil, err
	}

	return user, &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is not rotated. Any parse failure comes back as
// ErrInvalidToken; callers of Refresh do not need to tell expiry apart
// from tampering.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.ParseToken(refreshToken)
	if err != nil {
		return "", time.Time{}, ErrInvalidToken
	}
	if claims.TokenType != TokenTypeRefresh {
		return "", time.Time{}, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", time.Time{}, ErrInvalidToken
		}
		return "", time.Time{}, err
	}
	if !user.IsActive {
		return "", time.Time{}, ErrInactiveUser
	}

	return s.signToken(user.ID, TokenTypeAccess, time.Now(), s.accessTTL)
}

// ParseToken validates the signature and standard claims and returns the
// parsed claims. JWT errors such as jwt.ErrTokenExpired are passed through
// so callers can distinguish them.
func (s *Service) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) signToken(userID uuid.UUID, tokenType string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := &Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}
