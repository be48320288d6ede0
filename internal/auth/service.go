package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wuwenbin0122/authgate/internal/db"
	"github.com/wuwenbin0122/authgate/internal/models"
)

// TokenTTL is the lifetime of a login token.
const TokenTTL = time.Hour

// HashCost is the bcrypt work factor applied to new passwords.
const HashCost = bcrypt.DefaultCost

// maxPasswordBytes is the longest input bcrypt accepts. Longer passwords are
// truncated to this length for both hashing and comparison.
const maxPasswordBytes = 72

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.PublicUser
}

// Claims is the payload of a login token.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Service struct {
	guard  *Guard
	secret []byte
	logger *zap.Logger

	now func() time.Time
}

// NewService builds the service. An empty secret is accepted; login then fails
// with ErrConfiguration until the process is restarted with one.
func NewService(guard *Guard, secret string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		guard:  guard,
		secret: []byte(strings.TrimSpace(secret)),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.PublicUser, error) {
	users, err := s.guard.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)
	if username == "" || email == "" || input.Password == "" {
		return nil, ErrValidation
	}

	existing, err := users.FindByEmailOrUsername(ctx, email, username)
	switch {
	case err == nil:
		return nil, &ConflictError{Field: conflictField(existing, email)}
	case !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("auth: lookup existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword(passwordBytes(input.Password), HashCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := users.Create(ctx, user); err != nil {
		var dupErr *db.DuplicateKeyError
		if errors.As(err, &dupErr) {
			return nil, &ConflictError{Field: dupErr.Field}
		}
		return nil, fmt.Errorf("auth: create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))

	public := user.Public()
	return &public, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	users, err := s.guard.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}

	if input.Email == "" || input.Password == "" {
		return nil, ErrValidation
	}

	user, err := users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// Spend the same bcrypt work as a real comparison so response time
			// does not reveal whether the email is registered.
			_ = bcrypt.CompareHashAndPassword(placeholderHash(), passwordBytes(input.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), passwordBytes(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Public(),
	}, nil
}

// VerifyToken parses a login token signed with the service secret.
func (s *Service) VerifyToken(token string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrConfiguration
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *Service) generateToken(user *models.User) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrConfiguration
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(TokenTTL)
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %w", ErrTokenGeneration, err)
	}

	return signed, expiresAt, nil
}

func conflictField(existing *models.User, email string) string {
	if strings.EqualFold(existing.Email, email) {
		return db.FieldEmail
	}
	return db.FieldUsername
}

func passwordBytes(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var (
	placeholderOnce sync.Once
	placeholder     []byte
)

func placeholderHash() []byte {
	placeholderOnce.Do(func() {
		placeholder, _ = bcrypt.GenerateFromPassword([]byte("authgate-placeholder"), HashCost)
	})
	return placeholder
}
