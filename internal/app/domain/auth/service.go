package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripweave/tripweave/internal/app/models"
)

// Service is the business logic contract for accounts.
type Service interface {
	Register(ctx context.Context, email, username, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*User, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	repo   Repository
	tokens *TokenService
	logger *zap.Logger
}

func NewService(repo Repository, tokens *TokenService, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{repo: repo, tokens: tokens, logger: logger}
}

// Register creates an account and returns a signed access token.
func (s *ServiceImpl) Register(ctx context.Context, email, username, password string) (string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if email == "" || username == "" {
		return "", models.ErrBadRequest
	}
	if len(password) < 8 {
		return "", fmt.Errorf("%w: password must be at least 8 characters", models.ErrBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := s.repo.CreateUser(ctx, email, username, string(hash))
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	s.logger.Info("Registered user", zap.String("user_id", userID.String()))
	return s.tokens.GenerateToken(userID, email, username)
}

// Login verifies credentials and returns a signed access token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *ServiceImpl) Login(ctx context.Context, email, password string) (string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrUnauthorized
		}
		span.RecordError(err)
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrUnauthorized
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return s.tokens.GenerateToken(user.ID, user.Email, user.Username)
}

func (s *ServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "GetUser")
	defer span.End()

	return s.repo.GetUserByID(ctx, userID)
}
