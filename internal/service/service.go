package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user_service/internal/auth"
	"user_service/internal/models"
	"user_service/internal/storage"
)

// Login outcomes. None of them is an error, the caller inspects the message.
const (
	LoginUserNotFound = "User not found"
	LoginBlocked      = "blocked"
	LoginPassNotMatch = "Pass not matched"
	LoginMatched      = "matched"
)

// UserStatus outcomes.
const (
	StatusFound    = "blocked"
	StatusNotFound = "not blocked"
)

var ErrPasswordRequired = errors.New("password is required")

type TokenIssuer interface {
	Issue(claims map[string]any) (string, error)
}

type Service interface {
	IssueToken(claims map[string]any) (string, error)
	CreateUser(ctx context.Context, body map[string]any) (models.InsertResult, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	BlockUsers(ctx context.Context, ids []string) (models.UpdateResult, error)
	UnblockUsers(ctx context.Context, ids []string) (models.UpdateResult, error)
	DeleteUsers(ctx context.Context, ids []string) (models.DeleteResult, error)
	Login(ctx context.Context, email, password string) (string, error)
	UserStatus(ctx context.Context, email string) (string, error)
}

type service struct {
	storage storage.Storage
	tokens  TokenIssuer
	now     func() time.Time
}

func NewService(st storage.Storage, tokens TokenIssuer) *service {
	return &service{
		storage: st,
		tokens:  tokens,
		now:     time.Now,
	}
}

func (s *service) IssueToken(claims map[string]any) (string, error) {
	const op = "service.IssueToken"

	token, err := s.tokens.Issue(claims)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// CreateUser hashes body.password and stores the rest of the body as-is.
func (s *service) CreateUser(ctx context.Context, body map[string]any) (models.InsertResult, error) {
	const op = "service.CreateUser"

	user := models.NewUserFromBody(body)
	if user.Password == "" {
		return models.InsertResult{}, fmt.Errorf("%s: %w", op, ErrPasswordRequired)
	}

	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("%s: %w", op, err)
	}
	user.Password = passwordHash

	res, err := s.storage.InsertUser(ctx, user)
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (s *service) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "service.ListUsers"

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

func (s *service) BlockUsers(ctx context.Context, ids []string) (models.UpdateResult, error) {
	return s.setStatus(ctx, "service.BlockUsers", ids, models.StatusBlocked)
}

func (s *service) UnblockUsers(ctx context.Context, ids []string) (models.UpdateResult, error) {
	return s.setStatus(ctx, "service.UnblockUsers", ids, models.StatusActive)
}

func (s *service) setStatus(ctx context.Context, op string, ids []string, status models.Status) (models.UpdateResult, error) {
	res, err := s.storage.SetStatus(ctx, ids, status)
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (s *service) DeleteUsers(ctx context.Context, ids []string) (models.DeleteResult, error) {
	const op = "service.DeleteUsers"

	res, err := s.storage.DeleteUsers(ctx, ids)
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// Login returns one of the Login* messages. lastLogin is only touched on a
// matching password for an active account.
func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	const op = "service.Login"

	user, err := s.storage.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return LoginUserNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if user.Status == models.StatusBlocked {
		return LoginBlocked, nil
	}

	if ok := auth.CheckPasswordHash(user.Password, password); !ok {
		return LoginPassNotMatch, nil
	}

	if err := s.storage.TouchLastLogin(ctx, email, s.now().UTC()); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return LoginMatched, nil
}

// UserStatus reports StatusFound whenever a record with the email exists,
// whatever its status field says.
func (s *service) UserStatus(ctx context.Context, email string) (string, error) {
	const op = "service.UserStatus"

	_, err := s.storage.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return StatusNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return StatusFound, nil
}
