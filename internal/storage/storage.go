package storage

import (
	"context"
	"errors"
	"time"

	"user_service/internal/models"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidID    = errors.New("invalid user id")
)

type Storage interface {
	InsertUser(ctx context.Context, user models.User) (models.InsertResult, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	TouchLastLogin(ctx context.Context, email string, at time.Time) error

	// Bulk operations parse every id before touching the store, a single
	// malformed id fails the whole batch with ErrInvalidID.
	SetStatus(ctx context.Context, ids []string, status models.Status) (models.UpdateResult, error)
	DeleteUsers(ctx context.Context, ids []string) (models.DeleteResult, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
