package repository

import (
	"context"
	"time"

	"github.com/drew/identity-service/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
}

// SessionCache is the key-value side of the system. It is never the system
// of record: a miss is reported as a zero value with a nil error, and
// callers treat any non-nil error the same as a miss after logging it.
type SessionCache interface {
	PutSession(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error
	GetSession(ctx context.Context, userID uuid.UUID) (string, error)
	PutProfile(ctx context.Context, userID uuid.UUID, profile *domain.Profile, ttl time.Duration) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}
