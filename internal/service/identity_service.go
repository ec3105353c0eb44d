package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/drew/identity-service/internal/auth"
	"github.com/drew/identity-service/internal/config"
	"github.com/drew/identity-service/internal/domain"
	"github.com/drew/identity-service/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrUserExists         = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// Source values returned by GetProfile.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// Digest of a throwaway password, verified when a login names a username
// that does not exist. Both bad-credential paths then cost one bcrypt
// comparison, so response timing does not reveal whether the user exists.
const enumerationGuardDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type IdentityService struct {
	users  repository.UserRepository
	cache  repository.SessionCache
	hasher *auth.PasswordHasher
	tokens *auth.TokenIssuer
	logger *slog.Logger

	profileTTL   time.Duration
	cacheTimeout time.Duration
}

func NewIdentityService(users repository.UserRepository, cache repository.SessionCache, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, logger *slog.Logger, cfg *config.Config) *IdentityService {
	return &IdentityService{
		users:        users,
		cache:        cache,
		hasher:       hasher,
		tokens:       tokens,
		logger:       logger,
		profileTTL:   cfg.ProfileCacheTTL,
		cacheTimeout: cfg.CacheTimeout,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

type LoginInput struct {
	Username string
	Password string
}

type LoginResult struct {
	Token string
	User  *domain.User
}

func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*domain.Profile, error) {
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return nil, ErrMissingFields
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: digest,
		FullName:     input.FullName,
		CreatedAt:    time.Now(),
	}

	// No existence pre-check: the unique constraints on username and email
	// arbitrate concurrent registrations, so exactly one insert wins.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return user.Profile(), nil
}

func (s *IdentityService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if input.Username == "" || input.Password == "" {
		return nil, ErrMissingFields
	}

	user, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.hasher.Verify(input.Password, enumerationGuardDigest)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Username, time.Now())
	if err != nil {
		return nil, err
	}

	// Advisory mirror of the token; the token itself stays valid whether or
	// not this write lands.
	cctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()
	if err := s.cache.PutSession(cctx, user.ID, token, s.tokens.Validity()); err != nil {
		s.logger.Warn("session cache write failed", "user_id", user.ID, "error", err)
	}

	return &LoginResult{Token: token, User: user}, nil
}

// GetProfile is cache-aside: cache first, store on miss, then a best-effort
// cache fill. Cache errors are logged and treated as misses.
func (s *IdentityService) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	cached, err := s.cache.GetProfile(cctx, id)
	cancel()
	if err != nil {
		s.logger.Warn("profile cache read failed", "user_id", id, "error", err)
	}
	if cached != nil {
		return cached, SourceCache, nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}

	profile := user.Profile()

	cctx, cancel = context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()
	if err := s.cache.PutProfile(cctx, id, profile, s.profileTTL); err != nil {
		s.logger.Warn("profile cache write failed", "user_id", id, "error", err)
	}

	return profile, SourceDatabase, nil
}

func (s *IdentityService) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	profiles := make([]*domain.Profile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, user.Profile())
	}
	return profiles, nil
}
