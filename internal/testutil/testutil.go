package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/drew/identity-service/internal/api"
	"github.com/drew/identity-service/internal/auth"
	"github.com/drew/identity-service/internal/config"
	"github.com/drew/identity-service/internal/domain"
	repoPostgres "github.com/drew/identity-service/internal/repository/postgres"
	repoRedis "github.com/drew/identity-service/internal/repository/redis"
	"github.com/drew/identity-service/internal/service"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_identity"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	return testDB
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	if err := tdb.DB.Exec("TRUNCATE TABLE users CASCADE").Error; err != nil {
		t.Logf("warning: failed to truncate users: %v", err)
	}
}

// TestRedis manages a testcontainers Redis instance
type TestRedis struct {
	Container testcontainers.Container
	Client    *goredis.Client
}

// NewTestRedis creates a new Redis testcontainer and returns a client
func NewTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	ctx := context.Background()

	container, err := tcRedis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis connection string: %v", err)
	}

	opts, err := goredis.ParseURL(uri)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}

	client := goredis.NewClient(opts)

	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})

	return &TestRedis{
		Container: container,
		Client:    client,
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:               "0", // Random port
		Environment:        "test",
		JWTSecret:          "test-jwt-secret-key-for-testing-only",
		JWTExpirationHours: 24,
		ProfileCacheTTL:    5 * time.Minute,
		CacheTimeout:       2 * time.Second,
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	DB       *TestDB
	Redis    *TestRedis
	Identity *service.IdentityService
	Tokens   *auth.TokenIssuer
	Config   *config.Config
}

// NewTestServer creates a complete test server with all dependencies
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	testRedis := NewTestRedis(t)
	cfg := TestConfig()

	users := repoPostgres.NewUserRepository(testDB.DB)
	cache := repoRedis.NewSessionCache(testRedis.Client)
	hasher := auth.NewPasswordHasher()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTExpirationHours)*time.Hour)
	identity := service.NewIdentityService(users, cache, hasher, tokens, slog.New(slog.DiscardHandler), cfg)

	server := httptest.NewServer(api.NewRouter(identity, tokens))

	ts := &TestServer{
		Server:   server,
		DB:       testDB,
		Redis:    testRedis,
		Identity: identity,
		Tokens:   tokens,
		Config:   cfg,
	}

	t.Cleanup(func() {
		server.Close()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/users%s", ts.Server.URL, path)
}
