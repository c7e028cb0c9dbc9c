package integration

import (
	"context"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container and connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	// Create connection pool
	dbConfig := config.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}

	logger := zerolog.Nop()
	pool, err := database.NewPool(ctx, dbConfig, logger)
	if err != nil {
		// Try with connection string directly
		poolConfig, parseErr := pgxpool.ParseConfig(connStr)
		if parseErr != nil {
			t.Fatalf("failed to parse connection string: %v", parseErr)
		}
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			t.Fatalf("failed to create connection pool: %v", err)
		}
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	// Create schema
	createSchema(t, pool)

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// createSchema creates the database schema for testing.
func createSchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	schema := `
		CREATE TABLE IF NOT EXISTS coupons (
			id UUID PRIMARY KEY,
			code VARCHAR(50) NOT NULL,
			discount_type VARCHAR(20) NOT NULL,
			discount_value DECIMAL(10, 2) NOT NULL,
			min_order_value DECIMAL(10, 2) NOT NULL DEFAULT 0,
			expiry_date TIMESTAMPTZ NOT NULL,
			usage_limit INTEGER,
			use_limit_per_user INTEGER NOT NULL DEFAULT 1,
			category_restrictions JSONB NOT NULL DEFAULT '{}',
			user_restrictions JSONB NOT NULL DEFAULT '{}',
			is_unlisted BOOLEAN NOT NULL DEFAULT false,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_coupons_code ON coupons(code);

		CREATE TABLE IF NOT EXISTS coupon_redemptions (
			id UUID PRIMARY KEY,
			coupon_id UUID NOT NULL REFERENCES coupons(id) ON DELETE CASCADE,
			user_id VARCHAR(100) NOT NULL,
			used_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_coupon_redemptions_coupon_id ON coupon_redemptions(coupon_id);
		CREATE INDEX IF NOT EXISTS idx_coupon_redemptions_user_id ON coupon_redemptions(coupon_id, user_id);
	`

	_, err := pool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
}

// CleanupDB truncates all tables between test cases.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	_, err := pool.Exec(ctx, `TRUNCATE coupon_redemptions, coupons`)
	if err != nil {
		t.Fatalf("failed to clean up database: %v", err)
	}
}

// NewTestCoupon builds a valid coupon row for seeding, expiring a day out.
func NewTestCoupon(code string) *model.Coupon {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Coupon{
		ID:              uuid.New(),
		Code:            code,
		DiscountType:    model.DiscountPercentage,
		DiscountValue:   20,
		MinOrderValue:   100,
		ExpiryDate:      now.Add(24 * time.Hour),
		UseLimitPerUser: 1,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
