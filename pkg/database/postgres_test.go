package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webdevsha/permitakaun/migrations"
	"github.com/webdevsha/permitakaun/pkg/config"
)

const pairConstraint = "tenant_organizers_pair_key"

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name   string
		in     config.DatabaseConfig
		assert func(t *testing.T, cfg *PostgresConfig)
	}{
		{
			name: "maps connection fields",
			in:   config.DatabaseConfig{Host: "db", Port: 6543, User: "app", Password: "pw", DBName: "permitakaun"},
			assert: func(t *testing.T, cfg *PostgresConfig) {
				assert.Equal(t, "db", cfg.Host)
				assert.Equal(t, 6543, cfg.Port)
				assert.Equal(t, "permitakaun", cfg.Database)
				assert.Equal(t, "host=db port=6543 user=app password=pw dbname=permitakaun sslmode=disable", cfg.DSN())
			},
		},
		{
			name: "pool overrides",
			in:   config.DatabaseConfig{MaxOpenConns: 40, MaxIdleConns: 8, SSLMode: "require"},
			assert: func(t *testing.T, cfg *PostgresConfig) {
				assert.Equal(t, int32(40), cfg.MaxConns)
				assert.Equal(t, int32(8), cfg.MinConns)
				assert.Equal(t, "require", cfg.SSLMode)
			},
		},
		{
			name: "zero values keep defaults",
			in:   config.DatabaseConfig{},
			assert: func(t *testing.T, cfg *PostgresConfig) {
				assert.Equal(t, int32(25), cfg.MaxConns)
				assert.Equal(t, int32(5), cfg.MinConns)
				assert.Equal(t, "disable", cfg.SSLMode)
				assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assert(t, FromConfig(tt.in))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pairErr := fmt.Errorf("insert link: %w", &pgconn.PgError{Code: UniqueViolation, ConstraintName: pairConstraint})

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"any constraint", pairErr, "", true},
		{"named constraint", pairErr, pairConstraint, true},
		{"other constraint", pairErr, "subscriptions_payment_reference_key", false},
		{"other sqlstate", &pgconn.PgError{Code: "23503"}, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraint))
		})
	}
}

func TestNewPostgres_Unreachable(t *testing.T) {
	cfg := &PostgresConfig{
		Host:           "invalid-host-that-does-not-exist",
		Port:           9999,
		User:           "invalid",
		Password:       "invalid",
		Database:       "invalid",
		SSLMode:        "disable",
		MaxRetries:     0,
		RetryInterval:  100 * time.Millisecond,
		ConnectTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewPostgres(ctx, cfg)
	assert.Error(t, err)
}

// Integration tests - run only when database is available

// openMigrated connects with TEST_POSTGRES_* overrides and applies the embedded schema
func openMigrated(t *testing.T) *PostgresDB {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := DefaultPostgresConfig()
	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("TEST_POSTGRES_PORT")); err == nil {
		cfg.Port = port
	}
	if user := os.Getenv("TEST_POSTGRES_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("TEST_POSTGRES_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("TEST_POSTGRES_DATABASE"); dbname != "" {
		cfg.Database = dbname
	}

	ctx := context.Background()
	db, err := NewPostgres(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	schema, err := migrations.Schema()
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, schema))
	return db
}

// uniqueCode returns an organizer code that does not collide across runs
func uniqueCode(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano()%1_000_000_000_000)
}

func insertOrganizer(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, code string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx,
		"INSERT INTO organizers (name, organizer_code) VALUES ($1, $2) RETURNING id",
		"Bazar "+code, code,
	).Scan(&id)
	return id, err
}

func countOrganizers(t *testing.T, db *PostgresDB, code string) int {
	t.Helper()
	var n int
	err := db.Pool().QueryRow(context.Background(),
		"SELECT COUNT(*) FROM organizers WHERE organizer_code = $1", code).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestMigrate_Idempotent_Integration(t *testing.T) {
	db := openMigrated(t)
	ctx := context.Background()

	schema, err := migrations.Schema()
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, schema), "re-running the schema must succeed")
	require.NoError(t, db.HealthCheck(ctx))

	var indexed bool
	err = db.Pool().QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = $1)", pairConstraint).Scan(&indexed)
	require.NoError(t, err)
	assert.True(t, indexed)
}

func TestWithTx_Integration(t *testing.T) {
	db := openMigrated(t)
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		code := uniqueCode("C")
		err := WithTx(ctx, db.Pool(), func(tx pgx.Tx) error {
			_, err := insertOrganizer(ctx, tx, code)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, countOrganizers(t, db, code))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		code := uniqueCode("R")
		boom := errors.New("abort")
		err := WithTx(ctx, db.Pool(), func(tx pgx.Tx) error {
			if _, err := insertOrganizer(ctx, tx, code); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, countOrganizers(t, db, code))
	})
}

func TestLinkPairUniqueness_Integration(t *testing.T) {
	db := openMigrated(t)
	ctx := context.Background()
	pool := db.Pool()

	organizerID, err := insertOrganizer(ctx, pool, uniqueCode("U"))
	require.NoError(t, err)

	var tenantID int64
	err = pool.QueryRow(ctx, "INSERT INTO tenants (full_name) VALUES ($1) RETURNING id", "Siti").Scan(&tenantID)
	require.NoError(t, err)

	const insertLink = "INSERT INTO tenant_organizers (tenant_id, organizer_id) VALUES ($1, $2)"
	_, err = pool.Exec(ctx, insertLink, tenantID, organizerID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, insertLink, tenantID, organizerID)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, pairConstraint))
	assert.False(t, IsUniqueViolation(err, "subscriptions_payment_reference_key"))
}

func TestPostgresDB_Close_Integration(t *testing.T) {
	db := openMigrated(t)

	db.Close()
	assert.Error(t, db.HealthCheck(context.Background()))
}
