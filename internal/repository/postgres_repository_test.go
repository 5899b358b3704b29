package repository

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/migrations"
	"github.com/webdevsha/permitakaun/pkg/database"
)

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupTestDB(t *testing.T) *database.PostgresDB {
	ctx := context.Background()

	cfg := database.DefaultPostgresConfig()
	cfg.Host = getEnv("POSTGRES_HOST", "localhost")
	cfg.User = getEnv("POSTGRES_USER", "postgres")
	cfg.Password = getEnv("POSTGRES_PASSWORD", "postgres")
	cfg.Database = getEnv("POSTGRES_DB", "permitakaun_test")
	cfg.MaxConns = 5
	cfg.MinConns = 1

	db, err := database.NewPostgres(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	schema, err := migrations.Schema()
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, schema))
	return db
}

// seedPair inserts a tenant and an organizer with a unique code
func seedPair(t *testing.T, db *database.PostgresDB) (tenantID, organizerID int64) {
	ctx := context.Background()
	code := "IT-" + uuid.NewString()[:8]

	err := db.Pool().QueryRow(ctx,
		`INSERT INTO organizers (name, email, organizer_code) VALUES ('Bazar Ujian', 'org@example.com', $1) RETURNING id`,
		code,
	).Scan(&organizerID)
	require.NoError(t, err)

	err = db.Pool().QueryRow(ctx,
		`INSERT INTO tenants (full_name, email) VALUES ('Peniaga Ujian', 'tenant@example.com') RETURNING id`,
	).Scan(&tenantID)
	require.NoError(t, err)
	return tenantID, organizerID
}

func TestPostgresLinkRepository_RequestAndProcess(t *testing.T) {
	skipIfNoIntegration(t)

	db := setupTestDB(t)
	defer db.Close()

	repo := NewPostgresLinkRepository(db.Pool())
	ctx := context.Background()
	tenantID, organizerID := seedPair(t, db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	link, outcome, err := repo.RequestLink(ctx, tenantID, organizerID, "", now)
	require.NoError(t, err)
	assert.Equal(t, RequestCreated, outcome)

	_, outcome, err = repo.RequestLink(ctx, tenantID, organizerID, "", now)
	require.NoError(t, err)
	assert.Equal(t, RequestExisting, outcome)

	reason := "Tidak lengkap"
	tr, err := link.Reject("", &reason, now)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, link, domain.LinkPending, tr))

	resurrected, outcome, err := repo.RequestLink(ctx, tenantID, organizerID, "", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, RequestResurrected, outcome)
	assert.Equal(t, link.ID, resurrected.ID)
	assert.Nil(t, resurrected.RejectionReason)

	pending, err := repo.ListPending(ctx, &organizerID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Peniaga Ujian", pending[0].Tenant.FullName)

	transitions, err := repo.ListTransitions(ctx, link.ID)
	require.NoError(t, err)
	assert.Len(t, transitions, 3)
}

func TestPostgresTransactionRepository_Reconcile(t *testing.T) {
	skipIfNoIntegration(t)

	db := setupTestDB(t)
	defer db.Close()

	repo := NewPostgresTransactionRepository(db.Pool())
	ctx := context.Background()
	tenantID, organizerID := seedPair(t, db)
	now := time.Now().UTC()
	ref := "it-" + uuid.NewString()

	row := &domain.Transaction{
		OwnerKind:        domain.OwnerTenant,
		OwnerID:          tenantID,
		Amount:           decimal.RequireFromString("25.00"),
		Description:      "Sewa tapak",
		Type:             domain.TypeExpense,
		Category:         domain.CategoryRent,
		Date:             now,
		Status:           domain.TxPending,
		PaymentMethod:    domain.MethodGateway,
		PaymentReference: ref,
		Metadata:         &domain.PaymentMetadata{OrganizerID: organizerID},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, repo.Create(ctx, row))

	found, err := repo.FindPrimaryByReference(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, found)
	meta, ok := found.Metadata.(*domain.PaymentMetadata)
	require.True(t, ok)
	assert.Equal(t, organizerID, meta.OrganizerID)

	ok, err = repo.CompareAndSetStatus(ctx, row.ID, domain.TxPending, domain.TxApproved, "", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.CompareAndSetStatus(ctx, row.ID, domain.TxPending, domain.TxApproved, "", now)
	require.NoError(t, err)
	assert.False(t, ok)

	inserted, err := repo.CreateCounterpart(ctx, found.Counterpart(domain.OwnerOrganizer, organizerID, now))
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = repo.CreateCounterpart(ctx, found.Counterpart(domain.OwnerOrganizer, organizerID, now))
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestProfileKey(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		want   string
		wantOK bool
	}{
		{"canonical", "7d444840-9dc0-11d1-b245-5ffdce74fad2", "7d444840-9dc0-11d1-b245-5ffdce74fad2", true},
		{"upper case", "7D444840-9DC0-11D1-B245-5FFDCE74FAD2", "7d444840-9dc0-11d1-b245-5ffdce74fad2", true},
		{"not a uuid", "p-tenant", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := profileKey(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostgresPartyRepositories_ByProfile(t *testing.T) {
	skipIfNoIntegration(t)

	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	profileID := uuid.New()
	_, err := db.Pool().Exec(ctx,
		`INSERT INTO profiles (id, email, full_name, role) VALUES ($1::uuid, $2, 'Siti', 'tenant')`,
		profileID.String(), profileID.String()+"@example.com",
	)
	require.NoError(t, err)
	_, err = db.Pool().Exec(ctx,
		`INSERT INTO tenants (profile_id, full_name) VALUES ($1::uuid, 'Siti')`, profileID.String())
	require.NoError(t, err)
	_, err = db.Pool().Exec(ctx,
		`INSERT INTO organizers (profile_id, name, organizer_code) VALUES ($1::uuid, 'Bazar Siti', $2)`,
		profileID.String(), "IT-"+uuid.NewString()[:8])
	require.NoError(t, err)

	profiles := NewPostgresProfileRepository(db.Pool())
	tenants := NewPostgresTenantRepository(db.Pool())
	organizers := NewPostgresOrganizerRepository(db.Pool())

	profile, err := profiles.GetByID(ctx, strings.ToUpper(profileID.String()))
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, profileID.String(), profile.ID)

	tenant, err := tenants.GetByProfileID(ctx, profileID.String())
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, profileID.String(), tenant.ProfileID)

	organizer, err := organizers.GetByProfileID(ctx, profileID.String())
	require.NoError(t, err)
	require.NotNil(t, organizer)

	// malformed ids are simply absent
	profile, err = profiles.GetByID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, profile)
	tenant, err = tenants.GetByProfileID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, tenant)
	organizer, err = organizers.GetByProfileID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, organizer)
}
