//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
)

func TestStore_Postgres(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("rightsguard"),
		postgres.WithUsername("rightsguard"),
		postgres.WithPassword("rightsguard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	s, err := New(ctx, pool, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	// Idempotent.
	require.NoError(t, s.Migrate(ctx))

	t.Run("empty database", func(t *testing.T) {
		p, err := s.GetProfile(ctx)
		require.NoError(t, err)
		assert.Nil(t, p)

		a, err := s.GetIPAsset(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, a)
	})

	profileID := uuid.New()
	assetID := uuid.New()
	_, err = pool.Exec(ctx,
		`INSERT INTO profiles (id, name, phone, email, id_card_number, id_card_files) VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		profileID.String(), "张三", "13800000000", "zs@example.com", "110101199001011234", `["id/front.png"]`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO ip_assets (id, work_name, work_type, owner, is_agent, auth_files) VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		assetID.String(), "山河", "视频", "某影业", false, `[]`)
	require.NoError(t, err)

	t.Run("reads seeded rows", func(t *testing.T) {
		p, err := s.GetProfile(ctx)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, profileID, p.ID)
		assert.Equal(t, []string{"id/front.png"}, p.IDCardFiles)

		a, err := s.GetIPAsset(ctx, assetID)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, schemas.DefaultRegion, a.Region)
		assert.Equal(t, schemas.DefaultEquityType, a.EquityType)
		assert.Empty(t, a.AuthStartDate)
	})

	t.Run("saves case records", func(t *testing.T) {
		req := schemas.AppealRequest{InfringingURL: "https://v.example.com/x", IPAssetID: &assetID}
		require.NoError(t, s.SaveCaseRecord(ctx, req, schemas.CaseSubmitted))

		var count int
		var status string
		err := pool.QueryRow(ctx, `SELECT count(*), max(status) FROM cases WHERE associated_ip_id = $1`, assetID.String()).Scan(&count, &status)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, "submitted", status)
	})

	t.Run("manages records", func(t *testing.T) {
		saved, err := s.SaveProfile(ctx, schemas.Profile{Name: "李四", Email: "ls@example.com"})
		require.NoError(t, err)
		assert.Equal(t, profileID, saved.ID, "a save without id edits the active profile")

		p, err := s.GetProfile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "李四", p.Name)
		assert.Empty(t, p.IDCardFiles)

		added, err := s.SaveIPAsset(ctx, schemas.IPAsset{WorkName: "江湖", ProofFiles: []string{"proof/a.jpg"}})
		require.NoError(t, err)
		assets, err := s.ListIPAssets(ctx)
		require.NoError(t, err)
		require.Len(t, assets, 2)
		assert.Equal(t, added.ID, assets[0].ID)
		assert.Equal(t, []string{"proof/a.jpg"}, assets[0].ProofFiles)

		cases, err := s.ListCases(ctx, 10)
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "山河", cases[0].AssociatedIPName)

		deleted, err := s.DeleteIPAsset(ctx, assetID)
		require.NoError(t, err)
		assert.True(t, deleted)

		cases, err = s.ListCases(ctx, 10)
		require.NoError(t, err)
		require.Len(t, cases, 1, "cases outlive their asset")
		assert.Nil(t, cases[0].AssociatedIPID)
	})
}
