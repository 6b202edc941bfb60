package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides a PostgreSQL implementation of the Repository interface.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

var _ schemas.Repository = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
		now:  time.Now,
	}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS profiles (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    id_card_number TEXT NOT NULL DEFAULT '',
    id_card_files JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS ip_assets (
    id UUID PRIMARY KEY,
    work_name TEXT NOT NULL,
    work_type TEXT NOT NULL DEFAULT '',
    owner TEXT NOT NULL DEFAULT '',
    region TEXT NOT NULL DEFAULT '中国大陆',
    work_start_date TEXT NOT NULL DEFAULT '',
    work_end_date TEXT NOT NULL DEFAULT '',
    equity_type TEXT NOT NULL DEFAULT '著作权',
    is_agent BOOLEAN NOT NULL DEFAULT FALSE,
    auth_start_date TEXT,
    auth_end_date TEXT,
    auth_files JSONB NOT NULL DEFAULT '[]',
    work_proof_files JSONB NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT '待认证',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS cases (
    id UUID PRIMARY KEY,
    infringing_url TEXT NOT NULL,
    original_url TEXT,
    associated_ip_id UUID REFERENCES ip_assets(id) ON DELETE SET NULL,
    status TEXT NOT NULL,
    submission_date TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Database schema is up to date.")
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const sqlGetProfile = `
    SELECT id::text, name, phone, email, id_card_number, id_card_files::text, created_at, updated_at
    FROM profiles
    ORDER BY updated_at DESC
    LIMIT 1;
`

// GetProfile returns the active profile, or nil when none is stored.
func (s *Store) GetProfile(ctx context.Context) (*schemas.Profile, error) {
	var (
		p     schemas.Profile
		id    string
		files string
	)
	err := s.pool.QueryRow(ctx, sqlGetProfile).Scan(
		&id, &p.Name, &p.Phone, &p.Email, &p.IDCardNumber, &files, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("profile has malformed id %q: %w", id, err)
	}
	if p.IDCardFiles, err = decodeFiles(files); err != nil {
		return nil, fmt.Errorf("profile %s id_card_files: %w", id, err)
	}
	return &p, nil
}

const sqlGetIPAsset = `
    SELECT id::text, work_name, work_type, owner, region, work_start_date, work_end_date,
           equity_type, is_agent, COALESCE(auth_start_date, ''), COALESCE(auth_end_date, ''),
           auth_files::text, work_proof_files::text, status, created_at, updated_at
    FROM ip_assets
    WHERE id = $1;
`

// GetIPAsset returns the asset with id, or nil when it does not exist.
func (s *Store) GetIPAsset(ctx context.Context, id uuid.UUID) (*schemas.IPAsset, error) {
	a, err := scanIPAsset(s.pool.QueryRow(ctx, sqlGetIPAsset, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ip asset %s: %w", id, err)
	}
	return a, nil
}

const sqlInsertCase = `
    INSERT INTO cases (id, infringing_url, original_url, associated_ip_id, status, submission_date)
    VALUES ($1, $2, $3, $4, $5, $6);
`

// SaveCaseRecord stores the outcome of one appeal attempt.
func (s *Store) SaveCaseRecord(ctx context.Context, req schemas.AppealRequest, status schemas.CaseStatus) error {
	var original, assetID any
	if req.OriginalURL != "" {
		original = req.OriginalURL
	}
	if req.IPAssetID != nil {
		assetID = req.IPAssetID.String()
	}

	caseID := uuid.New()
	_, err := s.pool.Exec(ctx, sqlInsertCase,
		caseID.String(), req.InfringingURL, original, assetID, string(status), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert case record: %w", err)
	}
	s.log.Info("Case record saved.", zap.String("case_id", caseID.String()), zap.String("status", string(status)))
	return nil
}

func decodeFiles(raw string) ([]string, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var files []string
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		return nil, fmt.Errorf("malformed file list: %w", err)
	}
	return files, nil
}
