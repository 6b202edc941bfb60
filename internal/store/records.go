package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
)

var _ schemas.Records = (*Store)(nil)

// defaultCaseLimit applies when ListCases is called without a positive limit.
const defaultCaseLimit = 50

const sqlUpsertProfile = `
    INSERT INTO profiles (id, name, phone, email, id_card_number, id_card_files, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $7)
    ON CONFLICT (id) DO UPDATE SET
        name = EXCLUDED.name,
        phone = EXCLUDED.phone,
        email = EXCLUDED.email,
        id_card_number = EXCLUDED.id_card_number,
        id_card_files = EXCLUDED.id_card_files,
        updated_at = EXCLUDED.updated_at
    RETURNING created_at;
`

// SaveProfile stores p as the active profile. A zero ID takes over the id of
// the current profile, so repeated saves edit one row.
func (s *Store) SaveProfile(ctx context.Context, p schemas.Profile) (*schemas.Profile, error) {
	if p.ID == uuid.Nil {
		current, err := s.GetProfile(ctx)
		if err != nil {
			return nil, err
		}
		if current != nil {
			p.ID = current.ID
		} else {
			p.ID = uuid.New()
		}
	}
	files, err := encodeFiles(p.IDCardFiles)
	if err != nil {
		return nil, fmt.Errorf("profile id_card_files: %w", err)
	}

	now := s.now().UTC()
	err = s.pool.QueryRow(ctx, sqlUpsertProfile,
		p.ID.String(), p.Name, p.Phone, p.Email, p.IDCardNumber, files, now,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	p.UpdatedAt = now
	s.log.Info("Profile saved.", zap.String("profile_id", p.ID.String()))
	return &p, nil
}

const sqlListIPAssets = `
    SELECT id::text, work_name, work_type, owner, region, work_start_date, work_end_date,
           equity_type, is_agent, COALESCE(auth_start_date, ''), COALESCE(auth_end_date, ''),
           auth_files::text, work_proof_files::text, status, created_at, updated_at
    FROM ip_assets
    ORDER BY created_at DESC;
`

// ListIPAssets returns every asset, newest first.
func (s *Store) ListIPAssets(ctx context.Context) ([]schemas.IPAsset, error) {
	rows, err := s.pool.Query(ctx, sqlListIPAssets)
	if err != nil {
		return nil, fmt.Errorf("failed to query ip assets: %w", err)
	}
	defer rows.Close()

	var assets []schemas.IPAsset
	for rows.Next() {
		a, err := scanIPAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return assets, nil
}

const sqlUpsertIPAsset = `
    INSERT INTO ip_assets (
        id, work_name, work_type, owner, region, work_start_date, work_end_date,
        equity_type, is_agent, auth_start_date, auth_end_date,
        auth_files, work_proof_files, status, created_at, updated_at
    )
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13::jsonb, $14, $15, $15)
    ON CONFLICT (id) DO UPDATE SET
        work_name = EXCLUDED.work_name,
        work_type = EXCLUDED.work_type,
        owner = EXCLUDED.owner,
        region = EXCLUDED.region,
        work_start_date = EXCLUDED.work_start_date,
        work_end_date = EXCLUDED.work_end_date,
        equity_type = EXCLUDED.equity_type,
        is_agent = EXCLUDED.is_agent,
        auth_start_date = EXCLUDED.auth_start_date,
        auth_end_date = EXCLUDED.auth_end_date,
        auth_files = EXCLUDED.auth_files,
        work_proof_files = EXCLUDED.work_proof_files,
        status = EXCLUDED.status,
        updated_at = EXCLUDED.updated_at
    RETURNING created_at;
`

// SaveIPAsset inserts a new asset when a.ID is zero and replaces it otherwise. Empty
// region, equity type and status take the platform defaults.
func (s *Store) SaveIPAsset(ctx context.Context, a schemas.IPAsset) (*schemas.IPAsset, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	defaults := schemas.NewIPAsset()
	if a.Region == "" {
		a.Region = defaults.Region
	}
	if a.EquityType == "" {
		a.EquityType = defaults.EquityType
	}
	if a.Status == "" {
		a.Status = defaults.Status
	}

	authFiles, err := encodeFiles(a.AuthFiles)
	if err != nil {
		return nil, fmt.Errorf("ip asset auth_files: %w", err)
	}
	proofFiles, err := encodeFiles(a.ProofFiles)
	if err != nil {
		return nil, fmt.Errorf("ip asset work_proof_files: %w", err)
	}

	now := s.now().UTC()
	err = s.pool.QueryRow(ctx, sqlUpsertIPAsset,
		a.ID.String(), a.WorkName, a.WorkType, a.Owner, a.Region, a.WorkStartDate, a.WorkEndDate,
		a.EquityType, a.IsAgent, nullable(a.AuthStartDate), nullable(a.AuthEndDate),
		authFiles, proofFiles, a.Status, now,
	).Scan(&a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save ip asset: %w", err)
	}
	a.UpdatedAt = now
	s.log.Info("IP asset saved.", zap.String("asset_id", a.ID.String()), zap.String("work_name", a.WorkName))
	return &a, nil
}

const sqlDeleteIPAsset = `DELETE FROM ip_assets WHERE id = $1;`

// DeleteIPAsset removes the asset. Cases that referenced it keep their row
// with the link cleared.
func (s *Store) DeleteIPAsset(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, sqlDeleteIPAsset, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete ip asset %s: %w", id, err)
	}
	deleted := tag.RowsAffected() > 0
	if deleted {
		s.log.Info("IP asset deleted.", zap.String("asset_id", id.String()))
	}
	return deleted, nil
}

const sqlListCases = `
    SELECT c.id::text, c.infringing_url, COALESCE(c.original_url, ''),
           COALESCE(c.associated_ip_id::text, ''), COALESCE(ia.work_name, ''),
           c.status, c.submission_date
    FROM cases c
    LEFT JOIN ip_assets ia ON ia.id = c.associated_ip_id
    ORDER BY c.submission_date DESC
    LIMIT $1;
`

// ListCases returns up to limit case records, newest first.
func (s *Store) ListCases(ctx context.Context, limit int) ([]schemas.CaseRecord, error) {
	if limit <= 0 {
		limit = defaultCaseLimit
	}
	rows, err := s.pool.Query(ctx, sqlListCases, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []schemas.CaseRecord
	for rows.Next() {
		var (
			c            schemas.CaseRecord
			rawID, rawIP string
			status       string
		)
		if err := rows.Scan(&rawID, &c.InfringingURL, &c.OriginalURL, &rawIP, &c.AssociatedIPName, &status, &c.SubmissionDate); err != nil {
			return nil, fmt.Errorf("failed to scan case row: %w", err)
		}
		if c.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("case has malformed id %q: %w", rawID, err)
		}
		if rawIP != "" {
			ipID, err := uuid.Parse(rawIP)
			if err != nil {
				return nil, fmt.Errorf("case %s has malformed asset id %q: %w", rawID, rawIP, err)
			}
			c.AssociatedIPID = &ipID
		}
		c.Status = schemas.CaseStatus(status)
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return cases, nil
}

// scanIPAsset reads one row in the column order of sqlGetIPAsset.
func scanIPAsset(row pgx.Row) (*schemas.IPAsset, error) {
	var (
		a                     schemas.IPAsset
		rawID                 string
		authFiles, proofFiles string
	)
	err := row.Scan(
		&rawID, &a.WorkName, &a.WorkType, &a.Owner, &a.Region, &a.WorkStartDate, &a.WorkEndDate,
		&a.EquityType, &a.IsAgent, &a.AuthStartDate, &a.AuthEndDate,
		&authFiles, &proofFiles, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("ip asset has malformed id %q: %w", rawID, err)
	}
	if a.AuthFiles, err = decodeFiles(authFiles); err != nil {
		return nil, fmt.Errorf("ip asset %s auth_files: %w", rawID, err)
	}
	if a.ProofFiles, err = decodeFiles(proofFiles); err != nil {
		return nil, fmt.Errorf("ip asset %s work_proof_files: %w", rawID, err)
	}
	return &a, nil
}

func encodeFiles(files []string) (string, error) {
	if files == nil {
		files = []string{}
	}
	raw, err := json.Marshal(files)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
