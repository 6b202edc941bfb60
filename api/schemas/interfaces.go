package schemas

import (
	"context"

	"github.com/google/uuid"
)

// -- Persistence Interface --

// Repository is the narrow persistence surface the orchestrator consumes.
// Profiles and assets are read-only from the orchestrator's point of view.
type Repository interface {
	// GetProfile returns the active profile, or nil when none is configured.
	GetProfile(ctx context.Context) (*Profile, error)
	// GetIPAsset returns the asset with the given id, or nil when it does not exist.
	GetIPAsset(ctx context.Context, id uuid.UUID) (*IPAsset, error)
	// SaveCaseRecord records the outcome of an appeal attempt.
	SaveCaseRecord(ctx context.Context, req AppealRequest, status CaseStatus) error
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}

// Records is the management surface for the data a run reads: the filer's
// profile, the IP assets and the recorded cases.
type Records interface {
	GetProfile(ctx context.Context) (*Profile, error)
	// SaveProfile stores p as the single active profile and returns it as saved.
	SaveProfile(ctx context.Context, p Profile) (*Profile, error)
	ListIPAssets(ctx context.Context) ([]IPAsset, error)
	// SaveIPAsset creates the asset when its ID is zero, otherwise replaces it.
	SaveIPAsset(ctx context.Context, a IPAsset) (*IPAsset, error)
	// DeleteIPAsset reports whether an asset was removed.
	DeleteIPAsset(ctx context.Context, id uuid.UUID) (bool, error)
	// ListCases returns the newest case records first, at most limit of them.
	ListCases(ctx context.Context, limit int) ([]CaseRecord, error)
}

// -- Automation Interfaces --

// Automation is the boundary the CLI and the control API talk to.
type Automation interface {
	Start(ctx context.Context, req AppealRequest) error
	Stop(ctx context.Context) error
	Status() RunStatus
	SignalVerificationComplete() error
	CheckEnvironment(ctx context.Context) string
}
