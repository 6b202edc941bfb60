package schemas

import (
	"time"

	"github.com/google/uuid"
)

// -- Appeal Inputs --

// AppealRequest is what the caller hands to the orchestrator to file one appeal.
// It is consumed once per run and never mutated.
type AppealRequest struct {
	InfringingURL string     `json:"infringingUrl" validate:"required,url"`
	OriginalURL   string     `json:"originalUrl,omitempty" validate:"omitempty,url"`
	IPAssetID     *uuid.UUID `json:"ipAssetId,omitempty"`
}

// Profile holds the filer's identity. Exactly one active profile is expected.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name" validate:"required"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email" validate:"omitempty,email"`
	IDCardNumber string    `json:"idCardNumber"`
	// IDCardFiles are stored relative to the configured files root.
	IDCardFiles []string  `json:"idCardFiles"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Defaults applied to a freshly created IPAsset.
const (
	DefaultRegion      = "中国大陆"
	DefaultEquityType  = "著作权"
	DefaultAssetStatus = "待认证"
)

// IPAsset is the rights-holder record attached to an appeal when the filer acts
// for a work they own or are authorized to represent.
type IPAsset struct {
	ID            uuid.UUID `json:"id"`
	WorkName      string    `json:"workName" validate:"required"`
	WorkType      string    `json:"workType"`
	Owner         string    `json:"owner"`
	Region        string    `json:"region"`
	WorkStartDate string    `json:"workStartDate"`
	WorkEndDate   string    `json:"workEndDate"`
	EquityType    string    `json:"equityType"`
	IsAgent       bool      `json:"isAgent"`
	AuthStartDate string    `json:"authStartDate,omitempty"`
	AuthEndDate   string    `json:"authEndDate,omitempty"`
	AuthFiles     []string  `json:"authFiles"`
	ProofFiles    []string  `json:"workProofFiles"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewIPAsset returns an asset populated with the platform defaults.
func NewIPAsset() IPAsset {
	return IPAsset{
		Region:     DefaultRegion,
		EquityType: DefaultEquityType,
		Status:     DefaultAssetStatus,
	}
}

// -- Case Records --

// CaseStatus is the outcome recorded for a filed appeal.
type CaseStatus string

const (
	CaseSubmitted CaseStatus = "submitted"
	CaseManual    CaseStatus = "manual"
	CaseFailed    CaseStatus = "failed"
)

// CaseRecord is the persisted trace of one appeal attempt.
type CaseRecord struct {
	ID             uuid.UUID  `json:"id"`
	InfringingURL  string     `json:"infringingUrl"`
	OriginalURL    string     `json:"originalUrl,omitempty"`
	AssociatedIPID *uuid.UUID `json:"associatedIpId,omitempty"`
	// AssociatedIPName is the work name of the linked asset, filled on reads.
	AssociatedIPName string     `json:"associatedIpName,omitempty"`
	Status           CaseStatus `json:"status"`
	SubmissionDate   time.Time  `json:"submissionDate"`
}

// -- Run Status --

// RunStatus is the snapshot a polling caller sees. Error is non-empty whenever a
// run ended without reaching 100 percent.
type RunStatus struct {
	IsRunning   bool       `json:"isRunning"`
	RunID       string     `json:"runId,omitempty"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Progress    *float64   `json:"progress,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	// Guide carries manual instructions when the run degraded to hand filing.
	Guide string `json:"guide,omitempty"`
}

// Clone returns a deep copy so callers never share pointers with the store.
func (s RunStatus) Clone() RunStatus {
	out := s
	if s.Progress != nil {
		p := *s.Progress
		out.Progress = &p
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	return out
}

// ProgressValue returns the progress or zero when unset.
func (s RunStatus) ProgressValue() float64 {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}
