package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
)

// ErrPreconditionMissing marks input that makes an appeal impossible to file,
// such as a missing profile or no identity documents.
var ErrPreconditionMissing = errors.New("precondition missing")

// ValidationError reports which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Visible captions of the appeal form controls.
const (
	labelName          = "真实姓名"
	labelPhone         = "手机号"
	labelEmail         = "邮箱"
	labelIDNumber      = "证件号码"
	labelIDUpload      = "证件照片"
	labelOwner         = "权利人"
	labelWorkType      = "著作类型"
	labelWorkName      = "著作名称"
	labelRegion        = "所在地区"
	labelEquityType    = "权利类型"
	labelWorkStart     = "作品创作时间"
	labelWorkEnd       = "作品完成时间"
	labelAuthStart     = "授权开始时间"
	labelAuthEnd       = "授权结束时间"
	labelAuthUpload    = "授权证明"
	labelProofUpload   = "作品证明"
	labelInfringingURL = "侵权链接"
	labelOriginalURL   = "原创链接"
	labelComplaint     = "侵权描述"
	labelDeclaration   = "本人保证"
	labelNext          = "下一步"
)

// Options is the fixed configuration a Generator applies to every workflow.
type Options struct {
	TargetURL     string
	DebugURL      string
	ComplaintText string
	// FilesRoot anchors relative document paths; "~" is expanded.
	FilesRoot string
	// WaitingPath and CompletedPath are the gate sentinels the verification stage uses.
	WaitingPath         string
	CompletedPath       string
	VerificationTimeout time.Duration
}

// Generator builds workflows. Its output depends only on its options and the
// arguments to Generate, apart from the file existence checks.
type Generator struct {
	opts Options
	stat func(string) (os.FileInfo, error)
}

// NewGenerator returns a generator with the given options.
func NewGenerator(opts Options) *Generator {
	if opts.VerificationTimeout <= 0 {
		opts.VerificationTimeout = 10 * time.Minute
	}
	return &Generator{opts: opts, stat: os.Stat}
}

// Generate builds the staged workflow for one appeal. The rights-holder stage
// is present if and only if asset is non-nil.
func (g *Generator) Generate(profile *schemas.Profile, asset *schemas.IPAsset, req schemas.AppealRequest) (*Workflow, error) {
	if profile == nil {
		return nil, &ValidationError{Field: "profile", Reason: "no profile configured", Err: ErrPreconditionMissing}
	}
	if req.InfringingURL == "" {
		return nil, &ValidationError{Field: "infringingUrl", Reason: "must not be empty", Err: ErrPreconditionMissing}
	}
	if len(profile.IDCardFiles) == 0 {
		return nil, &ValidationError{Field: "idCardFiles", Reason: "profile has no identity documents", Err: ErrPreconditionMissing}
	}

	idFiles, err := g.resolveAll("idCardFiles", profile.IDCardFiles)
	if err != nil {
		return nil, err
	}

	w := &Workflow{
		TargetURL: g.opts.TargetURL,
		DebugURL:  g.opts.DebugURL,
		Gate: Gate{
			WaitingPath:   g.opts.WaitingPath,
			CompletedPath: g.opts.CompletedPath,
			Ceiling:       g.opts.VerificationTimeout,
		},
	}

	w.Stages = append(w.Stages, Stage{
		Kind: StageIdentity,
		Fields: []Field{
			text("name", labelName, profile.Name),
			text("phone", labelPhone, profile.Phone),
			text("email", labelEmail, profile.Email),
			text("idCardNumber", labelIDNumber, profile.IDCardNumber),
		},
		Uploads: []Upload{{Name: "idCardFiles", Label: labelIDUpload, Files: idFiles}},
	})

	w.Stages = append(w.Stages, Stage{Kind: StageVerification, Next: labelNext})

	if asset != nil {
		stage, err := g.rightsHolderStage(asset)
		if err != nil {
			return nil, err
		}
		w.Stages = append(w.Stages, stage)
	}

	appeal := Stage{
		Kind:       StageAppeal,
		Fields:     []Field{text("infringingUrl", labelInfringingURL, req.InfringingURL)},
		Checkboxes: []string{labelDeclaration},
	}
	if req.OriginalURL != "" {
		appeal.Fields = append(appeal.Fields, text("originalUrl", labelOriginalURL, req.OriginalURL))
	}
	appeal.Fields = append(appeal.Fields, text("complaint", labelComplaint, g.opts.ComplaintText))
	w.Stages = append(w.Stages, appeal)

	return w, nil
}

func (g *Generator) rightsHolderStage(asset *schemas.IPAsset) (Stage, error) {
	authFiles, err := g.resolveAll("authFiles", asset.AuthFiles)
	if err != nil {
		return Stage{}, err
	}
	proofFiles, err := g.resolveAll("workProofFiles", asset.ProofFiles)
	if err != nil {
		return Stage{}, err
	}

	fields := []Field{
		text("owner", labelOwner, asset.Owner),
		{Name: "workType", Label: labelWorkType, Kind: FieldSelect, Value: asset.WorkType},
		text("workName", labelWorkName, asset.WorkName),
		text("region", labelRegion, asset.Region),
		text("equityType", labelEquityType, asset.EquityType),
		text("workStartDate", labelWorkStart, asset.WorkStartDate),
		text("workEndDate", labelWorkEnd, asset.WorkEndDate),
	}
	if asset.IsAgent {
		fields = append(fields,
			text("authStartDate", labelAuthStart, asset.AuthStartDate),
			text("authEndDate", labelAuthEnd, asset.AuthEndDate),
		)
	}

	return Stage{
		Kind:   StageRightsHolder,
		Fields: fields,
		Uploads: []Upload{
			{Name: "authFiles", Label: labelAuthUpload, Files: authFiles},
			{Name: "workProofFiles", Label: labelProofUpload, Files: proofFiles},
		},
		Next: labelNext,
	}, nil
}

// resolveAll maps stored paths to absolute, existing files.
func (g *Generator) resolveAll(field string, paths []string) ([]string, error) {
	root, err := homedir.Expand(g.opts.FilesRoot)
	if err != nil {
		return nil, fmt.Errorf("could not expand files root %q: %w", g.opts.FilesRoot, err)
	}

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, p)
		}
		abs, err = filepath.Abs(abs)
		if err != nil {
			return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("bad path %q", p), Err: err}
		}
		info, err := g.stat(abs)
		if err != nil {
			return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("file %s does not exist", abs), Err: ErrPreconditionMissing}
		}
		if info.IsDir() {
			return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("%s is a directory", abs), Err: ErrPreconditionMissing}
		}
		out = append(out, abs)
	}
	return out, nil
}

func text(name, label, value string) Field {
	return Field{Name: name, Label: label, Kind: FieldText, Value: value}
}
