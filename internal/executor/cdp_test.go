package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/rightsguard-cli/internal/workflow"
)

type failingTabs struct{ err error }

func (f failingTabs) OpenPage(ctx context.Context, url string) (target.ID, error) {
	return "", f.err
}

func (f failingTabs) AttachTarget(ctx context.Context, id target.ID) (context.Context, context.CancelFunc, error) {
	return nil, nil, f.err
}

type noopWaiter struct{}

func (noopWaiter) MarkWaiting() error                              { return nil }
func (noopWaiter) Wait(ctx context.Context, d time.Duration) error { return nil }

func TestCDPEngine_AttachFailure(t *testing.T) {
	e := NewCDPEngine(failingTabs{err: errors.New("connect: connection refused")}, noopWaiter{}, zaptest.NewLogger(t))
	assert.Equal(t, "cdp", e.Name())

	res, err := e.Run(context.Background(), testWorkflow(), nil)
	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
}

func TestStageActions(t *testing.T) {
	stage := workflow.Stage{
		Kind: workflow.StageRightsHolder,
		Fields: []workflow.Field{
			{Name: "owner", Label: "权利人", Kind: workflow.FieldText, Value: "Zhang"},
			{Name: "workType", Label: "著作类型", Kind: workflow.FieldSelect, Value: "视频"},
			{Name: "workEndDate", Label: "作品完成时间", Kind: workflow.FieldText, Value: ""},
		},
		Uploads:    []workflow.Upload{{Name: "authFiles", Label: "授权证明", Files: []string{"/tmp/a.pdf"}}, {Name: "none", Label: "x"}},
		Checkboxes: []string{"本人保证"},
		Next:       "下一步",
	}
	// two fields (empty one skipped), one upload, one checkbox, next click plus delay
	assert.Len(t, stageActions(stage, time.Millisecond), 6)
}

func TestExpressionsEscapeValues(t *testing.T) {
	expr := fillExpr("真实姓名", "O'Brien</script>")
	assert.Contains(t, expr, `'O\'Brien\x3c/script>'`)
	assert.NotContains(t, expr, "</script>")

	assert.Contains(t, selectExpr("著作类型", "视频"), ".el-select-dropdown__item")
	assert.Contains(t, clickExpr("button", "下一步"), "querySelectorAll('button')")
	assert.Equal(t,
		`//*[contains(concat(" ", @class, " "), " el-form-item ")][contains(., "授权证明")]//input[@type="file"]`,
		fileInputXPath("授权证明"))
}
