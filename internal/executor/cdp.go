package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/internal/browser"
	"github.com/xkilldash9x/rightsguard-cli/internal/workflow"
)

// TabProvider opens and attaches to tabs of the live browser.
type TabProvider interface {
	PageOpener
	AttachTarget(ctx context.Context, id target.ID) (context.Context, context.CancelFunc, error)
}

// VerificationWaiter is the gate as seen by an in-process engine.
type VerificationWaiter interface {
	MarkWaiting() error
	Wait(ctx context.Context, ceiling time.Duration) error
}

// CDPEngine drives the workflow in-process over the DevTools protocol.
type CDPEngine struct {
	tabs      TabProvider
	gate      VerificationWaiter
	logger    *zap.Logger
	stepDelay time.Duration
}

// NewCDPEngine returns an engine that fills the form through chromedp.
func NewCDPEngine(tabs TabProvider, gate VerificationWaiter, logger *zap.Logger) *CDPEngine {
	return &CDPEngine{
		tabs:      tabs,
		gate:      gate,
		logger:    logger.Named("cdp_engine"),
		stepDelay: 2 * time.Second,
	}
}

func (e *CDPEngine) Name() string { return "cdp" }

// Run implements Engine. The tab is left open for the human to review and submit.
// On failure the tab's console transcript becomes the result output.
func (e *CDPEngine) Run(ctx context.Context, w *workflow.Workflow, report ProgressFunc) (Result, error) {
	id, err := e.tabs.OpenPage(ctx, w.TargetURL)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	tabCtx, cancel, err := e.tabs.AttachTarget(ctx, id)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	defer cancel()

	rec := browser.NewConsoleRecorder(tabCtx, e.logger)
	if err := rec.Start(); err != nil {
		e.logger.Debug("Console recording unavailable.", zap.Error(err))
	}
	defer rec.Stop()

	res, err := e.fill(ctx, tabCtx, w, report)
	if err != nil {
		res.Output = rec.Transcript()
	}
	return res, err
}

func (e *CDPEngine) fill(ctx, tabCtx context.Context, w *workflow.Workflow, report ProgressFunc) (Result, error) {
	if err := chromedp.Run(tabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("page did not load: %w", err)
	}

	for _, stage := range w.Stages {
		if report != nil {
			report(string(stage.Kind))
		}
		if stage.Kind == workflow.StageVerification {
			if err := e.gate.MarkWaiting(); err != nil {
				return Result{ExitCode: 1}, err
			}
			if err := e.gate.Wait(ctx, w.Gate.Ceiling); err != nil {
				return Result{ExitCode: 1}, err
			}
		}
		if err := chromedp.Run(tabCtx, stageActions(stage, e.stepDelay)...); err != nil {
			return Result{ExitCode: 1}, fmt.Errorf("stage %s: %w", stage.Kind, err)
		}
		e.logger.Debug("Stage complete.", zap.String("stage", string(stage.Kind)))
	}
	if report != nil {
		report("done")
	}
	return Result{}, nil
}

// stageActions translates one stage into chromedp actions.
func stageActions(s workflow.Stage, delay time.Duration) []chromedp.Action {
	var actions []chromedp.Action
	for _, f := range s.Fields {
		if f.Value == "" {
			continue
		}
		expr := fillExpr(f.Label, f.Value)
		if f.Kind == workflow.FieldSelect {
			expr = selectExpr(f.Label, f.Value)
		}
		actions = append(actions, evalTrue(expr, f.Label))
	}
	for _, u := range s.Uploads {
		if len(u.Files) == 0 {
			continue
		}
		actions = append(actions, chromedp.SetUploadFiles(fileInputXPath(u.Label), u.Files, chromedp.BySearch))
	}
	for _, c := range s.Checkboxes {
		actions = append(actions, evalTrue(clickExpr(".el-checkbox__label", c), c))
	}
	if s.Next != "" {
		actions = append(actions, evalTrue(clickExpr("button", s.Next), s.Next), chromedp.Sleep(delay))
	}
	return actions
}

// evalTrue runs expr and fails when it does not report success.
func evalTrue(expr, what string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var ok bool
		if err := chromedp.Evaluate(expr, &ok).Do(ctx); err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("control %q not found", what)
		}
		return nil
	})
}

const findItemJS = `function(label) {
  return Array.from(document.querySelectorAll('.el-form-item')).find(function(el) { return el.textContent.indexOf(label) >= 0; });
}`

func fillExpr(label, value string) string {
	return fmt.Sprintf(`(function() {
  var item = (%s)('%s');
  if (!item) return false;
  var input = item.querySelector('input, textarea');
  if (!input) return false;
  var setter = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(input), 'value').set;
  setter.call(input, '%s');
  input.dispatchEvent(new Event('input', { bubbles: true }));
  input.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`, findItemJS, workflow.EscapeJS(label), workflow.EscapeJS(value))
}

func selectExpr(label, value string) string {
	return fmt.Sprintf(`(function() {
  var item = (%s)('%s');
  if (!item) return false;
  var sel = item.querySelector('.el-select');
  if (sel) sel.click();
  var opt = Array.from(document.querySelectorAll('.el-select-dropdown__item')).find(function(el) { return el.textContent.indexOf('%s') >= 0; });
  if (!opt) return false;
  opt.click();
  return true;
})()`, findItemJS, workflow.EscapeJS(label), workflow.EscapeJS(value))
}

func clickExpr(selector, text string) string {
	return fmt.Sprintf(`(function() {
  var el = Array.from(document.querySelectorAll('%s')).find(function(el) { return el.textContent.indexOf('%s') >= 0; });
  if (!el) return false;
  el.click();
  return true;
})()`, workflow.EscapeJS(selector), workflow.EscapeJS(text))
}

// fileInputXPath finds the file input inside the form item captioned label.
// Labels are fixed captions and never contain double quotes.
func fileInputXPath(label string) string {
	return fmt.Sprintf(`//*[contains(concat(" ", @class, " "), " el-form-item ")][contains(., "%s")]//input[@type="file"]`, label)
}
