package workflow

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StageMarker prefixes the console line a rendered script prints on entering
// a stage. Engines scan their output for it to report progress.
const StageMarker = "[rightsguard] stage="

var scriptTmpl = template.Must(template.New("script").Funcs(template.FuncMap{
	"js":             EscapeJS,
	"marker":         func(k StageKind) string { return EscapeJS(StageMarker + string(k)) },
	"ms":             func(w *Workflow) int64 { return w.Gate.Ceiling.Milliseconds() },
	"isVerification": func(k StageKind) bool { return k == StageVerification },
}).Parse(`// Generated by rightsguard. Do not edit.
const { test, chromium } = require('@playwright/test');
const fs = require('fs');

async function fillField(page, label, value) {
  const item = page.locator('.el-form-item', { hasText: label }).first();
  await item.locator('input, textarea').first().fill(value);
}

async function selectOption(page, label, value) {
  const item = page.locator('.el-form-item', { hasText: label }).first();
  await item.locator('.el-select').first().click();
  await page.waitForTimeout(500);
  await page.locator('.el-select-dropdown__item', { hasText: value }).first().click();
}

async function upload(page, label, files) {
  const item = page.locator('.el-form-item', { hasText: label }).first();
  await item.locator('input[type=file]').first().setInputFiles(files);
  await page.waitForTimeout(1000);
}

async function waitForVerification(page, waitingFile, completedFile, ceilingMs) {
  fs.writeFileSync(waitingFile, 'waiting');
  const deadline = Date.now() + ceilingMs;
  while (!fs.existsSync(completedFile)) {
    if (Date.now() > deadline) {
      throw new Error('verification timed out');
    }
    await page.waitForTimeout(1000);
  }
  for (const f of [completedFile, waitingFile]) {
    if (fs.existsSync(f)) fs.unlinkSync(f);
  }
}

test('rightsguard appeal', async () => {
  const browser = await chromium.connectOverCDP('{{js .DebugURL}}', { timeout: 15000 });
  const context = browser.contexts()[0];
  const page = context.pages()[0] || await context.newPage();
  await page.goto('{{js .TargetURL}}', { timeout: 60000, waitUntil: 'networkidle' });
{{range .Stages}}
  console.log('{{marker .Kind}}');
{{- if isVerification .Kind}}
  await waitForVerification(page, '{{js $.Gate.WaitingPath}}', '{{js $.Gate.CompletedPath}}', {{ms $}});
{{- end}}
{{- range .Fields}}
{{- if eq .Kind "select"}}
  await selectOption(page, '{{js .Label}}', '{{js .Value}}');
{{- else}}
  await fillField(page, '{{js .Label}}', '{{js .Value}}');
{{- end}}
{{- end}}
{{- range .Uploads}}
  await upload(page, '{{js .Label}}', [{{range $i, $f := .Files}}{{if $i}}, {{end}}'{{js $f}}'{{end}}]);
{{- end}}
{{- range .Checkboxes}}
  await page.locator('.el-checkbox__label', { hasText: '{{js .}}' }).first().click();
{{- end}}
{{- if .Next}}
  await page.locator('button', { hasText: '{{js .Next}}' }).first().click();
  await page.waitForTimeout(2000);
{{- end}}
{{end}}
  console.log('{{marker "done"}}');
});
`))

// RenderScript renders w as a Playwright test that attaches to the debug
// endpoint. Every embedded value goes through EscapeJS.
func RenderScript(w *Workflow) (string, error) {
	var buf bytes.Buffer
	if err := scriptTmpl.Execute(&buf, w); err != nil {
		return "", fmt.Errorf("failed to render workflow script: %w", err)
	}
	return buf.String(), nil
}

// Manifest is the JSON form of w, written next to the script for diagnostics.
func Manifest(w *Workflow) ([]byte, error) {
	b, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow manifest: %w", err)
	}
	return b, nil
}

// ParseMarker extracts the stage name from an output line, if it carries one.
func ParseMarker(line string) (string, bool) {
	i := strings.Index(line, StageMarker)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimSpace(line[i+len(StageMarker):])
	if f := strings.Fields(rest); len(f) > 0 {
		return f[0], true
	}
	return "", false
}
