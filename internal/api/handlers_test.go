package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
	"github.com/xkilldash9x/rightsguard-cli/internal/config"
	"github.com/xkilldash9x/rightsguard-cli/internal/orchestrator"
)

type mockAutomation struct {
	mock.Mock
}

func (m *mockAutomation) Start(ctx context.Context, req schemas.AppealRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAutomation) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockAutomation) Status() schemas.RunStatus {
	return m.Called().Get(0).(schemas.RunStatus)
}

func (m *mockAutomation) SignalVerificationComplete() error {
	return m.Called().Error(0)
}

func (m *mockAutomation) CheckEnvironment(ctx context.Context) string {
	return m.Called(ctx).String(0)
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		ListenAddr:     "127.0.0.1:0",
		AllowedOrigins: []string{"http://localhost:*"},
		RequestTimeout: 5 * time.Second,
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func runningStatus() schemas.RunStatus {
	p := 0.0
	return schemas.RunStatus{IsRunning: true, RunID: "run-1", CurrentStep: orchestrator.StepInitializing, Progress: &p}
}

func TestStart(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		m := new(mockAutomation)
		want := schemas.AppealRequest{InfringingURL: "https://v.example.com/x"}
		m.On("Start", mock.Anything, want).Return(nil).Once()
		m.On("Status").Return(runningStatus())

		rec := do(t, NewRouter(testConfig(), m, nil, zap.NewNop()), http.MethodPost, "/automation/start", `{"infringingUrl":"https://v.example.com/x"}`)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		var got schemas.RunStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, got.IsRunning)
		assert.Equal(t, "run-1", got.RunID)
		m.AssertExpectations(t)
	})

	t.Run("conflict while running", func(t *testing.T) {
		m := new(mockAutomation)
		m.On("Start", mock.Anything, mock.Anything).Return(orchestrator.ErrAlreadyRunning)

		rec := do(t, NewRouter(testConfig(), m, nil, zap.NewNop()), http.MethodPost, "/automation/start", `{"infringingUrl":"https://v.example.com/x"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "already running")
	})

	t.Run("validation failure never reaches the orchestrator", func(t *testing.T) {
		m := new(mockAutomation)

		rec := do(t, NewRouter(testConfig(), m, nil, zap.NewNop()), http.MethodPost, "/automation/start", `{"infringingUrl":"not a url"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "infringingUrl", body.Field)
		assert.Equal(t, "infringingUrl must be an absolute URL", body.Error)
		m.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		m := new(mockAutomation)
		rec := do(t, NewRouter(testConfig(), m, nil, zap.NewNop()), http.MethodPost, "/automation/start", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "malformed")
	})

	t.Run("unexpected error", func(t *testing.T) {
		m := new(mockAutomation)
		m.On("Start", mock.Anything, mock.Anything).Return(errors.New("boom"))

		rec := do(t, NewRouter(testConfig(), m, nil, zap.NewNop()), http.MethodPost, "/automation/start", `{"infringingUrl":"https://v.example.com/x"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestStopStatusContinue(t *testing.T) {
	stopped := schemas.RunStatus{CurrentStep: orchestrator.StepStopped, Error: "stopped by user"}

	m := new(mockAutomation)
	m.On("Stop", mock.Anything).Return(errors.New("kill failed")).Once()
	m.On("Status").Return(stopped)
	m.On("SignalVerificationComplete").Return(nil).Once()
	r := NewRouter(testConfig(), m, nil, zap.NewNop())

	rec := do(t, r, http.MethodPost, "/automation/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code, "a cleanup error does not fail the stop")
	assert.Contains(t, rec.Body.String(), "stopped by user")

	rec = do(t, r, http.MethodGet, "/automation/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = do(t, r, http.MethodPost, "/automation/continue", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"signaled":true}`, rec.Body.String())

	m.AssertExpectations(t)
}

func TestContinueFailure(t *testing.T) {
	m := new(mockAutomation)
	m.On("SignalVerificationComplete").Return(errors.New("read-only file system"))

	rec := do(t, NewRouter(testConfig(), m, nil, zap.NewNop()), http.MethodPost, "/automation/continue", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEnvironment(t *testing.T) {
	m := new(mockAutomation)
	m.On("CheckEnvironment", mock.Anything).Return("[ OK ] browser: /usr/bin/chrome\nEnvironment ready.\n")

	rec := do(t, NewRouter(testConfig(), m, nil, zap.NewNop()), http.MethodGet, "/environment", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, rec.Body.String(), "Environment ready.")
}

func TestCORSPreflight(t *testing.T) {
	m := new(mockAutomation)
	r := NewRouter(testConfig(), m, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/automation/start", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	m := new(mockAutomation)
	m.On("Status").Return(schemas.RunStatus{})
	s := NewServer(testConfig(), m, nil, zap.NewNop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/automation/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
