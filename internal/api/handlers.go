package api

import (
	"errors"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
	"github.com/xkilldash9x/rightsguard-cli/internal/orchestrator"
	"github.com/xkilldash9x/rightsguard-cli/internal/validation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 64 << 10

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type handlers struct {
	automation schemas.Automation
	records    schemas.Records
	logger     *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: err.Error()}
	var verr *validation.Error
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	writeJSON(w, status, body)
}

// decodeBody reads and validates a JSON body into v. On failure it writes the
// 400 response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("failed to read request body"))
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return false
	}
	if err := validation.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	var req schemas.AppealRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.automation.Start(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, h.automation.Status())
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err)
	default:
		h.logger.Error("Failed to start automation.", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	if err := h.automation.Stop(r.Context()); err != nil {
		// The run is stopped either way; the error only concerns browser cleanup.
		h.logger.Warn("Stop completed with errors.", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, h.automation.Status())
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.automation.Status())
}

func (h *handlers) signalContinue(w http.ResponseWriter, _ *http.Request) {
	if err := h.automation.SignalVerificationComplete(); err != nil {
		h.logger.Error("Failed to signal verification.", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"signaled": true})
}

func (h *handlers) environment(w http.ResponseWriter, r *http.Request) {
	report := h.automation.CheckEnvironment(r.Context())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report)
}
