package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
)

const maxCaseLimit = 500

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.records.GetProfile(r.Context())
	if err != nil {
		h.logger.Error("Failed to load profile.", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, errors.New("no profile configured"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) saveProfile(w http.ResponseWriter, r *http.Request) {
	var p schemas.Profile
	if !decodeBody(w, r, &p) {
		return
	}
	saved, err := h.records.SaveProfile(r.Context(), p)
	if err != nil {
		h.logger.Error("Failed to save profile.", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handlers) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.records.ListIPAssets(r.Context())
	if err != nil {
		h.logger.Error("Failed to list assets.", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if assets == nil {
		assets = []schemas.IPAsset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *handlers) saveAsset(w http.ResponseWriter, r *http.Request) {
	var a schemas.IPAsset
	if !decodeBody(w, r, &a) {
		return
	}
	saved, err := h.records.SaveIPAsset(r.Context(), a)
	if err != nil {
		h.logger.Error("Failed to save asset.", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handlers) deleteAsset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("asset id must be a UUID"))
		return
	}
	deleted, err := h.records.DeleteIPAsset(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to delete asset.", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, errors.New("asset not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listCases(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxCaseLimit {
			writeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	cases, err := h.records.ListCases(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list cases.", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if cases == nil {
		cases = []schemas.CaseRecord{}
	}
	writeJSON(w, http.StatusOK, cases)
}
