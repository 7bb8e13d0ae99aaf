package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

type handler struct {
	svc     *toolutil.Service
	version string
}

type transcriptRequest struct {
	URL   string `json:"url"`
	Model string `json:"model"`
}

type transcriptResponse struct {
	*transcript.Result
	Text      string `json:"text"`
	Filename  string `json:"filename"`
	HistoryID string `json:"history_id,omitempty"`
	Cached    bool   `json:"cached,omitempty"`
}

func newTranscriptResponse(res *transcript.Result, historyID string, cached bool) transcriptResponse {
	return transcriptResponse{
		Result:    res,
		Text:      res.Text(),
		Filename:  transcript.ExportFilename(res),
		HistoryID: historyID,
		Cached:    cached,
	}
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, map[string]any{
		"status":  "ok",
		"version": h.version,
		"history": h.svc.History != nil,
		"explain": h.svc.Explainer.Enabled(),
	}, http.StatusOK)
}

func (h *handler) models(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, map[string]any{"models": h.svc.ModelTable()}, http.StatusOK)
}

func (h *handler) createTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		jsonError(w, "url is required", http.StatusBadRequest)
		return
	}
	run, err := h.svc.Transcribe(r.Context(), req.URL, req.Model)
	if err != nil {
		transcriptError(w, err)
		return
	}
	jsonResponse(w, newTranscriptResponse(run.Result, run.HistoryID, run.Cached), http.StatusOK)
}

func (h *handler) explain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL   string `json:"url"`
		Text  string `json:"text"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	exp, err := h.svc.Explain(r.Context(), req.URL, req.Text, req.Model)
	switch {
	case err == nil:
		jsonResponse(w, exp, http.StatusOK)
	case errors.Is(err, engine.ErrNoLLM):
		jsonError(w, "concept explanation is not configured", http.StatusServiceUnavailable)
	case errors.Is(err, transcript.ErrTranscriptTooShort):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		var te *transcript.Error
		if errors.As(err, &te) {
			transcriptError(w, err)
			return
		}
		if req.URL == "" && req.Text == "" {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, "explanation failed", http.StatusBadGateway)
	}
}

func (h *handler) listTranscripts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.HistoryList(r.Context(), limit)
	if err != nil {
		historyError(w, err)
		return
	}
	if items == nil {
		items = []transcript.HistorySummary{}
	}
	jsonResponse(w, map[string]any{"items": items}, http.StatusOK)
}

func (h *handler) getTranscript(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.HistoryGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		historyError(w, err)
		return
	}
	jsonResponse(w, newTranscriptResponse(rec.Result(), rec.ID, false), http.StatusOK)
}

func (h *handler) downloadTranscript(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.HistoryGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		historyError(w, err)
		return
	}
	res := rec.Result()
	timestamps, _ := strconv.ParseBool(r.URL.Query().Get("timestamps"))
	body := transcript.Export(res, transcript.ExportOptions{Timestamps: timestamps})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", transcript.ExportFilename(res)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// transcriptError maps an error kind to an HTTP status with a user-facing message.
func transcriptError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch transcript.KindOf(err) {
	case transcript.KindInvalidVideo, transcript.KindInvalidModel:
		status = http.StatusBadRequest
	}
	if errors.Is(err, context.Canceled) {
		status = 499
	}
	jsonError(w, transcript.UserMessage(err), status)
}

func historyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transcript.ErrNotFound):
		jsonError(w, "transcript not found", http.StatusNotFound)
	case errors.Is(err, toolutil.ErrHistoryDisabled):
		jsonError(w, err.Error(), http.StatusNotFound)
	default:
		jsonError(w, "history unavailable", http.StatusInternalServerError)
	}
}

func jsonResponse(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonResponse(w, map[string]string{"error": msg}, status)
}
