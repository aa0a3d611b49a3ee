package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mapproject/media-pipeline/internal/job"
	"github.com/mapproject/media-pipeline/internal/translation"
)

// Handlers contains the HTTP handlers for the gateway.
type Handlers struct {
	service   *job.Service
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// SubmitVideo handles POST /api/videos requests.
func (h *Handlers) SubmitVideo(w http.ResponseWriter, r *http.Request) {
	var req SubmitVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	source, err := sourceFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	for _, lang := range req.PreferredLanguages {
		if !translation.IsSupported(lang) {
			writeError(w, http.StatusBadRequest, "unsupported language: "+lang, "UNSUPPORTED_LANGUAGE")
			return
		}
	}

	input := job.SubmitInput{
		JobID:              uuid.NewString(),
		Source:             source,
		RequestedLanguages: req.PreferredLanguages,
		CallbackURL:        req.CallbackURL,
	}

	created, err := h.service.Submit(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to submit job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to submit job", "SUBMIT_FAILED")
		return
	}

	h.logger.Info("job accepted",
		slog.String("job_id", created.ID),
		slog.String("source_type", string(created.Source.Type)),
		slog.Any("languages", created.RequestedLanguages),
	)

	writeJSON(w, http.StatusAccepted, SubmitVideoResponse{
		JobID:  created.ID,
		Status: string(created.Status),
	})
}

// GetJob handles GET /api/jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.service.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, jobResponse(found))
}

// CancelJob handles POST /api/jobs/{id}/cancel requests.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	err := h.service.Cancel(r.Context(), jobID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "job already finished", "ALREADY_TERMINAL")
	default:
		h.logger.Error("failed to cancel job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel job", "CANCEL_FAILED")
	}
}

func sourceFromRequest(req SubmitVideoRequest) (job.Source, error) {
	switch {
	case req.VideoURL != "" && req.UploadRef != "":
		return job.Source{}, errors.New("provide either video_url or upload_ref, not both")
	case req.VideoURL != "":
		return job.Source{Type: job.SourceURL, Value: req.VideoURL}, nil
	case req.UploadRef != "":
		return job.Source{Type: job.SourceUpload, Value: req.UploadRef}, nil
	default:
		return job.Source{}, errors.New("one of video_url or upload_ref is required")
	}
}

func jobResponse(j *job.Job) JobResponse {
	stages := make(map[string]StageResponse, len(j.StageState))
	for stage, st := range j.StageState {
		stages[string(stage)] = StageResponse{
			State:     string(st.State),
			Attempts:  st.Attempts,
			LastError: st.LastError,
		}
	}

	resp := JobResponse{
		JobID:       j.ID,
		Status:      string(j.Status),
		Stages:      stages,
		Results:     j.Results,
		Error:       j.Error,
		SubmittedAt: j.SubmittedAt.UTC().Format(time.RFC3339),
	}
	if !j.CompletedAt.IsZero() {
		resp.CompletedAt = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
