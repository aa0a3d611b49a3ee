// Package server provides the HTTP gateway for the media pipeline.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// SubmitVideoRequest is the HTTP request body for submitting a video.
// Exactly one of VideoURL and UploadRef must be set.
type SubmitVideoRequest struct {
	// VideoURL is a publicly reachable URL of the source media.
	VideoURL string `json:"video_url" validate:"omitempty,url"`
	// UploadRef references media previously placed in object storage.
	UploadRef string `json:"upload_ref" validate:"omitempty"`
	// PreferredLanguages lists language codes, native language first.
	PreferredLanguages []string `json:"preferred_languages" validate:"required,min=1,dive,required"`
	// CallbackURL receives the terminal notification.
	CallbackURL string `json:"callback_url" validate:"omitempty,url"`
}

// SubmitVideoResponse is the HTTP response after accepting a submission.
type SubmitVideoResponse struct {
	// JobID is the unique identifier for the created job.
	JobID string `json:"job_id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// StageResponse describes one pipeline stage's progress.
type StageResponse struct {
	// State is the stage state.
	State string `json:"state"`
	// Attempts is how many times the stage has been claimed.
	Attempts int `json:"attempts"`
	// LastError is the most recent failure message, if any.
	LastError string `json:"last_error,omitempty"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// JobID is the unique identifier for the job.
	JobID string `json:"job_id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Stages maps each pipeline stage to its progress.
	Stages map[string]StageResponse `json:"stages"`
	// Results maps result keys to artifact URLs.
	Results map[string]string `json:"results,omitempty"`
	// Error contains the terminal error message if the job failed.
	Error string `json:"error,omitempty"`
	// SubmittedAt is the RFC 3339 submission time.
	SubmittedAt string `json:"submitted_at"`
	// CompletedAt is the RFC 3339 completion time, if terminal.
	CompletedAt string `json:"completed_at,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
