package callback

import (
	"strings"
	"time"

	"github.com/mapproject/media-pipeline/internal/job"
)

// Payload is the terminal notification delivered to the client's callback
// URL.
type Payload struct {
	JobID       string  `json:"job_id"`
	Status      string  `json:"status"`
	SubmittedAt string  `json:"submitted_at"`
	CompletedAt string  `json:"completed_at"`
	Results     Results `json:"results"`
	Error       *string `json:"error"`
}

// Results groups artifact URLs by category.
type Results struct {
	Captions     map[string]string `json:"captions"`
	Translations map[string]string `json:"translations"`
	Chapters     map[string]string `json:"chapters"`
}

// BuildPayload derives the notification from the persisted job record.
// It reads only the record, so invoking it again for the same job always
// produces the same payload (replay-safe).
func BuildPayload(j *job.Job) Payload {
	results := Results{
		Captions:     make(map[string]string),
		Translations: make(map[string]string),
		Chapters:     make(map[string]string),
	}
	for key, url := range j.Results {
		category, name, ok := strings.Cut(key, "/")
		if !ok {
			continue
		}
		switch category {
		case "captions":
			results.Captions[name] = url
		case "translations":
			results.Translations[name] = url
		case "chapters":
			results.Chapters[name] = url
		}
	}

	p := Payload{
		JobID:       j.ID,
		Status:      string(j.Status),
		SubmittedAt: j.SubmittedAt.UTC().Format(time.RFC3339),
		Results:     results,
	}
	if !j.CompletedAt.IsZero() {
		p.CompletedAt = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	if j.Error != "" {
		errMsg := j.Error
		p.Error = &errMsg
	}
	return p
}
