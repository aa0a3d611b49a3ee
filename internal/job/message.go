package job

// MessageType distinguishes the first delivery of a job from stage
// continuation messages emitted by the orchestrator itself.
type MessageType string

const (
	// MessageIngress is the initial message produced by the gateway.
	MessageIngress MessageType = "ingress"
	// MessageContinuation schedules a specific stage for an existing job.
	MessageContinuation MessageType = "continuation"
)

// Message is the unit carried by the job queue. Ingress messages carry the
// full submission so the orchestrator can create the record if the gateway
// write was lost; continuation messages carry only the job ID and the stage
// to run.
type Message struct {
	// Type says whether this is an ingress or continuation message.
	Type MessageType `json:"type" validate:"required,oneof=ingress continuation"`
	// JobID references the job record.
	JobID string `json:"job_id" validate:"required"`
	// Stage is the stage to run. Required for continuation messages;
	// ignored on ingress (the orchestrator starts at caption).
	Stage Stage `json:"stage,omitempty"`

	// Ingress fields, unset on continuation messages.
	Source             Source   `json:"source,omitempty"`
	RequestedLanguages []string `json:"requested_languages,omitempty"`
	CallbackURL        string   `json:"callback_url,omitempty"`
}

// NewIngressMessage builds the initial queue message for a submitted job.
func NewIngressMessage(j *Job) Message {
	return Message{
		Type:               MessageIngress,
		JobID:              j.ID,
		Source:             j.Source,
		RequestedLanguages: j.RequestedLanguages,
		CallbackURL:        j.CallbackURL,
	}
}

// NewContinuationMessage builds a message scheduling stage for job id.
func NewContinuationMessage(jobID string, stage Stage) Message {
	return Message{
		Type:  MessageContinuation,
		JobID: jobID,
		Stage: stage,
	}
}
