package transcription

// submitRequest is the payload for creating a transcript.
type submitRequest struct {
	MediaURL     string `json:"media_url"`
	AutoChapters bool   `json:"auto_chapters"`
}

// transcriptStatus values returned by the provider.
const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

// wordTiming is a word-level timestamp in milliseconds.
type wordTiming struct {
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Text  string `json:"text"`
}

// chapterMarker is a provider-detected chapter in milliseconds.
type chapterMarker struct {
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Headline string `json:"headline"`
}

// transcriptResponse is the provider's transcript resource.
type transcriptResponse struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Words    []wordTiming    `json:"words,omitempty"`
	Chapters []chapterMarker `json:"chapters,omitempty"`
	Error    string          `json:"error,omitempty"`
}
