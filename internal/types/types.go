package types

import "time"

// Job status constants
const (
	StatusUploading    = "uploading"
	StatusTranscribing = "transcribing"
	StatusFormatting   = "formatting"
	StatusCompleted    = "completed"
	StatusError        = "error"
)

// Transcription engine constants
const (
	EngineWhisper  = "whisper"
	EngineDeepgram = "deepgram"
)

// Media kind constants
const (
	MediaAudio = "audio"
	MediaVideo = "video"
)

// IsTerminalStatus reports whether a job in this status will never move again.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusError
}

// ValidEngine reports whether the engine name is one of the supported backends.
func ValidEngine(engine string) bool {
	return engine == EngineWhisper || engine == EngineDeepgram
}

// Job represents one transcription job and its lifecycle state
type Job struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Glossary  string    `json:"glossary,omitempty"`
	Engine    string    `json:"engine"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	MediaPath string    `json:"media_path"`
	MediaKind string    `json:"media_kind"`
	MediaSize int64     `json:"media_size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Word is word-level detail attached to an utterance when the backend provides it
type Word struct {
	Token      string  `json:"token"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Utterance is one contiguous span of speech attributed to a speaker
type Utterance struct {
	ID        int64   `json:"id"`
	JobID     string  `json:"job_id"`
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Words     []Word  `json:"words,omitempty"`
	SortOrder int     `json:"sort_order"`
}

// RawUtterance is a backend result item before persistence. Timestamps are
// absolute within the whole recording (chunk offsets already applied).
type RawUtterance struct {
	Speaker string
	Text    string
	Start   float64
	End     float64
	Words   []Word
}
