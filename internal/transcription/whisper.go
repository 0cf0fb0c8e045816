package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/escribajus/hearing-transcription/internal/types"
)

// WhisperBackend calls an OpenAI-compatible speech-to-text endpoint. The
// provider has no native diarization, so every segment carries the same
// placeholder speaker and relabeling is left to the correction stage.
type WhisperBackend struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewWhisperBackend creates the segment-based backend
func NewWhisperBackend(baseURL, apiKey, model string) *WhisperBackend {
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

// Name returns the engine identifier
func (w *WhisperBackend) Name() string {
	return types.EngineWhisper
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

// Transcribe uploads the audio as multipart form data and maps the returned
// segments to placeholder-labeled utterances in provider order.
func (w *WhisperBackend) Transcribe(ctx context.Context, audio []byte, contentType string, opts Options) ([]types.RawUtterance, error) {
	if w.baseURL == "" || w.apiKey == "" {
		return nil, fmt.Errorf("whisper: %w: endpoint and API key are required", ErrNotConfigured)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", w.model); err != nil {
		return nil, fmt.Errorf("whisper: %v", err)
	}
	if opts.Language != "" {
		if err := mw.WriteField("language", opts.Language); err != nil {
			return nil, fmt.Errorf("whisper: %v", err)
		}
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("whisper: %v", err)
	}
	if err := mw.WriteField("timestamp_granularities[]", "segment"); err != nil {
		return nil, fmt.Errorf("whisper: %v", err)
	}
	fw, err := mw.CreateFormFile("file", "audio"+extensionForContentType(contentType))
	if err != nil {
		return nil, fmt.Errorf("whisper: %v", err)
	}
	if _, err := io.Copy(fw, bytes.NewReader(audio)); err != nil {
		return nil, fmt.Errorf("whisper: %v", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("whisper returned HTTP %d: %s", resp.StatusCode, truncate(string(b), 500))
	}

	var wr whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("whisper returned unparseable response: %v", err)
	}

	utterances := make([]types.RawUtterance, 0, len(wr.Segments))
	for _, seg := range wr.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		utterances = append(utterances, types.RawUtterance{
			Speaker: SpeakerLabel(0),
			Text:    text,
			Start:   seg.Start,
			End:     seg.End,
		})
	}

	// A non-empty transcript with no segments still counts: synthesize one
	// utterance spanning the whole duration rather than dropping it.
	if len(utterances) == 0 && strings.TrimSpace(wr.Text) != "" {
		utterances = append(utterances, types.RawUtterance{
			Speaker: SpeakerLabel(0),
			Text:    strings.TrimSpace(wr.Text),
			Start:   0,
			End:     wr.Duration,
		})
	}

	return utterances, nil
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	case "audio/mp4":
		return ".m4a"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	case "audio/opus":
		return ".opus"
	default:
		return ".mp3"
	}
}
