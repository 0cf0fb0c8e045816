package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/escribajus/hearing-transcription/internal/types"
)

// DeepgramBackend calls a Deepgram-style endpoint with native diarization,
// punctuation and utterance grouping enabled. Provider speaker indexes are
// mapped to stable placeholder labels.
type DeepgramBackend struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewDeepgramBackend creates the diarizing backend
func NewDeepgramBackend(baseURL, apiKey, model string) *DeepgramBackend {
	if model == "" {
		model = "nova-2"
	}
	return &DeepgramBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

// Name returns the engine identifier
func (d *DeepgramBackend) Name() string {
	return types.EngineDeepgram
}

type deepgramWord struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    int     `json:"speaker"`
}

type deepgramUtterance struct {
	Speaker    int            `json:"speaker"`
	Transcript string         `json:"transcript"`
	Start      float64        `json:"start"`
	End        float64        `json:"end"`
	Words      []deepgramWord `json:"words"`
}

type deepgramResponse struct {
	Results struct {
		Utterances []deepgramUtterance `json:"utterances"`
		Channels   []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends the raw audio body with diarization query parameters and
// maps the returned utterances in provider order.
func (d *DeepgramBackend) Transcribe(ctx context.Context, audio []byte, contentType string, opts Options) ([]types.RawUtterance, error) {
	if d.baseURL == "" || d.apiKey == "" {
		return nil, fmt.Errorf("deepgram: %w: endpoint and API key are required", ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("model", d.model)
	if opts.Language != "" {
		params.Set("language", opts.Language)
	}
	params.Set("diarize", "true")
	params.Set("punctuate", "true")
	params.Set("utterances", "true")
	params.Set("smart_format", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.baseURL+"/v1/listen?"+params.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("deepgram: %v", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("deepgram returned HTTP %d: %s", resp.StatusCode, truncate(string(b), 500))
	}

	var dr deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("deepgram returned unparseable response: %v", err)
	}

	utterances := make([]types.RawUtterance, 0, len(dr.Results.Utterances))
	for _, u := range dr.Results.Utterances {
		text := strings.TrimSpace(u.Transcript)
		if text == "" {
			continue
		}
		raw := types.RawUtterance{
			Speaker: SpeakerLabel(u.Speaker),
			Text:    text,
			Start:   u.Start,
			End:     u.End,
		}
		for _, w := range u.Words {
			raw.Words = append(raw.Words, types.Word{
				Token:      w.Word,
				Start:      w.Start,
				End:        w.End,
				Confidence: w.Confidence,
				Speaker:    SpeakerLabel(w.Speaker),
			})
		}
		utterances = append(utterances, raw)
	}

	// Degraded mode: no grouped utterances but the channel alternative still
	// carries a transcript. Keep it as one zero-length utterance.
	if len(utterances) == 0 {
		if fallback := d.channelTranscript(&dr); fallback != "" {
			log.Printf("Deepgram returned no utterances, falling back to channel transcript (%d chars)", len(fallback))
			utterances = append(utterances, types.RawUtterance{
				Speaker: SpeakerLabel(0),
				Text:    fallback,
				Start:   0,
				End:     0,
			})
		}
	}

	return utterances, nil
}

func (d *DeepgramBackend) channelTranscript(dr *deepgramResponse) string {
	for _, ch := range dr.Results.Channels {
		for _, alt := range ch.Alternatives {
			if text := strings.TrimSpace(alt.Transcript); text != "" {
				return text
			}
		}
	}
	return ""
}
