package transcription

import (
	"context"
	"errors"
	"fmt"

	"github.com/escribajus/hearing-transcription/internal/types"
)

// ErrNotConfigured marks a missing endpoint or credential. It is a setup
// problem, distinguishable from a provider-side failure.
var ErrNotConfigured = errors.New("transcription backend not configured")

// Options carries per-request transcription parameters
type Options struct {
	Language string
}

// Backend is a pluggable transcription provider. Implementations return the
// provider's utterances in the provider's order; timestamps are relative to
// the audio that was sent (the caller applies chunk offsets).
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, contentType string, opts Options) ([]types.RawUtterance, error)
}

// SpeakerLabel maps a provider speaker index to the stable placeholder label
// the correction stage later rewrites.
func SpeakerLabel(index int) string {
	return fmt.Sprintf("SPEAKER_%02d", index)
}

// truncate bounds upstream error bodies before they are embedded in messages
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
