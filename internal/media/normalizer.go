package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSizeCeiling is the per-request payload limit of the transcription
// providers. Anything larger is transcoded and, if still too big, chunked.
const DefaultSizeCeiling = 24 * 1024 * 1024

var videoExtensions = []string{".mp4", ".mkv", ".mov", ".avi", ".webm", ".wmv", ".mpeg", ".mpg"}

var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".opus": "audio/opus",
}

// IsVideoExtension reports whether the file extension names a video container
func IsVideoExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, v := range videoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// IsSupportedExtension reports whether uploads with this extension are accepted
func IsSupportedExtension(ext string) bool {
	if IsVideoExtension(ext) {
		return true
	}
	_, ok := audioContentTypes[strings.ToLower(ext)]
	return ok
}

// ContentTypeForExtension infers the MIME type from a file extension
func ContentTypeForExtension(ext string) string {
	if ct, ok := audioContentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Fetch retrieves the raw media bytes for a reference. HTTP(S) references are
// downloaded; anything else is treated as a local path. A non-2xx response is
// fatal to the pipeline run.
func Fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build download request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download media: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("media download returned HTTP %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read media body: %v", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read media file: %v", err)
	}
	return data, nil
}

// Normalizer converts uploaded media into a compressed mono audio stream
// the transcription providers accept
type Normalizer struct {
	tempDir     string
	sizeCeiling int64
}

// NewNormalizer creates a normalizer writing temp files under tempDir
func NewNormalizer(tempDir string, sizeCeiling int64) *Normalizer {
	if sizeCeiling <= 0 {
		sizeCeiling = DefaultSizeCeiling
	}
	return &Normalizer{tempDir: tempDir, sizeCeiling: sizeCeiling}
}

// SizeCeiling returns the provider payload ceiling in bytes
func (n *Normalizer) SizeCeiling() int64 {
	return n.sizeCeiling
}

// NeedsConversion reports whether the input must be transcoded before it can
// be sent to a provider: video containers always, audio only when oversized.
func (n *Normalizer) NeedsConversion(size int64, ext string) bool {
	return IsVideoExtension(ext) || size > n.sizeCeiling
}

// Normalize returns audio bytes plus their content type. Recognized video
// containers and oversized audio are transcoded to mono 16kHz 64kbps MP3;
// everything else passes through unchanged.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, ext string) ([]byte, string, error) {
	if !n.NeedsConversion(int64(len(data)), ext) {
		return data, ContentTypeForExtension(ext), nil
	}
	converted, err := n.convert(ctx, data, ext)
	if err != nil {
		return nil, "", err
	}
	return converted, "audio/mpeg", nil
}

// convert runs ffmpeg over temp files and guarantees their removal on every path
func (n *Normalizer) convert(ctx context.Context, data []byte, ext string) ([]byte, error) {
	id := uuid.New().String()
	inputPath := filepath.Join(n.tempDir, fmt.Sprintf("convert_%s%s", id, ext))
	outputPath := filepath.Join(n.tempDir, fmt.Sprintf("convert_%s.mp3", id))
	defer os.Remove(inputPath)
	defer os.Remove(outputPath)

	if err := os.WriteFile(inputPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp input: %v", err)
	}

	ffctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	cmd := ffmpegCommand(ffctx,
		"-i", inputPath,
		"-vn",           // Drop any video stream
		"-ac", "1",      // Mono
		"-ar", "16000",  // 16kHz sample rate
		"-b:a", "64k",   // Fixed bitrate
		"-f", "mp3",
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg conversion failed: %v\nOutput: %s", err, string(output))
	}

	result, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted audio: %v", err)
	}
	return result, nil
}
