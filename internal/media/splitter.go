package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultChunkSeconds is the fixed window length used when normalized audio
// still exceeds the provider payload ceiling.
const DefaultChunkSeconds = 600

func ffmpegCommand(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "ffmpeg", args...)
}

// ChunkCount returns how many fixed-length windows cover the duration
func ChunkCount(durationSeconds, windowSeconds float64) int {
	if durationSeconds <= 0 || windowSeconds <= 0 {
		return 0
	}
	return int(math.Ceil(durationSeconds / windowSeconds))
}

// ChunkOffset returns the start offset of the chunk at index, in seconds.
// Every timestamp a chunk's transcription returns must be shifted by this
// amount before it joins the job's global timeline.
func ChunkOffset(index int, windowSeconds float64) float64 {
	return float64(index) * windowSeconds
}

// Duration probes the audio duration in seconds with ffprobe. A zero or
// unprobeable duration is an error; the pipeline never guesses.
func (n *Normalizer) Duration(ctx context.Context, data []byte, ext string) (float64, error) {
	inputPath := filepath.Join(n.tempDir, fmt.Sprintf("probe_%s%s", uuid.New().String(), ext))
	defer os.Remove(inputPath)

	if err := os.WriteFile(inputPath, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write temp input: %v", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		inputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %v\nOutput: %s", err, string(output))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned unparseable duration %q: %v", strings.TrimSpace(string(output)), err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("media has zero duration")
	}
	return duration, nil
}

// Split partitions normalized audio into consecutive fixed-length windows,
// each independently re-encoded at the same rate/bitrate/channel count.
// Chunks come back in index order; temp files are removed on every path.
func (n *Normalizer) Split(ctx context.Context, data []byte, windowSeconds int) ([][]byte, error) {
	if windowSeconds <= 0 {
		windowSeconds = DefaultChunkSeconds
	}

	duration, err := n.Duration(ctx, data, ".mp3")
	if err != nil {
		return nil, err
	}

	count := ChunkCount(duration, float64(windowSeconds))
	id := uuid.New().String()
	inputPath := filepath.Join(n.tempDir, fmt.Sprintf("split_%s.mp3", id))
	defer os.Remove(inputPath)

	if err := os.WriteFile(inputPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp input: %v", err)
	}

	chunks := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		chunkPath := filepath.Join(n.tempDir, fmt.Sprintf("split_%s_%03d.mp3", id, i))

		ffctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		cmd := ffmpegCommand(ffctx,
			"-ss", strconv.Itoa(i*windowSeconds),
			"-t", strconv.Itoa(windowSeconds),
			"-i", inputPath,
			"-ac", "1",
			"-ar", "16000",
			"-b:a", "64k",
			"-f", "mp3",
			"-y",
			chunkPath,
		)
		output, err := cmd.CombinedOutput()
		cancel()
		if err != nil {
			os.Remove(chunkPath)
			return nil, fmt.Errorf("ffmpeg chunk %d failed: %v\nOutput: %s", i, err, string(output))
		}

		chunk, err := os.ReadFile(chunkPath)
		os.Remove(chunkPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %d: %v", i, err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}
