package queue

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/escribajus/hearing-transcription/internal/correction"
	"github.com/escribajus/hearing-transcription/internal/media"
	"github.com/escribajus/hearing-transcription/internal/storage"
	"github.com/escribajus/hearing-transcription/internal/transcription"
	"github.com/escribajus/hearing-transcription/internal/types"
)

// Progress milestones written between stages so a polling client sees forward
// motion even while the underlying calls block for minutes.
const (
	progressTranscribing = 15
	progressDownloaded   = 20
	progressNormalized   = 30
	progressTranscribed  = 55
	progressFormatting   = 65
	progressCorrecting   = 70
	progressDone         = 100
)

// StageError is a pipeline failure carrying the stage it happened in
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// Pipeline runs one transcription job end to end: download, normalize,
// chunk if needed, transcribe, persist, correct. Stages run strictly in
// sequence; the first failing stage terminates the run.
type Pipeline struct {
	db           *storage.DB
	normalizer   *media.Normalizer
	backends     map[string]transcription.Backend
	corrector    *correction.Engine
	language     string
	chunkSeconds int
}

// NewPipeline creates a pipeline with the given backends keyed by engine name
func NewPipeline(
	db *storage.DB,
	normalizer *media.Normalizer,
	backends map[string]transcription.Backend,
	corrector *correction.Engine,
	language string,
	chunkSeconds int,
) *Pipeline {
	if language == "" {
		language = "pt"
	}
	if chunkSeconds <= 0 {
		chunkSeconds = media.DefaultChunkSeconds
	}
	return &Pipeline{
		db:           db,
		normalizer:   normalizer,
		backends:     backends,
		corrector:    corrector,
		language:     language,
		chunkSeconds: chunkSeconds,
	}
}

// Run executes the full pipeline for a job id. Any returned error has already
// been classified by stage; the caller persists the terminal error status.
func (p *Pipeline) Run(ctx context.Context, jobID string) error {
	job, err := p.db.GetJob(jobID)
	if err != nil {
		return stageErr("load", err)
	}

	backend, ok := p.backends[job.Engine]
	if !ok {
		return stageErr("setup", fmt.Errorf("unknown engine %q", job.Engine))
	}

	if err := p.db.UpdateJobStatus(job.ID, types.StatusTranscribing, progressTranscribing); err != nil {
		return stageErr("status", err)
	}

	// Stage 1: download
	data, err := media.Fetch(ctx, job.MediaPath)
	if err != nil {
		return stageErr("download", err)
	}
	if err := p.db.UpdateJobProgress(job.ID, progressDownloaded); err != nil {
		return stageErr("status", err)
	}

	// Stage 2: normalize
	ext := filepath.Ext(job.MediaPath)
	audio, contentType, err := p.normalizer.Normalize(ctx, data, ext)
	if err != nil {
		return stageErr("conversion", err)
	}
	if err := p.db.UpdateJobProgress(job.ID, progressNormalized); err != nil {
		return stageErr("status", err)
	}

	// Stage 3: transcribe, chunking when still over the provider ceiling
	utterances, err := p.transcribe(ctx, backend, audio, contentType)
	if err != nil {
		return stageErr("transcription", err)
	}
	if err := p.db.UpdateJobProgress(job.ID, progressTranscribed); err != nil {
		return stageErr("status", err)
	}

	// Stage 4: persist
	if err := p.db.InsertUtterances(job.ID, utterances); err != nil {
		return stageErr("persistence", err)
	}
	if err := p.db.UpdateJobStatus(job.ID, types.StatusFormatting, progressFormatting); err != nil {
		return stageErr("status", err)
	}

	// Stage 5: correction (best-effort per batch inside)
	if err := p.db.UpdateJobProgress(job.ID, progressCorrecting); err != nil {
		return stageErr("status", err)
	}
	if err := p.corrector.Run(ctx, job); err != nil {
		return stageErr("formatting", err)
	}

	if err := p.db.UpdateJobStatus(job.ID, types.StatusCompleted, progressDone); err != nil {
		return stageErr("status", err)
	}
	log.Printf("Job %s completed", job.ID)
	return nil
}

// transcribe sends the normalized audio to the backend, splitting it into
// fixed windows first when it exceeds the provider ceiling. Chunks run one at
// a time in index order; every chunk timestamp is shifted by the chunk offset
// before joining the global sequence.
func (p *Pipeline) transcribe(ctx context.Context, backend transcription.Backend, audio []byte, contentType string) ([]types.RawUtterance, error) {
	opts := transcription.Options{Language: p.language}

	if int64(len(audio)) <= p.normalizer.SizeCeiling() {
		return backend.Transcribe(ctx, audio, contentType, opts)
	}

	chunks, err := p.normalizer.Split(ctx, audio, p.chunkSeconds)
	if err != nil {
		return nil, err
	}
	log.Printf("Audio over provider ceiling, split into %d chunks of %ds", len(chunks), p.chunkSeconds)

	var all []types.RawUtterance
	for i, chunk := range chunks {
		partial, err := backend.Transcribe(ctx, chunk, "audio/mpeg", opts)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %v", i, err)
		}
		all = append(all, shiftUtterances(partial, media.ChunkOffset(i, float64(p.chunkSeconds)))...)
	}
	return all, nil
}

// shiftUtterances moves chunk-relative timestamps onto the global timeline
func shiftUtterances(items []types.RawUtterance, offset float64) []types.RawUtterance {
	for i := range items {
		items[i].Start += offset
		items[i].End += offset
		for w := range items[i].Words {
			items[i].Words[w].Start += offset
			items[i].Words[w].End += offset
		}
	}
	return items
}
