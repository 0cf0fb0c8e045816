package correction

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/escribajus/hearing-transcription/internal/llm"
	"github.com/escribajus/hearing-transcription/internal/storage"
	"github.com/escribajus/hearing-transcription/internal/types"
)

// DefaultBatchSize is how many utterances go into one LLM request
const DefaultBatchSize = 40

// Progress window the correction stage owns within the pipeline
const (
	progressStart = 70
	progressEnd   = 90
)

// batchItem is what the model sees for each utterance
type batchItem struct {
	ID      int64  `json:"id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Engine relabels speakers and repairs transcription errors batch by batch.
// Correction is best-effort: a failed batch is skipped, never fatal, so the
// batches that did succeed keep their corrections.
type Engine struct {
	db        *storage.DB
	llm       *llm.Client
	batchSize int
}

// NewEngine creates a correction engine
func NewEngine(db *storage.DB, client *llm.Client, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{db: db, llm: client, batchSize: batchSize}
}

// Run corrects all utterances of a job in sort order. Only loading the
// utterances can fail the run; everything past that point is per-batch.
func (e *Engine) Run(ctx context.Context, job *types.Job) error {
	utterances, err := e.db.ListUtterances(job.ID)
	if err != nil {
		return fmt.Errorf("failed to load utterances for correction: %v", err)
	}
	if len(utterances) == 0 {
		return nil
	}

	batches := partition(utterances, e.batchSize)
	for i, batch := range batches {
		applied, err := e.correctBatch(ctx, job, batch)
		if err != nil {
			log.Printf("Job %s: correction batch %d/%d skipped: %v", job.ID, i+1, len(batches), err)
		} else {
			log.Printf("Job %s: correction batch %d/%d applied %d updates", job.ID, i+1, len(batches), applied)
		}

		progress := progressStart + (i+1)*(progressEnd-progressStart)/len(batches)
		if err := e.db.UpdateJobProgress(job.ID, progress); err != nil {
			log.Printf("Job %s: failed to update progress: %v", job.ID, err)
		}
	}
	return nil
}

// correctBatch sends one batch to the model and applies every parsed update
// immediately, so partial progress survives a later failure.
func (e *Engine) correctBatch(ctx context.Context, job *types.Job, batch []types.Utterance) (int, error) {
	items := make([]batchItem, len(batch))
	byID := make(map[int64]*types.Utterance, len(batch))
	for i := range batch {
		items[i] = batchItem{ID: batch[i].ID, Speaker: batch[i].Speaker, Text: batch[i].Text}
		byID[batch[i].ID] = &batch[i]
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal batch: %v", err)
	}

	response, err := e.llm.Complete(ctx, systemPrompt(job.Glossary), string(payload), 0.2, 8192)
	if err != nil {
		return 0, err
	}

	updates, err := ParseUpdates(response)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, update := range updates {
		current, ok := byID[update.ID]
		if !ok {
			// Model invented an id outside this batch; ignore it.
			continue
		}
		speaker := strings.TrimSpace(update.Speaker)
		text := strings.TrimSpace(update.Text)
		if speaker == "" {
			speaker = current.Speaker
		}
		if text == "" {
			text = current.Text
		}
		if err := e.db.UpdateUtteranceCorrection(update.ID, speaker, text); err != nil {
			log.Printf("Job %s: failed to apply correction for utterance %d: %v", job.ID, update.ID, err)
			continue
		}
		applied++
	}
	return applied, nil
}

func partition(utterances []types.Utterance, size int) [][]types.Utterance {
	var batches [][]types.Utterance
	for start := 0; start < len(utterances); start += size {
		end := start + size
		if end > len(utterances) {
			end = len(utterances)
		}
		batches = append(batches, utterances[start:end])
	}
	return batches
}
