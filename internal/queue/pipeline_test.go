package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escribajus/hearing-transcription/internal/correction"
	"github.com/escribajus/hearing-transcription/internal/llm"
	"github.com/escribajus/hearing-transcription/internal/media"
	"github.com/escribajus/hearing-transcription/internal/storage"
	"github.com/escribajus/hearing-transcription/internal/transcription"
	"github.com/escribajus/hearing-transcription/internal/types"
)

// fakeBackend implements transcription.Backend for pipeline tests
type fakeBackend struct {
	name   string
	result []types.RawUtterance
	err    error
	calls  int
	onCall func()
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Transcribe(ctx context.Context, audio []byte, contentType string, opts transcription.Options) ([]types.RawUtterance, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// passthroughLLM answers every correction batch by echoing the input with
// alternating court-role labels.
func passthroughLLM(t *testing.T, db *storage.DB, jobID string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utterances, err := db.ListUtterances(jobID)
		require.NoError(t, err)
		updates := make([]correction.Update, len(utterances))
		for i, u := range utterances {
			label := "JUIZ(A)"
			if u.Speaker == "SPEAKER_01" {
				label = "DEPOENTE"
			}
			updates[i] = correction.Update{ID: u.ID, Speaker: label, Text: u.Text}
		}
		payload, _ := json.Marshal(updates)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": string(payload)}},
			},
		})
	}))
}

func setupPipelineJob(t *testing.T, engine string) (*storage.DB, *types.Job) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mediaPath := filepath.Join(dir, "hearing.mp3")
	require.NoError(t, os.WriteFile(mediaPath, []byte("tiny audio payload"), 0644))

	job := &types.Job{
		ID:        "job-1",
		Title:     "Audiência de instrução",
		Engine:    engine,
		Status:    types.StatusUploading,
		MediaPath: mediaPath,
		MediaKind: types.MediaAudio,
	}
	require.NoError(t, db.CreateJob(job))
	return db, job
}

func newTestPipeline(db *storage.DB, backend transcription.Backend, llmURL string, tempDir string) *Pipeline {
	normalizer := media.NewNormalizer(tempDir, media.DefaultSizeCeiling)
	corrector := correction.NewEngine(db, llm.NewClient(llmURL, "test-key", ""), 40)
	backends := map[string]transcription.Backend{backend.Name(): backend}
	return NewPipeline(db, normalizer, backends, corrector, "pt", 600)
}

func TestPipelineRunCompletesJob(t *testing.T) {
	db, job := setupPipelineJob(t, types.EngineDeepgram)

	// Two-speaker clip: four utterances alternating 0/1, as a diarizing
	// backend would return them.
	backend := &fakeBackend{
		name: types.EngineDeepgram,
		result: []types.RawUtterance{
			{Speaker: "SPEAKER_00", Text: "A senhora conhece o réu?", Start: 0.5, End: 3.2},
			{Speaker: "SPEAKER_01", Text: "Conheço de vista.", Start: 3.8, End: 5.9},
			{Speaker: "SPEAKER_00", Text: "De onde?", Start: 6.1, End: 6.8},
			{Speaker: "SPEAKER_01", Text: "Do bairro onde moro.", Start: 7.0, End: 9.4},
		},
	}
	backend.onCall = func() {
		// The transcribing milestone must be visible while the provider call
		// is in flight.
		current, err := db.GetJob(job.ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusTranscribing, current.Status)
		assert.GreaterOrEqual(t, current.Progress, progressNormalized)
	}

	server := passthroughLLM(t, db, job.ID)
	defer server.Close()

	p := newTestPipeline(db, backend, server.URL, t.TempDir())
	require.NoError(t, p.Run(context.Background(), job.ID))

	final, err := db.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.Empty(t, final.Error)

	utterances, err := db.ListUtterances(job.ID)
	require.NoError(t, err)
	require.Len(t, utterances, 4)
	for i, u := range utterances {
		assert.Equal(t, i, u.SortOrder)
		if i%2 == 0 {
			assert.Equal(t, "JUIZ(A)", u.Speaker)
		} else {
			assert.Equal(t, "DEPOENTE", u.Speaker)
		}
		assert.Equal(t, backend.result[i].Text, u.Text)
		assert.Equal(t, backend.result[i].Start, u.StartTime)
		assert.Equal(t, backend.result[i].End, u.EndTime)
	}
	assert.Equal(t, 1, backend.calls)
}

func TestPipelineBackendFailureMarksNothingPersisted(t *testing.T) {
	db, job := setupPipelineJob(t, types.EngineWhisper)

	backend := &fakeBackend{
		name: types.EngineWhisper,
		err:  fmt.Errorf("whisper returned HTTP 500: internal error"),
	}

	p := newTestPipeline(db, backend, "http://unused", t.TempDir())
	err := p.Run(context.Background(), job.ID)
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "transcription", stageErr.Stage)

	// No utterances written for the failed run
	utterances, dbErr := db.ListUtterances(job.ID)
	require.NoError(t, dbErr)
	assert.Empty(t, utterances)

	// Progress stays at the last successful milestone
	current, dbErr := db.GetJob(job.ID)
	require.NoError(t, dbErr)
	assert.Equal(t, progressNormalized, current.Progress)
}

func TestPipelineUnknownEngine(t *testing.T) {
	db, job := setupPipelineJob(t, types.EngineDeepgram)

	p := NewPipeline(db,
		media.NewNormalizer(t.TempDir(), media.DefaultSizeCeiling),
		map[string]transcription.Backend{}, // No backends registered
		correction.NewEngine(db, llm.NewClient("http://unused", "k", ""), 40),
		"pt", 600)

	err := p.Run(context.Background(), job.ID)
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "setup", stageErr.Stage)
}

func TestPipelineMissingMediaFailsDownloadStage(t *testing.T) {
	db, job := setupPipelineJob(t, types.EngineDeepgram)
	require.NoError(t, os.Remove(job.MediaPath))

	backend := &fakeBackend{name: types.EngineDeepgram}
	p := newTestPipeline(db, backend, "http://unused", t.TempDir())

	err := p.Run(context.Background(), job.ID)
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "download", stageErr.Stage)
	assert.Equal(t, 0, backend.calls)
}

func TestWorkerPoolPersistsTerminalError(t *testing.T) {
	db, job := setupPipelineJob(t, types.EngineWhisper)

	backend := &fakeBackend{
		name: types.EngineWhisper,
		err:  fmt.Errorf("whisper returned HTTP 500: internal error"),
	}
	p := newTestPipeline(db, backend, "http://unused", t.TempDir())

	pool := NewWorkerPool(1, p, db)
	// Drive one job through the worker path synchronously
	err := p.Run(context.Background(), job.ID)
	require.Error(t, err)
	pool.failJob(job.ID, err.Error())

	final, dbErr := db.GetJob(job.ID)
	require.NoError(t, dbErr)
	assert.Equal(t, types.StatusError, final.Status)
	assert.Contains(t, final.Error, "transcription:")
	assert.Contains(t, final.Error, "HTTP 500")
}

func TestShiftUtterances(t *testing.T) {
	items := []types.RawUtterance{
		{Text: "a", Start: 0, End: 2, Words: []types.Word{{Token: "a", Start: 0, End: 2}}},
		{Text: "b", Start: 5, End: 9},
	}
	shifted := shiftUtterances(items, 600)

	assert.Equal(t, 600.0, shifted[0].Start)
	assert.Equal(t, 602.0, shifted[0].End)
	assert.Equal(t, 600.0, shifted[0].Words[0].Start)
	assert.Equal(t, 605.0, shifted[1].Start)
	assert.Equal(t, 609.0, shifted[1].End)
}

func TestShiftUtterancesKeepsOrderingAcrossChunks(t *testing.T) {
	// Chunk round-trip property: offsetting each chunk's timestamps by its
	// window keeps start times monotonically non-decreasing globally.
	window := 600.0
	var merged []types.RawUtterance
	for chunk := 0; chunk < 3; chunk++ {
		part := []types.RawUtterance{
			{Start: 10, End: 60},
			{Start: 120, End: 240},
			{Start: 400, End: 590},
		}
		merged = append(merged, shiftUtterances(part, media.ChunkOffset(chunk, window))...)
	}
	for i := 1; i < len(merged); i++ {
		assert.GreaterOrEqual(t, merged[i].Start, merged[i-1].Start)
	}
}
