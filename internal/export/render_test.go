package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/escribajus/hearing-transcription/internal/types"
)

func sampleJob() *types.Job {
	return &types.Job{
		ID:        "job-1",
		Title:     "Audiência de instrução",
		Engine:    types.EngineDeepgram,
		Status:    types.StatusCompleted,
		UpdatedAt: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}
}

func sampleUtterances() []types.Utterance {
	return []types.Utterance{
		{Speaker: "JUIZ(A)", Text: "A senhora conhece o réu?", StartTime: 0.5, EndTime: 3.2, SortOrder: 0},
		{Speaker: "DEPOENTE", Text: "Conheço de vista.", StartTime: 3.8, EndTime: 5.9, SortOrder: 1},
	}
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat(FormatText))
	assert.True(t, ValidFormat(FormatMarkdown))
	assert.True(t, ValidFormat(FormatSRT))
	assert.False(t, ValidFormat("pdf"))
	assert.False(t, ValidFormat(""))
}

func TestRenderText(t *testing.T) {
	out := Render(sampleJob(), sampleUtterances(), FormatText)
	assert.Contains(t, out, "JUIZ(A): A senhora conhece o réu?")
	assert.Contains(t, out, "DEPOENTE: Conheço de vista.")
}

func TestRenderMarkdown(t *testing.T) {
	out := Render(sampleJob(), sampleUtterances(), FormatMarkdown)
	assert.Contains(t, out, "# Audiência de instrução")
	assert.Contains(t, out, "`deepgram`")
	assert.Contains(t, out, "[00:00-00:03] **JUIZ(A):** A senhora conhece o réu?")
	assert.Contains(t, out, "**DEPOENTE:** Conheço de vista.")
}

func TestRenderMarkdownUntitled(t *testing.T) {
	job := sampleJob()
	job.Title = ""
	out := Render(job, sampleUtterances(), FormatMarkdown)
	assert.Contains(t, out, "# Transcrição de Audiência")
}

func TestRenderSRT(t *testing.T) {
	out := Render(sampleJob(), sampleUtterances(), FormatSRT)
	assert.Contains(t, out, "1\n00:00:00,500 --> 00:00:03,200\nJUIZ(A): A senhora conhece o réu?")
	assert.Contains(t, out, "2\n00:00:03,800 --> 00:00:05,900\nDEPOENTE: Conheço de vista.")
}

func TestSecToTimestampHours(t *testing.T) {
	assert.Equal(t, "01:01:05", secToTimestamp(3665))
	assert.Equal(t, "02:03", secToTimestamp(123))
}
