package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/escribajus/hearing-transcription/internal/export"
	"github.com/escribajus/hearing-transcription/internal/llm"
	"github.com/escribajus/hearing-transcription/internal/storage"
	"github.com/escribajus/hearing-transcription/internal/types"
)

// Transcript text sent to the model is bounded so a very long hearing does
// not blow the context window.
const maxSummaryInput = 48000

const summarySystemPrompt = `Você é um assistente jurídico. Receberá a transcrição de uma audiência judicial
com os falantes identificados. Produza um resumo objetivo em português contendo:
as partes presentes, os principais pontos de cada depoimento, requerimentos
feitos e decisões proferidas. Não invente informações que não estejam na transcrição.`

// SummaryHandler produces a single-shot LLM summary of a completed transcript
type SummaryHandler struct {
	db  *storage.DB
	llm *llm.Client
}

// NewSummaryHandler creates a new summary handler
func NewSummaryHandler(db *storage.DB, client *llm.Client) *SummaryHandler {
	return &SummaryHandler{db: db, llm: client}
}

// Handle generates the summary
func (h *SummaryHandler) Handle(c *fiber.Ctx) error {
	jobID := c.Params("id")
	job, err := h.db.GetJob(jobID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Job not found", "code": "ERR_NOT_FOUND"})
	}
	if job.Status != types.StatusCompleted {
		return c.Status(409).JSON(fiber.Map{"error": "Job is not completed", "code": "ERR_NOT_COMPLETED"})
	}

	utterances, err := h.db.ListUtterances(jobID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error(), "code": "ERR_DB_FAILED"})
	}

	transcript := export.Render(job, utterances, export.FormatText)
	if len(transcript) > maxSummaryInput {
		transcript = transcript[:maxSummaryInput]
	}

	summary, err := h.llm.Complete(c.Context(), summarySystemPrompt, transcript, 0.3, 2048)
	if err != nil {
		return c.Status(502).JSON(fiber.Map{"error": err.Error(), "code": "ERR_LLM_FAILED"})
	}

	return c.JSON(fiber.Map{"job_id": jobID, "summary": summary})
}
