package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/escribajus/hearing-transcription/internal/export"
	"github.com/escribajus/hearing-transcription/internal/storage"
	"github.com/escribajus/hearing-transcription/internal/types"
)

// ExportHandler renders and downloads transcript documents, optionally
// sharing them through Google Drive
type ExportHandler struct {
	db          *storage.DB
	driveClient *storage.DriveClient // nil when Drive is not configured
}

// NewExportHandler creates a new export handler
func NewExportHandler(db *storage.DB, driveClient *storage.DriveClient) *ExportHandler {
	return &ExportHandler{db: db, driveClient: driveClient}
}

// Download streams the transcript document in the requested format
func (h *ExportHandler) Download(c *fiber.Ctx) error {
	job, utterances, errResp := h.load(c)
	if errResp != nil {
		return errResp(c)
	}

	format := c.Query("format", export.FormatText)
	if !export.ValidFormat(format) {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("Unknown format %q", format),
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	content := export.Render(job, utterances, format)
	c.Set("Content-Type", export.ContentType(format))
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transcricao_%s.%s"`, job.ID, format))
	return c.SendString(content)
}

// Share uploads the markdown transcript to Google Drive and returns the link
func (h *ExportHandler) Share(c *fiber.Ctx) error {
	if h.driveClient == nil {
		return c.Status(503).JSON(fiber.Map{
			"error": "Drive sharing is not configured",
			"code":  "ERR_SHARE_UNAVAILABLE",
		})
	}

	job, utterances, errResp := h.load(c)
	if errResp != nil {
		return errResp(c)
	}

	content := export.Render(job, utterances, export.FormatMarkdown)
	url, err := h.driveClient.ShareTranscript(job, content, "text/markdown", ".md")
	if err != nil {
		return c.Status(502).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_SHARE_FAILED",
		})
	}
	return c.JSON(fiber.Map{"job_id": job.ID, "url": url})
}

func (h *ExportHandler) load(c *fiber.Ctx) (*types.Job, []types.Utterance, func(*fiber.Ctx) error) {
	jobID := c.Params("id")
	job, err := h.db.GetJob(jobID)
	if err != nil {
		return nil, nil, func(c *fiber.Ctx) error {
			return c.Status(404).JSON(fiber.Map{"error": "Job not found", "code": "ERR_NOT_FOUND"})
		}
	}
	if job.Status != types.StatusCompleted {
		return nil, nil, func(c *fiber.Ctx) error {
			return c.Status(409).JSON(fiber.Map{"error": "Job is not completed", "code": "ERR_NOT_COMPLETED"})
		}
	}
	utterances, err := h.db.ListUtterances(jobID)
	if err != nil {
		return nil, nil, func(c *fiber.Ctx) error {
			return c.Status(500).JSON(fiber.Map{"error": err.Error(), "code": "ERR_DB_FAILED"})
		}
	}
	return job, utterances, nil
}
