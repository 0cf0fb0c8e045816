package handlers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/escribajus/hearing-transcription/internal/media"
	"github.com/escribajus/hearing-transcription/internal/queue"
	"github.com/escribajus/hearing-transcription/internal/storage"
	"github.com/escribajus/hearing-transcription/internal/types"
)

// JobHandler handles job creation, polling and deletion
type JobHandler struct {
	db         *storage.DB
	workerPool *queue.WorkerPool
	mediaDir   string
	maxSizeMB  int
}

// NewJobHandler creates a new job handler
func NewJobHandler(db *storage.DB, workerPool *queue.WorkerPool, mediaDir string, maxSizeMB int) *JobHandler {
	return &JobHandler{
		db:         db,
		workerPool: workerPool,
		mediaDir:   mediaDir,
		maxSizeMB:  maxSizeMB,
	}
}

// Create accepts the hearing media upload plus metadata and starts a pipeline run
func (h *JobHandler) Create(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	title := c.FormValue("title")
	if title == "" {
		title = "untitled"
	}
	glossary := c.FormValue("glossary")

	engine := c.FormValue("engine")
	if engine == "" {
		engine = types.EngineWhisper
	}
	if !types.ValidEngine(engine) {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("Unknown engine %q", engine),
			"code":  "ERR_INVALID_ENGINE",
		})
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !media.IsSupportedExtension(ext) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Unsupported media format",
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	jobID := uuid.New().String()
	mediaPath := filepath.Join(h.mediaDir, jobID+ext)
	if err := c.SaveFile(file, mediaPath); err != nil {
		log.Printf("Failed to save uploaded file: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to save file",
			"code":  "ERR_SAVE_FAILED",
		})
	}

	kind := types.MediaAudio
	if media.IsVideoExtension(ext) {
		kind = types.MediaVideo
	}

	job := &types.Job{
		ID:        jobID,
		Title:     title,
		Glossary:  glossary,
		Engine:    engine,
		Status:    types.StatusUploading,
		MediaPath: mediaPath,
		MediaKind: kind,
		MediaSize: file.Size,
	}
	if err := h.db.CreateJob(job); err != nil {
		log.Printf("Failed to create job: %v", err)
		os.Remove(mediaPath)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to create job",
			"code":  "ERR_DB_FAILED",
		})
	}

	h.workerPool.Enqueue(jobID)

	return c.JSON(fiber.Map{
		"job_id":  jobID,
		"status":  job.Status,
		"message": "File uploaded successfully, processing started",
	})
}

// Get returns the current status and progress for polling
func (h *JobHandler) Get(c *fiber.Ctx) error {
	job, err := h.db.GetJob(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	return c.JSON(job)
}

// List returns recent jobs
func (h *JobHandler) List(c *fiber.Ctx) error {
	jobs, err := h.db.ListJobs(c.QueryInt("limit", 50))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error(), "code": "ERR_DB_FAILED"})
	}
	if jobs == nil {
		jobs = []types.Job{}
	}
	return c.JSON(jobs)
}

// Utterances returns the ordered transcript of a job
func (h *JobHandler) Utterances(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if _, err := h.db.GetJob(jobID); err != nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	utterances, err := h.db.ListUtterances(jobID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error(), "code": "ERR_DB_FAILED"})
	}
	if utterances == nil {
		utterances = []types.Utterance{}
	}
	return c.JSON(utterances)
}

// Reprocess starts a fresh pipeline run for an existing job
func (h *JobHandler) Reprocess(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if _, err := h.db.GetJob(jobID); err != nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err := h.db.ResetJobForRun(jobID); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error(), "code": "ERR_DB_FAILED"})
	}
	h.workerPool.Enqueue(jobID)
	return c.JSON(fiber.Map{
		"job_id":  jobID,
		"status":  types.StatusUploading,
		"message": "Reprocessing started",
	})
}

// Delete removes the job, its utterances and the stored media file
func (h *JobHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("id")
	job, err := h.db.GetJob(jobID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err := h.db.DeleteJob(jobID); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error(), "code": "ERR_DB_FAILED"})
	}
	if job.MediaPath != "" && !strings.HasPrefix(job.MediaPath, "http") {
		if err := os.Remove(job.MediaPath); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove media file %s: %v", job.MediaPath, err)
		}
	}
	return c.JSON(fiber.Map{"job_id": jobID, "deleted": true})
}
