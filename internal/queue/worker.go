package queue

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/escribajus/hearing-transcription/internal/storage"
)

// WorkerPool runs transcription pipelines for enqueued jobs. Each job is
// handled by exactly one worker; multiple jobs run as independent workers
// with the database as the only shared resource.
type WorkerPool struct {
	jobQueue    chan string
	workerCount int
	pipeline    *Pipeline
	db          *storage.DB
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount int, pipeline *Pipeline, db *storage.DB) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 2
	}
	return &WorkerPool{
		jobQueue:    make(chan string, 100), // Buffer of 100 jobs
		workerCount: workerCount,
		pipeline:    pipeline,
		db:          db,
	}
}

// Start launches all workers
func (wp *WorkerPool) Start() {
	log.Printf("Starting worker pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		go wp.worker(i)
	}
}

// Enqueue adds a job id to the queue
func (wp *WorkerPool) Enqueue(jobID string) {
	wp.jobQueue <- jobID
	log.Printf("Job %s enqueued", jobID)
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	log.Printf("Worker %d started", id)

	for jobID := range wp.jobQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Worker %d: PANIC processing job %s: %v\n%s",
						id, jobID, r, string(debug.Stack()))
					wp.failJob(jobID, fmt.Sprintf("internal: %v", r))
				}
			}()

			log.Printf("Worker %d: Processing job %s", id, jobID)
			if err := wp.pipeline.Run(context.Background(), jobID); err != nil {
				log.Printf("Worker %d: Job %s failed: %v", id, jobID, err)
				wp.failJob(jobID, err.Error())
				return
			}
			log.Printf("Worker %d: Job %s finished", id, jobID)
		}()
	}
}

// failJob persists the terminal error state; progress keeps its last value
func (wp *WorkerPool) failJob(jobID, message string) {
	if err := wp.db.MarkJobError(jobID, message); err != nil {
		log.Printf("Failed to persist error state for job %s: %v", jobID, err)
	}
}
