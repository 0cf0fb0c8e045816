package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/escribajus/hearing-transcription/internal/storage"
)

// Scheduler periodically removes stale temp files left by transcoding and
// sweeps jobs abandoned mid-flight (process killed between stages) into the
// error state so polling clients are not stuck on a dead run forever.
type Scheduler struct {
	tempDir         string
	db              *storage.DB
	intervalMinutes int
	maxAgeHours     int
	stuckTTLHours   int
	stopChan        chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, db *storage.DB, intervalMinutes, maxAgeHours, stuckTTLHours int) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}
	if maxAgeHours <= 0 {
		maxAgeHours = 24
	}
	if stuckTTLHours <= 0 {
		stuckTTLHours = 6
	}
	return &Scheduler{
		tempDir:         tempDir,
		db:              db,
		intervalMinutes: intervalMinutes,
		maxAgeHours:     maxAgeHours,
		stuckTTLHours:   stuckTTLHours,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the cleanup scheduler
func (s *Scheduler) Start() {
	log.Println("Running initial cleanup sweep...")
	s.sweep()

	ticker := time.NewTicker(time.Duration(s.intervalMinutes) * time.Minute)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.Printf("Cleanup scheduler started (interval: %dm, temp max age: %dh, stuck TTL: %dh)",
		s.intervalMinutes, s.maxAgeHours, s.stuckTTLHours)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	log.Println("Cleanup scheduler stopped")
}

func (s *Scheduler) sweep() {
	s.cleanOldFiles()
	s.failStuckJobs()
}

// cleanOldFiles removes temp files older than maxAgeHours
func (s *Scheduler) cleanOldFiles() {
	now := time.Now()
	maxAge := time.Duration(s.maxAgeHours) * time.Hour

	var deletedCount int
	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if now.Sub(info.ModTime()) > maxAge {
			if err := os.Remove(path); err != nil {
				log.Printf("Failed to delete old temp file %s: %v", path, err)
			} else {
				deletedCount++
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("Error during temp cleanup: %v", err)
	}
	if deletedCount > 0 {
		log.Printf("Temp cleanup: %d files deleted", deletedCount)
	}
}

// failStuckJobs marks jobs stuck in a non-terminal status past the TTL
func (s *Scheduler) failStuckJobs() {
	cutoff := time.Now().Add(-time.Duration(s.stuckTTLHours) * time.Hour)
	jobs, err := s.db.ListStuckJobs(cutoff)
	if err != nil {
		log.Printf("Error listing stuck jobs: %v", err)
		return
	}
	for _, job := range jobs {
		log.Printf("Marking stuck job %s as error (status %s since %s)",
			job.ID, job.Status, job.UpdatedAt.Format(time.RFC3339))
		if err := s.db.MarkJobError(job.ID, "processamento abandonado: nenhuma atualização dentro do prazo"); err != nil {
			log.Printf("Failed to mark stuck job %s: %v", job.ID, err)
		}
	}
}

// EnsureDirExists creates a directory if it doesn't exist
func EnsureDirExists(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return nil
}
