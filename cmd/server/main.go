package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/escribajus/hearing-transcription/internal/cleanup"
	"github.com/escribajus/hearing-transcription/internal/correction"
	"github.com/escribajus/hearing-transcription/internal/handlers"
	"github.com/escribajus/hearing-transcription/internal/llm"
	"github.com/escribajus/hearing-transcription/internal/media"
	"github.com/escribajus/hearing-transcription/internal/queue"
	"github.com/escribajus/hearing-transcription/internal/storage"
	"github.com/escribajus/hearing-transcription/internal/transcription"
	"github.com/escribajus/hearing-transcription/internal/types"
)

// Config represents the application configuration. Endpoints and tuning live
// here; credentials come from the environment (.env is loaded when present).
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Storage struct {
		MediaDir string `yaml:"media_dir"`
		TempDir  string `yaml:"temp_dir"`
		Database string `yaml:"database"`
	} `yaml:"storage"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Pipeline struct {
		Language            string `yaml:"language"`
		ChunkSeconds        int    `yaml:"chunk_seconds"`
		SizeCeilingMB       int    `yaml:"size_ceiling_mb"`
		CorrectionBatchSize int    `yaml:"correction_batch_size"`
	} `yaml:"pipeline"`

	Whisper struct {
		Endpoint string `yaml:"endpoint"`
		Model    string `yaml:"model"`
	} `yaml:"whisper"`

	Deepgram struct {
		Endpoint string `yaml:"endpoint"`
		Model    string `yaml:"model"`
	} `yaml:"deepgram"`

	LLM struct {
		Endpoint string `yaml:"endpoint"`
		Model    string `yaml:"model"`
	} `yaml:"llm"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
		StuckTTLHours   int `yaml:"stuck_ttl_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`
}

func main() {
	// Secrets from .env if present; real env always wins
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	config, err := loadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cleanup.EnsureDirExists(config.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	if err := cleanup.EnsureDirExists(config.Storage.MediaDir); err != nil {
		log.Fatalf("Failed to create media directory: %v", err)
	}

	log.Println("Initializing components...")

	db, err := storage.NewDB(config.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	normalizer := media.NewNormalizer(config.Storage.TempDir,
		int64(config.Pipeline.SizeCeilingMB)*1024*1024)

	backends := map[string]transcription.Backend{
		types.EngineWhisper: transcription.NewWhisperBackend(
			config.Whisper.Endpoint, os.Getenv("WHISPER_API_KEY"), config.Whisper.Model),
		types.EngineDeepgram: transcription.NewDeepgramBackend(
			config.Deepgram.Endpoint, os.Getenv("DEEPGRAM_API_KEY"), config.Deepgram.Model),
	}

	llmClient := llm.NewClient(config.LLM.Endpoint, os.Getenv("LLM_API_KEY"), config.LLM.Model)
	corrector := correction.NewEngine(db, llmClient, config.Pipeline.CorrectionBatchSize)

	pipeline := queue.NewPipeline(db, normalizer, backends, corrector,
		config.Pipeline.Language, config.Pipeline.ChunkSeconds)

	workerPool := queue.NewWorkerPool(config.Workers.Count, pipeline, db)
	workerPool.Start()

	// Google Drive sharing (optional - may fail if credentials not set up)
	var driveClient *storage.DriveClient
	if _, err := os.Stat(config.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err = storage.NewDriveClient(
			config.GoogleDrive.CredentialsFile,
			config.GoogleDrive.TokenFile,
			config.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			driveClient = nil
		} else {
			log.Println("Google Drive sharing enabled")
		}
	} else {
		log.Println("Google Drive credentials not found - sharing disabled")
	}

	cleanupScheduler := cleanup.NewScheduler(
		config.Storage.TempDir,
		db,
		config.Cleanup.IntervalMinutes,
		config.Cleanup.MaxAgeHours,
		config.Cleanup.StuckTTLHours,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit: config.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	jobHandler := handlers.NewJobHandler(db, workerPool, config.Storage.MediaDir, config.Limits.MaxFileSizeMB)
	exportHandler := handlers.NewExportHandler(db, driveClient)
	summaryHandler := handlers.NewSummaryHandler(db, llmClient)
	chatHandler := handlers.NewChatHandler(db, llmClient)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Post("/jobs", jobHandler.Create)
	app.Get("/jobs", jobHandler.List)
	app.Get("/jobs/:id", jobHandler.Get)
	app.Delete("/jobs/:id", jobHandler.Delete)
	app.Get("/jobs/:id/utterances", jobHandler.Utterances)
	app.Post("/jobs/:id/reprocess", jobHandler.Reprocess)
	app.Get("/jobs/:id/export", exportHandler.Download)
	app.Post("/jobs/:id/share", exportHandler.Share)
	app.Post("/jobs/:id/summary", summaryHandler.Handle)
	app.Get("/ws/jobs/:id/chat", websocket.New(chatHandler.Handle))

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST   /jobs                  - Upload hearing media and start transcription")
	log.Println("   GET    /jobs/:id              - Poll job status and progress")
	log.Println("   GET    /jobs/:id/utterances   - Get the ordered transcript")
	log.Println("   GET    /jobs/:id/export       - Download transcript (txt/md/srt)")
	log.Println("   POST   /jobs/:id/share        - Share transcript via Google Drive")
	log.Println("   POST   /jobs/:id/summary      - Summarize the hearing")
	log.Println("   GET    /ws/jobs/:id/chat      - Chat about the transcript (websocket)")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
