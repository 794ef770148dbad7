package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/api/handlers"
	"github.com/examproctor/backend/internal/audio"
	"github.com/examproctor/backend/internal/cache/redis"
	"github.com/examproctor/backend/internal/exam"
	"github.com/examproctor/backend/internal/face"
	"github.com/examproctor/backend/internal/face/goface"
	"github.com/examproctor/backend/internal/llm"
	"github.com/examproctor/backend/internal/media"
	"github.com/examproctor/backend/internal/metrics"
	"github.com/examproctor/backend/internal/middleware/ratelimit"
	"github.com/examproctor/backend/internal/middleware/security"
	"github.com/examproctor/backend/internal/proctor"
	"github.com/examproctor/backend/internal/report"
	"github.com/examproctor/backend/internal/storage/sqlite"
	"github.com/examproctor/backend/internal/vector/milvus"
	"github.com/examproctor/backend/pkg/config"
	appLogger "github.com/examproctor/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Exam Proctor API Server")

	metrics.Init()

	if err := os.MkdirAll(cfg.Media.DataDir, 0755); err != nil {
		appLogger.Fatal("Failed to create data directory", zap.Error(err))
	}

	sqliteClient, err := sqlite.NewClient(cfg.Storage.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	detector, err := goface.NewDetector(cfg.Proctor.ModelsDir)
	if err != nil {
		appLogger.Fatal("Failed to create face detector", zap.Error(err))
	}
	defer detector.Close()

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Failed to create Redis client, live status disabled", zap.Error(err))
		} else {
			defer cacheClient.Close()
		}
	}

	var gallery *milvus.Gallery
	if cfg.Milvus.Enabled {
		gallery, err = milvus.NewGallery(cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Milvus.VectorDim)
		if err != nil {
			appLogger.Warn("Failed to create face gallery, archiving disabled", zap.Error(err))
		} else {
			defer gallery.Close()
			if err := gallery.CreateCollection(context.Background()); err != nil {
				appLogger.Warn("Failed to create gallery collection", zap.Error(err))
				gallery = nil
			}
		}
	}

	var narrator report.Narrator
	if cfg.LLM.Enabled {
		narrator = llm.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	}

	matcher := face.NewEuclideanMatcher(cfg.Proctor.MatchThreshold)
	evaluator := proctor.NewFrameEvaluator(detector, matcher, proctor.EvaluatorConfig{
		CheckFocus:     cfg.Proctor.CheckFocus,
		FocusThreshold: cfg.Proctor.FocusThreshold,
		MinFaceSize:    cfg.Proctor.MinFaceSize,
	})

	clipper := media.NewClipper(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	compiler := report.NewCompiler(clipper, narrator, cfg.Media.DataDir, cfg.Media.ClipLeadSec, cfg.Media.ClipTailSec)

	controller := exam.NewController(exam.Config{
		Detector:  detector,
		Evaluator: evaluator,
		Compiler:  compiler,
		DB:        sqliteClient,
		Cache:     cacheClient,
		Gallery:   gallery,
		AudioSource: func() (audio.Source, error) {
			return audio.NewFFmpegSource(cfg.Media.FFmpegPath, cfg.Audio.Device, cfg.Audio.SampleRate)
		},
		Media: cfg.Media,
		Audio: cfg.Audio,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: true,
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	pagesHandler := handlers.NewPagesHandler(controller)
	sessionHandler := handlers.NewSessionHandler(controller)
	galleryHandler := handlers.NewGalleryHandler(controller)
	wsHandler := handlers.NewWebSocketHandler(controller)

	app.Static("/static", "./static")

	app.Get("/", pagesHandler.Index)
	app.Get("/capture", pagesHandler.CapturePage)
	app.Get("/exam", pagesHandler.ExamPage)
	app.Get("/thanks", pagesHandler.ThanksPage)
	app.Get("/report", pagesHandler.ReportPage)
	app.Get("/report.json", pagesHandler.ReportJSON)

	app.Post("/save_capture", sessionHandler.SaveCapture)
	app.Post("/check_person", limiter.Middleware(), sessionHandler.CheckPerson)
	app.Post("/submit_exam", sessionHandler.SubmitExam)
	app.Post("/gallery/search", galleryHandler.Search)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/session/:id", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	controller.Shutdown(context.Background())
	app.Shutdown()
	appLogger.Info("Server stopped")
}
