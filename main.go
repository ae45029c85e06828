package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"campaign-score-system/handlers"
	"campaign-score-system/models"
	"campaign-score-system/services"
	"campaign-score-system/utils"
	"campaign-score-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("⚠️  No .env file found, reading environment variables directly")
	}

	if level, err := log.ParseLevel(os.Getenv("APP_LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}

	if err := db.AutoMigrate(
		&models.Team{},
		&models.User{},
		&models.Mission{},
		&models.Post{},
		&models.ScoreRecord{},
	); err != nil {
		log.Fatal("failed to migrate database: ", err)
	}

	// --- Feed API configuration ---
	feedBaseURL := os.Getenv("FEED_BASE_URL")
	if feedBaseURL == "" {
		log.Fatal("FEED_BASE_URL environment variable not set")
	}
	feedEventID := os.Getenv("FEED_EVENT_ID")
	if feedEventID == "" {
		log.Fatal("FEED_EVENT_ID environment variable not set")
	}
	feedToken := os.Getenv("FEED_ACCESS_TOKEN")
	if feedToken == "" {
		log.Fatal("FEED_ACCESS_TOKEN environment variable not set")
	}
	feedClient := services.NewGraphFeedClient(feedBaseURL, feedEventID, feedToken, envInt("FEED_PAGE_LIMIT", 300))
	// --- END CONFIG ---

	tagPrefix := os.Getenv("CAMPAIGN_TAG_PREFIX")
	if tagPrefix == "" {
		tagPrefix = "ntu"
	}
	extractor := services.NewHashtagExtractor(tagPrefix)
	scoreTable := services.ScoreTableFromEnv()

	// Photo mirroring is optional; without R2 credentials posts keep their
	// upstream photo URLs.
	var media services.PhotoMirror
	mirror, err := utils.NewMediaMirrorFromEnv()
	if err != nil {
		log.Fatal("failed to initialize R2 client: ", err)
	}
	if mirror != nil {
		media = mirror
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	probeInterval := time.Duration(envInt("PROBE_INTERVAL_SECONDS", 600)) * time.Second
	poller := workers.NewFeedPoller(db, feedClient, extractor, scoreTable, media, probeInterval, envInt("FEED_MAX_IN_FLIGHT", 6))
	poller.Start(ctx)

	auditService := services.NewAuditService(db, scoreTable)
	auditService.StartAuditScheduler(time.Duration(envInt("AUDIT_INTERVAL_SECONDS", 3600)) * time.Second)

	ledger := services.NewScoreLedger(db, scoreTable)
	rankingService := services.NewRankingService(db, ledger)

	app := fiber.New(fiber.Config{})
	handlers.SetupRankingRoutes(app, rankingService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Errorf("Server error: %v", err)
		}
	}()

	log.Infof("✅ Server running on http://localhost:%s", port)
	log.Infof("✅ Feed poller running (every %s)", probeInterval)
	log.Info("✅ Score audit job running")

	<-ctx.Done()
	log.Info("Shutting down server...")
	_ = app.Shutdown()
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		log.Warnf("Invalid %s=%q, using default %d", key, raw, fallback)
		return fallback
	}
	return parsed
}
