package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/playmatrix/backend/internal/api"
	"github.com/playmatrix/backend/internal/config"
	"github.com/playmatrix/backend/internal/crash"
	"github.com/playmatrix/backend/internal/database"
	"github.com/playmatrix/backend/internal/guard"
	"github.com/playmatrix/backend/internal/migrations"
	"github.com/playmatrix/backend/internal/reaper"
	"github.com/playmatrix/backend/internal/redis"
	"github.com/playmatrix/backend/internal/rooms"
	"github.com/playmatrix/backend/internal/sessions"
	"github.com/playmatrix/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Wire domain services
	sessionSvc := sessions.New(db, cfg)
	roomSvc := rooms.New(db, cfg)
	crashSvc := crash.New(db, rdb, cfg)
	actionGuard := guard.New(rdb, cfg.ActionMinIntervalMs)
	feed := ws.NewFeed(rdb)

	ctx := context.Background()

	// Start the shared crash round scheduler and its websocket fan-out
	go crashSvc.Run(ctx)
	go feed.Run(ctx)

	// Start the reaper (stale sessions, abandoned rooms, retention)
	go reaper.New(sessionSvc, roomSvc, cfg).Run(ctx)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, db, &api.Services{
		Sessions: sessionSvc,
		Rooms:    roomSvc,
		Crash:    crashSvc,
		Guard:    actionGuard,
		Feed:     feed,
	}, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting PlayMatrix server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
