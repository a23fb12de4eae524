package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Wallet
	StartingBalance int64

	// Bet limits (minor units)
	MinBet int64
	MaxBet int64

	// Blackjack
	BlackjackDecks int

	// Mines
	MinesCells   int
	MinesDefault int
	MinesEdge    float64

	// Crash round
	CrashEdge             float64
	CrashGrowthRate       float64
	CrashCountdownSeconds int
	CrashCooldownSeconds  int

	// Conquest grid contest
	ConquestGridSize      int
	ConquestEntryFee      int64
	ConquestPrize         int64
	ConquestWindowSeconds int
	ConquestGraceSeconds  int

	// Anti-cheat
	ActionMinIntervalMs int

	// Reaper
	ReaperPollSeconds     int
	SessionStaleMinutes   int
	HeartbeatStaleSeconds int
	FinishedRetainSeconds int

	// Security
	JWTSecret string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/playmatrix?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Wallet
		StartingBalance: getEnvInt64("STARTING_BALANCE", 50000),

		// Bet limits
		MinBet: getEnvInt64("MIN_BET", 100),
		MaxBet: getEnvInt64("MAX_BET", 1000000),

		// Blackjack
		BlackjackDecks: getEnvInt("BLACKJACK_DECKS", 4),

		// Mines
		MinesCells:   getEnvInt("MINES_CELLS", 25),
		MinesDefault: getEnvInt("MINES_DEFAULT", 3),
		MinesEdge:    getEnvFloat("MINES_EDGE", 0.03),

		// Crash round
		CrashEdge:             getEnvFloat("CRASH_EDGE", 0.03),
		CrashGrowthRate:       getEnvFloat("CRASH_GROWTH_RATE", 0.07),
		CrashCountdownSeconds: getEnvInt("CRASH_COUNTDOWN_SECONDS", 6),
		CrashCooldownSeconds:  getEnvInt("CRASH_COOLDOWN_SECONDS", 4),

		// Conquest
		ConquestGridSize:      getEnvInt("CONQUEST_GRID_SIZE", 6),
		ConquestEntryFee:      getEnvInt64("CONQUEST_ENTRY_FEE", 500),
		ConquestPrize:         getEnvInt64("CONQUEST_PRIZE", 900),
		ConquestWindowSeconds: getEnvInt("CONQUEST_WINDOW_SECONDS", 60),
		ConquestGraceSeconds:  getEnvInt("CONQUEST_GRACE_SECONDS", 3),

		// Anti-cheat
		ActionMinIntervalMs: getEnvInt("ACTION_MIN_INTERVAL_MS", 150),

		// Reaper
		ReaperPollSeconds:     getEnvInt("REAPER_POLL_SECONDS", 10),
		SessionStaleMinutes:   getEnvInt("SESSION_STALE_MINUTES", 10),
		HeartbeatStaleSeconds: getEnvInt("HEARTBEAT_STALE_SECONDS", 30),
		FinishedRetainSeconds: getEnvInt("FINISHED_RETAIN_SECONDS", 60),

		// Security
		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
