package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"p9e.in/siteqa/ratelimit"
)

var DB *gorm.DB

func Connect() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	dsn := os.Getenv("DB_DSN")
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Run migrations
	if err := Migrations(DB); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
}

// NewRateLimiter builds the limiter selected by RATE_LIMIT_BACKEND
// ("memory" or "redis"). The redis backend shares windows across replicas;
// memory is the single-node default.
func NewRateLimiter() ratelimit.Limiter {
	limit := 120
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	switch os.Getenv("RATE_LIMIT_BACKEND") {
	case "redis":
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		log.Printf("✅ Rate limiting via redis at %s (%d req/min)", addr, limit)
		return ratelimit.NewRedisLimiter(rdb, limit, time.Minute)
	default:
		log.Printf("✅ Rate limiting in memory (%d req/min)", limit)
		return ratelimit.NewMemoryLimiter(limit, time.Minute)
	}
}
