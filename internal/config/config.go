package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisURL string

	WorkerCount     int
	WorkerBatchSize int

	AdminPseudo string
	AdminEmail  string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	workerCount, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || workerCount <= 0 {
		workerCount = 2
	}

	workerBatchSize, err := strconv.Atoi(os.Getenv("WORKER_BATCH_SIZE"))
	if err != nil || workerBatchSize <= 0 {
		workerBatchSize = 10
	}

	adminPseudo := os.Getenv("ADMIN_PSEUDO")
	if adminPseudo == "" {
		adminPseudo = "greengen"
	}

	// Registration rejects blank emails, so setup needs a usable
	// default when ADMIN_EMAIL is unset.
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = adminPseudo + "@greengen.local"
	}

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  sslMode,

		RedisURL: redisURL,

		WorkerCount:     workerCount,
		WorkerBatchSize: workerBatchSize,

		AdminPseudo: adminPseudo,
		AdminEmail:  adminEmail,
	}, nil
}
