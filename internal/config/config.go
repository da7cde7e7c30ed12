package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/reloop/marketplace/internal/models"
)

type Config struct {
	PORT                 string
	DOMAIN               string
	DB_HOST              string
	DB_PORT              string
	DB_USER              string
	DB_PASSWORD          string
	DB_NAME              string
	ES_URL               string
	ES_USER              string
	ES_PASSWORD          string
	TOKEN_SECRET         string
	TOKEN_EXPIRE         time.Duration
	REFRESH_TOKEN_EXPIRE time.Duration
	KAFKA_ADDRESS        string
	GOOGLE_CLIENT_ID     string
	GOOGLE_CLIENT_SECRET string
	OPENAI_API_KEY       string
	UPLOAD_DIR           string
	LOG_LEVEL            string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		PORT:                 getenv("PORT", "8080"),
		DOMAIN:               os.Getenv("DOMAIN"),
		DB_HOST:              os.Getenv("DB_HOST"),
		DB_PORT:              os.Getenv("DB_PORT"),
		DB_USER:              os.Getenv("DB_USER"),
		DB_PASSWORD:          os.Getenv("DB_PASSWORD"),
		DB_NAME:              os.Getenv("DB_NAME"),
		ES_URL:               os.Getenv("ES_URL"),
		ES_USER:              os.Getenv("ES_USER"),
		ES_PASSWORD:          os.Getenv("ES_PASSWORD"),
		TOKEN_SECRET:         os.Getenv("TOKEN_SECRET"),
		TOKEN_EXPIRE:         getDuration("TOKEN_EXPIRE"),
		REFRESH_TOKEN_EXPIRE: getDuration("REFRESH_TOKEN_EXPIRE"),
		KAFKA_ADDRESS:        os.Getenv("KAFKA_ADDRESS"),
		GOOGLE_CLIENT_ID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GOOGLE_CLIENT_SECRET: os.Getenv("GOOGLE_CLIENT_SECRET"),
		OPENAI_API_KEY:       os.Getenv("OPENAI_API_KEY"),
		UPLOAD_DIR:           getenv("UPLOAD_DIR", "uploads"),
		LOG_LEVEL:            getenv("LOG_LEVEL", "info"),
	}

	return config, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getDuration accepts either a Go duration ("15m") or plain seconds ("900").
// Unset or unparsable values map to zero so that the missing-config check
// fires at token-generation time instead of being silently defaulted here.
func getDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("invalid duration for %s: %q", key, v)
	return 0
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	MustNonEmpty(cfg.DB_HOST, "DB_HOST")
	MustNonEmpty(cfg.DB_PORT, "DB_PORT")
	MustNonEmpty(cfg.DB_USER, "DB_USER")
	MustNonEmpty(cfg.DB_NAME, "DB_NAME")

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.Post{}, &models.Comment{}); err != nil {
		return nil, fmt.Errorf("cannot run migrations: %w", err)
	}
	return db, nil
}
