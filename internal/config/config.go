package config

import (
	"os"
	"strconv"
)

type Config struct {
	DB_USERNAME string
	DB_PASSWORD string
	DB_HOST     string
	DB_PORT     string
	DB_NAME     string
	DISABLE_TLS string

	REDIS_ADDR     string
	REDIS_PASSWORD string
	REDIS_DB       int

	// Shared secret for service-token auth between the bot / REST facade
	// and the erp-server.
	SERVICE_TOKEN_SECRET string

	// erp-server listen address and the base URL the bot uses to reach it.
	ERP_LISTEN_ADDR string
	ERP_BASE_URL    string

	// Public desk URL used to build document links in replies.
	DESK_BASE_URL string

	TELEGRAM_BOT_TOKEN string

	// Drive-style remote storage.
	DRIVE_API_BASE_URL string
	DRIVE_API_TOKEN    string
	DRIVE_ROOT_FOLDER  string

	SMTP_HOST string
	SMTP_PORT string
	SMTP_USER string
	SMTP_PASS string
	SMTP_FROM string

	// Otel
	OTEL_EXPORTER_OTLP_ENDPOINT string
}

func ReadConfig() *Config {
	redisDB := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			redisDB = n
		}
	}

	return &Config{
		DB_USERNAME: os.Getenv("DB_USERNAME"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_NAME:     os.Getenv("DB_NAME"),
		DISABLE_TLS: os.Getenv("DISABLE_TLS"),

		REDIS_ADDR:     GetEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       redisDB,

		SERVICE_TOKEN_SECRET: os.Getenv("SERVICE_TOKEN_SECRET"),

		ERP_LISTEN_ADDR: GetEnvOrDefault("ERP_LISTEN_ADDR", "0.0.0.0:6060"),
		ERP_BASE_URL:    GetEnvOrDefault("ERP_BASE_URL", "http://localhost:6060"),
		DESK_BASE_URL:   GetEnvOrDefault("DESK_BASE_URL", "http://localhost:8000"),

		TELEGRAM_BOT_TOKEN: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DRIVE_API_BASE_URL: GetEnvOrDefault("DRIVE_API_BASE_URL", "https://www.googleapis.com/drive/v3"),
		DRIVE_API_TOKEN:    os.Getenv("DRIVE_API_TOKEN"),
		DRIVE_ROOT_FOLDER:  os.Getenv("DRIVE_ROOT_FOLDER"),

		SMTP_HOST: os.Getenv("SMTP_HOST"),
		SMTP_PORT: GetEnvOrDefault("SMTP_PORT", "587"),
		SMTP_USER: os.Getenv("SMTP_USER"),
		SMTP_PASS: os.Getenv("SMTP_PASS"),
		SMTP_FROM: GetEnvOrDefault("SMTP_FROM", "noreply@ferum.example"),

		OTEL_EXPORTER_OTLP_ENDPOINT: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
