package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"worksync/internal/utils/logger"
)

const (
	envPath = ".env"

	defaultRunAddress = "localhost:8080"
	defaultMigrations = "migrations"
	defaultBlobDir    = "data/blobs"
	defaultUploadTTL  = 900
)

type Config struct {
	Env     string
	DB      db
	Server  server
	Storage storage
}

type db struct {
	// DatabaseURI пустой адрес включает хранилище в памяти
	DatabaseURI string
	Migrations  string
}

type server struct {
	RunAddress string
	// PublicBaseURL внешний адрес для ссылок на файлы
	PublicBaseURL string
	UploadTTL     time.Duration
}

type storage struct {
	BlobDir string
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

func Load() (*Config, error) {
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetDefault("APP_ENV", logger.EnvLocal)
	viper.SetDefault("RUN_ADDRESS", defaultRunAddress)
	viper.SetDefault("MIGRATIONS_PATH", defaultMigrations)
	viper.SetDefault("BLOB_DIR", defaultBlobDir)
	viper.SetDefault("UPLOAD_TTL_SECONDS", defaultUploadTTL)

	runAddress := viper.GetString("RUN_ADDRESS")
	publicURL := viper.GetString("PUBLIC_BASE_URL")
	if publicURL == "" {
		publicURL = "http://" + runAddress
	}

	cfg := &Config{
		Env: viper.GetString("APP_ENV"),
		DB: db{
			DatabaseURI: viper.GetString("DATABASE_URI"),
			Migrations:  viper.GetString("MIGRATIONS_PATH"),
		},
		Server: server{
			RunAddress:    runAddress,
			PublicBaseURL: strings.TrimRight(publicURL, "/"),
			UploadTTL:     time.Duration(viper.GetInt("UPLOAD_TTL_SECONDS")) * time.Second,
		},
		Storage: storage{BlobDir: viper.GetString("BLOB_DIR")},
	}

	if cfg.Server.UploadTTL <= 0 {
		return nil, fmt.Errorf("UPLOAD_TTL_SECONDS должен быть положительным")
	}

	return cfg, nil
}
