package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"worksync/internal/utils/logger"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultEnv           = logger.EnvLocal
	defaultConfigDir     = ".worksync"
	defaultSyncInterval  = 30
	defaultProbeInterval = 10
	defaultMaxAttempts   = 5
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	ConfigDir     string `mapstructure:"config_dir"`
	DataPath      string `mapstructure:"data_path"`
	LogFile       string `mapstructure:"log_file"`
	SyncInterval  int    `mapstructure:"sync_interval_seconds"`
	ProbeInterval int    `mapstructure:"probe_interval_seconds"`
	MaxAttempts   int    `mapstructure:"max_attempts"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	config, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return config
}

// Load читает .env (если есть), переменные окружения и уже прочитанный viper-конфиг
func Load() (*Config, error) {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", defaultSyncInterval)
	viper.SetDefault("PROBE_INTERVAL_SECONDS", defaultProbeInterval)
	viper.SetDefault("MAX_ATTEMPTS", defaultMaxAttempts)
	viper.SetDefault("ENABLE_TLS", false)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	dataPath := viper.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "worksync.db")
	}

	logFile := viper.GetString("LOG_FILE")
	if logFile == "" {
		logFile = filepath.Join(configDir, "sync.log")
	}

	config := &Config{
		Env:           viper.GetString("APP_ENV"),
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		ConfigDir:     configDir,
		DataPath:      dataPath,
		LogFile:       logFile,
		SyncInterval:  viper.GetInt("SYNC_INTERVAL_SECONDS"),
		ProbeInterval: viper.GetInt("PROBE_INTERVAL_SECONDS"),
		MaxAttempts:   viper.GetInt("MAX_ATTEMPTS"),
		EnableTLS:     viper.GetBool("ENABLE_TLS"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval_seconds должен быть положительным: %d", c.SyncInterval)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe_interval_seconds должен быть положительным: %d", c.ProbeInterval)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts должен быть положительным: %d", c.MaxAttempts)
	}
	return nil
}

// BaseURL адрес сервера с протоколом
func (c *Config) BaseURL() string {
	scheme := "http://"
	if c.EnableTLS {
		scheme = "https://"
	}
	return scheme + c.ServerAddress
}

func (c *Config) SyncPeriod() time.Duration {
	return time.Duration(c.SyncInterval) * time.Second
}

func (c *Config) ProbePeriod() time.Duration {
	return time.Duration(c.ProbeInterval) * time.Second
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == logger.EnvProd
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == logger.EnvLocal || c.Env == ""
}
