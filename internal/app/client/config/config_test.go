package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()

	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("SERVER_ADDRESS", "sync.example.com")
	t.Setenv("ENABLE_TLS", "true")
	t.Setenv("SYNC_INTERVAL_SECONDS", "15")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://sync.example.com", cfg.BaseURL())
	assert.Equal(t, filepath.Join(dir, "worksync.db"), cfg.DataPath)
	assert.Equal(t, filepath.Join(dir, "sync.log"), cfg.LogFile)
	assert.Equal(t, 15*time.Second, cfg.SyncPeriod())
	assert.Equal(t, 10*time.Second, cfg.ProbePeriod())
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.True(t, cfg.IsLocal())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{ServerAddress: "localhost:8080", SyncInterval: 30, ProbeInterval: 10, MaxAttempts: 5},
		},
		{
			name:    "empty server",
			cfg:     Config{SyncInterval: 30, ProbeInterval: 10, MaxAttempts: 5},
			wantErr: true,
		},
		{
			name:    "zero interval",
			cfg:     Config{ServerAddress: "localhost:8080", ProbeInterval: 10, MaxAttempts: 5},
			wantErr: true,
		},
		{
			name:    "zero attempts",
			cfg:     Config{ServerAddress: "localhost:8080", SyncInterval: 30, ProbeInterval: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
