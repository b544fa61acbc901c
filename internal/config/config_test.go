package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("PORT", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("SESSION_BACKEND", "")
	t.Setenv("SESSION_PATH", "/tmp/hf")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, SessionFile, cfg.SessionBackend)
	assert.Equal(t, "/tmp/hf", cfg.SessionPath)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 800, cfg.ImageMaxEdge)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Malformed(t *testing.T) {
	t.Setenv("READY_TIMEOUT", "soon")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "READY_TIMEOUT")

	t.Setenv("READY_TIMEOUT", "")
	t.Setenv("IMAGE_QUALITY", "high")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "IMAGE_QUALITY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		server  bool
		wantErr string
	}{
		{"missing uri", Config{SessionBackend: SessionFile}, false, "MONGODB_URI"},
		{"missing password", Config{MongoDBURI: "mongodb+srv://u:<password>@x", SessionBackend: SessionFile}, false, "MONGODB_PASSWORD"},
		{"redis without url", Config{MongoDBURI: "mongodb://x", SessionBackend: SessionRedis}, false, "REDIS_URL"},
		{"unknown backend", Config{MongoDBURI: "mongodb://x", SessionBackend: "disk"}, false, "SESSION_BACKEND"},
		{"server needs secret", Config{MongoDBURI: "mongodb://x", SessionBackend: SessionMemory}, true, "JWT_SECRET"},
		{"ok", Config{MongoDBURI: "mongodb://x", SessionBackend: SessionMemory, JWTSecret: "s"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.server {
				err = tt.cfg.RequireServer()
			} else {
				err = tt.cfg.Validate()
			}
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestOverlay(t *testing.T) {
	cfg := &Config{Port: "8080", MongoDBDatabase: "humanfolio", SessionBackend: SessionFile}
	path := filepath.Join(t.TempDir(), "humanfolio.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_backend: redis\nredis_url: redis://localhost:6379/0\nready_timeout: 3s\n"), 0o600))

	require.NoError(t, cfg.Overlay(path))
	assert.Equal(t, SessionRedis, cfg.SessionBackend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 3*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, "8080", cfg.Port, "keys absent from the file are kept")

	assert.Error(t, cfg.Overlay(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestMongoURI(t *testing.T) {
	cfg := Config{MongoDBURI: "mongodb+srv://app:<password>@cluster0", MongoDBPassword: "pw"}
	assert.Equal(t, "mongodb+srv://app:pw@cluster0", cfg.MongoURI())
}
