package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "mcp-pid-tagger", cfg.ServerName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, DefaultCachePages, cfg.CachePages)
	assert.Empty(t, cfg.SettingsFile)

	currentDir, _ := os.Getwd()
	assert.Equal(t, currentDir, cfg.DrawingDirectory)
	assert.Equal(t, filepath.Join(currentDir, DefaultDBName), cfg.DBPath)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		Mode:             ModeStdio,
		Host:             DefaultHost,
		Port:             DefaultPort,
		DrawingDirectory: dir,
		DBPath:           filepath.Join(dir, "projects.db"),
		CachePages:       16,
		LogLevel:         "info",
		MaxFileSize:      1024,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid stdio config", func(*Config) {}, ""},
		{"valid server config", func(c *Config) { c.Mode = ModeServer }, ""},
		{"invalid mode", func(c *Config) { c.Mode = "invalid" }, "mode must be"},
		{"port too low in server mode", func(c *Config) { c.Mode = ModeServer; c.Port = 0 }, "port must be"},
		{"port too high in server mode", func(c *Config) { c.Mode = ModeServer; c.Port = 70000 }, "port must be"},
		{"port ignored in stdio mode", func(c *Config) { c.Port = 0 }, ""},
		{"empty drawing directory", func(c *Config) { c.DrawingDirectory = "" }, "drawing directory cannot be empty"},
		{"zero max file size", func(c *Config) { c.MaxFileSize = 0 }, "maximum file size"},
		{"negative cache pages", func(c *Config) { c.CachePages = -1 }, "cache pages"},
		{"zero cache pages uses default", func(c *Config) { c.CachePages = 0 }, ""},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "project database"},
		{"missing settings file", func(c *Config) { c.SettingsFile = "/does/not/exist.yaml" }, "settings file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidateCreatesDrawingDirectory(t *testing.T) {
	cfg := validConfig(t)
	cfg.DrawingDirectory = filepath.Join(t.TempDir(), "plant", "drawings")

	require.NoError(t, cfg.Validate())
	info, err := os.Stat(cfg.DrawingDirectory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigValidateLogLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run("valid_"+level, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.LogLevel = level
			assert.NoError(t, cfg.Validate())
		})
	}
	for _, level := range []string{"DEBUG", "trace", "fatal", ""} {
		t.Run("invalid_"+level, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.LogLevel = level
			assert.ErrorContains(t, cfg.Validate(), "invalid log level")
		})
	}
}

func TestConfigLevel(t *testing.T) {
	tests := []struct {
		level string
		want  log.Level
	}{
		{"debug", log.DebugLevel},
		{"info", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"bogus", log.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			assert.Equal(t, tt.want, cfg.Level())
		})
	}

	logger := (&Config{LogLevel: "warn", ServerName: "test"}).NewLogger()
	assert.Equal(t, log.WarnLevel, logger.GetLevel())
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{Host: "192.168.1.1", Port: 9090}
	assert.Equal(t, "192.168.1.1:9090", cfg.Address())
}

func TestConfigModes(t *testing.T) {
	tests := []struct {
		mode       string
		wantServer bool
		wantStdio  bool
	}{
		{ModeServer, true, false},
		{ModeStdio, false, true},
		{"invalid", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := &Config{Mode: tt.mode}
			assert.Equal(t, tt.wantServer, cfg.IsServerMode())
			assert.Equal(t, tt.wantStdio, cfg.IsStdioMode())
		})
	}

	assert.True(t, (&Config{LogLevel: "debug"}).IsDebug())
	assert.False(t, (&Config{LogLevel: "info"}).IsDebug())
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Mode:             ModeServer,
		Host:             "localhost",
		Port:             8080,
		DrawingDirectory: "/plant/drawings",
		DBPath:           "/plant/projects.db",
		CachePages:       64,
		LogLevel:         "debug",
		MaxFileSize:      1024,
	}

	result := cfg.String()
	for _, substr := range []string{
		"Mode: server",
		"Host: localhost",
		"Port: 8080",
		"DrawingDirectory: /plant/drawings",
		"DBPath: /plant/projects.db",
		"CachePages: 64",
		"LogLevel: debug",
		"MaxFileSize: 1024",
	} {
		assert.Contains(t, result, substr)
	}
}
