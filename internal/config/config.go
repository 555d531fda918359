// Package config resolves process configuration for the P&ID tagger from
// flags, PID_TAGGER_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ModeStdio  = "stdio"
	ModeServer = "server"

	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024
	DefaultCachePages  = 256
	DefaultDBName      = ".pid-tagger.db"
	DefaultDirPerm     = 0o750

	envPrefix = "PID_TAGGER"
	memoryDB  = ":memory:"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Config is the resolved process configuration
type Config struct {
	Mode string
	Host string
	Port int

	DrawingDirectory string // every tool path is confined to it
	SettingsFile     string // optional YAML pattern/tolerance file
	DBPath           string // SQLite project database, or ":memory:"
	CachePages       int    // page-run cache capacity; 0 means the cache default

	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // bytes
}

// DefaultConfig returns the configuration used when nothing is set. Drawings
// and the project database default to the working directory.
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Config{
		Mode:             ModeStdio,
		Host:             DefaultHost,
		Port:             DefaultPort,
		DrawingDirectory: wd,
		DBPath:           filepath.Join(wd, DefaultDBName),
		CachePages:       DefaultCachePages,
		Version:          "1.0.0",
		ServerName:       "mcp-pid-tagger",
		LogLevel:         DefaultLogLevel,
		MaxFileSize:      DefaultMaxFileSize,
	}
}

// binding ties one flag to its viper key and Config field
type binding struct {
	name     string
	register func(fs *pflag.FlagSet)
	load     func()
}

func stringBinding(name string, field *string, usage string) binding {
	return binding{
		name: name,
		register: func(fs *pflag.FlagSet) {
			fs.String(name, *field, usage)
			viper.SetDefault(name, *field)
		},
		load: func() { *field = viper.GetString(name) },
	}
}

func intBinding(name string, field *int, usage string) binding {
	return binding{
		name: name,
		register: func(fs *pflag.FlagSet) {
			fs.Int(name, *field, usage)
			viper.SetDefault(name, *field)
		},
		load: func() { *field = viper.GetInt(name) },
	}
}

func int64Binding(name string, field *int64, usage string) binding {
	return binding{
		name: name,
		register: func(fs *pflag.FlagSet) {
			fs.Int64(name, *field, usage)
			viper.SetDefault(name, *field)
		},
		load: func() { *field = viper.GetInt64(name) },
	}
}

func bindingsFor(cfg *Config) []binding {
	return []binding{
		stringBinding("mode", &cfg.Mode, "Transport: 'stdio' for MCP over standard I/O, 'server' for MCP over SSE"),
		stringBinding("host", &cfg.Host, "Listen host (server mode only)"),
		intBinding("port", &cfg.Port, "Listen port (server mode only)"),
		stringBinding("dir", &cfg.DrawingDirectory, "Directory holding the P&ID drawings; tool paths may not leave it"),
		stringBinding("loglevel", &cfg.LogLevel, "Log level: "+strings.Join(logLevels, ", ")),
		int64Binding("maxfilesize", &cfg.MaxFileSize, "Largest drawing accepted, in bytes"),
		stringBinding("settings", &cfg.SettingsFile, "YAML file with category patterns and tolerances"),
		stringBinding("db", &cfg.DBPath, "SQLite project database (':memory:' for a throwaway store)"),
		intBinding("cachepages", &cfg.CachePages, "Pages of extracted text kept in memory"),
	}
}

// LoadFromFlags resolves the configuration from the command line and the
// environment, flags taking precedence, and validates it.
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()
	bindings := bindingsFor(cfg)

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	for _, b := range bindings {
		b.register(pflag.CommandLine)
		_ = viper.BindPFlag(b.name, pflag.Lookup(b.name))
	}
	pflag.Usage = usage(bindings)

	if versionRequested(os.Args[1:]) {
		return nil, errors.New("version requested")
	}

	pflag.Parse()
	for _, b := range bindings {
		b.load()
	}

	for _, p := range []*string{&cfg.DrawingDirectory, &cfg.SettingsFile, &cfg.DBPath} {
		if *p == "" || *p == memoryDB {
			continue
		}
		if abs, err := filepath.Abs(*p); err == nil {
			*p = abs
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func versionRequested(args []string) bool {
	return slices.ContainsFunc(args, func(arg string) bool {
		return arg == "-v" || arg == "-version" || arg == "--version"
	})
}

func usage(bindings []binding) func() {
	return func() {
		prog := os.Args[0]
		w := os.Stderr
		fmt.Fprintf(w, "Usage: %s [options]\n\n", prog)
		fmt.Fprintf(w, "Extracts and curates equipment, line and instrument tags from P&ID drawings over MCP.\n\n")
		fmt.Fprintf(w, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  %s --dir=/plant/drawings\n", prog)
		fmt.Fprintf(w, "  %s --settings=patterns.yaml --db=:memory:\n", prog)
		fmt.Fprintf(w, "  %s --mode=server --host=0.0.0.0 --port=8081\n", prog)
		fmt.Fprintf(w, "\nEach option can also be set as %s_<OPTION>:\n", envPrefix)
		for _, b := range bindings {
			fmt.Fprintf(w, "  %s_%s\n", envPrefix, strings.ToUpper(b.name))
		}
	}
}

// Validate rejects unusable settings and creates the drawing directory when
// it is missing.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeStdio:
	case ModeServer:
		if c.Port < 1 || c.Port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
	default:
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.DrawingDirectory == "" {
		return errors.New("drawing directory cannot be empty")
	}
	_, err := os.Stat(c.DrawingDirectory)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(c.DrawingDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create drawing directory %s: %w", c.DrawingDirectory, err)
		}
	case err != nil:
		return fmt.Errorf("cannot access drawing directory %s: %w", c.DrawingDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.CachePages < 0 {
		return errors.New("cache pages must not be negative")
	}
	if c.DBPath == "" {
		return errors.New("project database path cannot be empty")
	}
	if c.SettingsFile != "" {
		if _, err := os.Stat(c.SettingsFile); err != nil {
			return fmt.Errorf("cannot access settings file %s: %w", c.SettingsFile, err)
		}
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(logLevels, ", "))
	}
	return nil
}

// Level maps LogLevel to a charmbracelet level, falling back to info
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// NewLogger builds the process logger. It always writes to stderr: in stdio
// mode stdout carries the MCP protocol.
func (c *Config) NewLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: c.IsServerMode() || c.IsDebug(),
		Level:           c.Level(),
		Prefix:          c.ServerName,
	})
}

// Address is the SSE listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, DrawingDirectory: %s, SettingsFile: %s, DBPath: %s, CachePages: %d, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.DrawingDirectory, c.SettingsFile, c.DBPath, c.CachePages, c.LogLevel, c.MaxFileSize)
}

func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
