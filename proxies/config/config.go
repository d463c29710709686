// Package config holds the engine configuration: logging and the backing
// store of the type registry.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// StoreKind selects the type registry backend.
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreMemDB  StoreKind = "memdb"
)

type Config struct {
	LogLevel    string    `yaml:"log_level"`   // default: info
	Development bool      `yaml:"development"` // default: false
	Store       StoreKind `yaml:"store"`       // default: memory
}

// NewConfig returns a normalized Config. Unknown levels fall back to info and
// unknown stores fall back to memory.
func NewConfig(logLevel string, development bool, store StoreKind) Config {
	if _, err := zapcore.ParseLevel(logLevel); logLevel == "" || err != nil {
		logLevel = zapcore.InfoLevel.String()
	}
	if store != StoreMemDB {
		store = StoreMemory
	}
	return Config{
		LogLevel:    logLevel,
		Development: development,
		Store:       store,
	}
}

func Default() Config {
	return NewConfig("", false, StoreMemory)
}

// FromEnv reads .env files (if present) and builds a Config from the
// environment. Variables already set in the process win over file values.
func FromEnv(envFiles ...string) Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env is optional
	_ = godotenv.Load(files...)

	return NewConfig(
		os.Getenv(EnvLogLevel),
		envBool(EnvLogDevelopment, false),
		StoreKind(os.Getenv(EnvRegistryStore)),
	)
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	var raw Config
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return NewConfig(raw.LogLevel, raw.Development, raw.Store), nil
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
