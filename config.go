package eventchain

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type (
	Config struct {
		Logger             *zap.Logger
		Registerer         prometheus.Registerer
		Archive            ArchiveConfig
		PaginationInterval int
		MaxCheckpoints     int
	}

	// ArchiveConfig controls the worker pool that hands removed events to
	// an Archiver. A nil Archiver disables archiving
	ArchiveConfig struct {
		Archiver     Archiver
		WorkerCount  int
		MaxQueueSize int
		SaveTimeout  time.Duration
	}
)

const (
	DefaultPaginationInterval = 10000
	DefaultMaxCheckpoints     = 0
	DefaultArchiveWorkers     = 2
	DefaultArchiveQueueSize   = 256
	DefaultArchiveSaveTimeout = 30 * time.Second
)

// ErrInvalidConfig indicates NewStore was given an unusable Config
var ErrInvalidConfig = errors.New("invalid config")

func DefaultConfig() Config {
	return Config{
		Archive:            DefaultArchiveConfig(),
		PaginationInterval: DefaultPaginationInterval,
		MaxCheckpoints:     DefaultMaxCheckpoints,
	}
}

func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		WorkerCount:  DefaultArchiveWorkers,
		MaxQueueSize: DefaultArchiveQueueSize,
		SaveTimeout:  DefaultArchiveSaveTimeout,
	}
}

func (c Config) validate() error {
	if c.PaginationInterval <= 0 {
		return fmt.Errorf(
			"%w: pagination interval must be positive, got %d",
			ErrInvalidConfig, c.PaginationInterval,
		)
	}
	if c.MaxCheckpoints < 0 {
		return fmt.Errorf(
			"%w: max checkpoints must not be negative, got %d",
			ErrInvalidConfig, c.MaxCheckpoints,
		)
	}
	if c.Archive.Archiver == nil {
		return nil
	}
	if c.Archive.WorkerCount <= 0 {
		return fmt.Errorf(
			"%w: archive worker count must be positive, got %d",
			ErrInvalidConfig, c.Archive.WorkerCount,
		)
	}
	if c.Archive.SaveTimeout <= 0 {
		return fmt.Errorf(
			"%w: archive save timeout must be positive, got %s",
			ErrInvalidConfig, c.Archive.SaveTimeout,
		)
	}
	if c.Archive.MaxQueueSize < 0 {
		return fmt.Errorf(
			"%w: archive queue size must not be negative, got %d",
			ErrInvalidConfig, c.Archive.MaxQueueSize,
		)
	}
	return nil
}
