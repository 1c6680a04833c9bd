// Package store persists the result snapshot between runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rcsync/internal/domain"
)

var (
	// ErrNotFound means no snapshot has been saved yet.
	ErrNotFound = errors.New("result snapshot not found")
	// ErrPersistence wraps every failure to write a snapshot.
	ErrPersistence = errors.New("result snapshot not saved")
)

const (
	DriverFile = "file"
	DriverS3   = "s3"
)

type Store interface {
	Load(ctx context.Context) (domain.ResultSet, error)
	// Save replaces the whole snapshot. On error the previous snapshot is intact.
	Save(ctx context.Context, rs domain.ResultSet) error
	Describe() string
}

type Config struct {
	Driver string
	Path   string
	S3     S3Config
}

// Open builds the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverFile:
		return NewFileStore(cfg.Path)
	case DriverS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store driver %q (want %s or %s)", cfg.Driver, DriverFile, DriverS3)
	}
}

func persistErr(target string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, target, err)
}
