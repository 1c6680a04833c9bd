package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcsync/internal/domain"
)

func qty(s string) *string { return &s }

func sampleSet() domain.ResultSet {
	return domain.ResultSet{
		{ID: "A", DisplayName: "Ravi", Status: domain.StatusDone, Quantity: qty("10.000")},
		{ID: "B", DisplayName: "Lakshmi", Status: domain.StatusNotDone},
		{ID: "C", DisplayName: "Unknown", Status: domain.StatusUnknown},
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "results.json"))
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleSet()))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSet(), got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    {\n        \"CARDNO\": \"A\"")
	assert.Contains(t, string(raw), `"Avail.Commodity": null`)
}

func TestFileStoreSaveReplacesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "results.json"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleSet()))
	require.NoError(t, s.Save(ctx, sampleSet()[:1]))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "results.json", entries[0].Name())
}

func TestFileStoreFailedSaveKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleSet()))

	// A directory in place of the parent makes the temp file impossible to create.
	blocked, err := NewFileStore(filepath.Join(path, "child.json"))
	require.NoError(t, err)
	err = blocked.Save(ctx, sampleSet())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSet(), got)
}

func TestFileStoreEmptyFileIsEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))
	s, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "out.json")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.Describe(), "file:"))

	_, err = Open(ctx, Config{Driver: "ftp"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: DriverS3})
	assert.Error(t, err)

	_, err = NewFileStore("")
	assert.Error(t, err)
}
