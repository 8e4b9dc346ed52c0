package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunPrefix(t *testing.T) {
	at := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024/03/5f0c", RunPrefix("5f0c", at))
}

func TestInit_NotConfigured(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "")
	t.Setenv("MINIO_ACCESS_KEY", "")
	t.Setenv("MINIO_SECRET_KEY", "")

	assert.ErrorIs(t, Init(), ErrNotConfigured)
	assert.False(t, Available())
}

func TestArchiveRun_Disabled(t *testing.T) {
	Client = nil

	_, err := ArchiveRun(context.Background(), "run", time.Now(), "1 PAN 0,85", []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = GetPresignedURL(context.Background(), "receipt-runs/2024/03/run/raw.txt")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
