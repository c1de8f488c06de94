package main

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFlusher struct {
	calls atomic.Int64
	err   error
}

func (f *countingFlusher) FlushDirty(_ context.Context) (int, error) {
	f.calls.Add(1)

	return 1, f.err
}

func TestAutosaver_Start(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		schedule  string
		expectErr bool
	}{
		{"disabled", "", false},
		{"descriptor", "@every 1h", false},
		{"standard cron", "*/5 * * * *", false},
		{"invalid", "every now and then", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := &countingFlusher{}
			autosaver := NewAutosaver(slog.Default(), f)

			err := autosaver.Start(tt.schedule)
			if tt.expectErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			autosaver.Stop(t.Context())
		})
	}
}

func TestAutosaver_StopFlushes(t *testing.T) {
	t.Parallel()

	f := &countingFlusher{}
	autosaver := NewAutosaver(slog.Default(), f)

	require.NoError(t, autosaver.Start("@every 1h"))
	autosaver.Stop(t.Context())

	assert.Equal(t, int64(1), f.calls.Load())

	autosaver.Stop(t.Context())
	assert.Equal(t, int64(1), f.calls.Load())
}

func TestAutosaver_RunsOnSchedule(t *testing.T) {
	t.Parallel()

	f := &countingFlusher{err: errors.New("disk full")}
	autosaver := NewAutosaver(slog.Default(), f)

	require.NoError(t, autosaver.Start("@every 1s"))
	defer autosaver.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return f.calls.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestAutosaver_DisabledStopIsNoop(t *testing.T) {
	t.Parallel()

	f := &countingFlusher{}
	autosaver := NewAutosaver(slog.Default(), f)

	require.NoError(t, autosaver.Start(""))
	autosaver.Stop(t.Context())

	assert.Zero(t, f.calls.Load())
}
