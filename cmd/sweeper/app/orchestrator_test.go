package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/filter-sweep/internal/storage"
	"github.com/roman-kulish/filter-sweep/internal/sweep"
)

func testConfig() *Config {
	c := DefaultConfig()
	c.Sweep.SampleRate = 1e6
	c.Sweep.StartFreq = 1129.9e6
	c.Sweep.EndFreq = 1130.1e6
	c.Sweep.Step = 50e3
	c.Sweep.SettleTime = 0
	c.Sweep.SettleFrames = 6
	c.Sweep.FrameTimeout = Duration(5 * time.Second)
	c.Receiver.FrameRate = 1000
	c.Receiver.AvgAlpha = 1
	return c
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()
	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "sweep.sqlite"))
	defer store.Close()

	reg := prometheus.NewRegistry()

	var out bytes.Buffer
	o := NewOrchestrator(testConfig(), &out, discardLogger(),
		WithStore(store),
		WithRegistry(reg),
		WithMaxBatchSize(2),
	)

	records, err := o.Run(ctx)
	require.NoError(t, err)
	require.Len(t, records, 5)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "centre_freq,amplitude", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1129900000,"))
	assert.True(t, strings.HasPrefix(lines[5], "1130100000,"))

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	r, err := store.ReadRecords(ctx, sessions[0].ID)
	require.NoError(t, err)
	stored, err := r.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 5, "the last partial batch is flushed")
	for i := range records {
		assert.Equal(t, records[i].CenterFreq, stored[i].CenterFreq)
		assert.Equal(t, records[i].Amplitude, stored[i].Amplitude)
	}

	count, err := testutil.GatherAndCount(reg, "filter_sweep_steps_total", "filter_sweep_frames_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestOrchestrator_TuningFailure(t *testing.T) {
	ctx := context.Background()
	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "sweep.sqlite"))
	defer store.Close()

	c := testConfig()
	// the simulated receiver tunes up to 6 GHz
	c.Sweep.StartFreq = 5.9999e9
	c.Sweep.EndFreq = 6.0001e9
	c.Sweep.InputSignalFreq = 6e9

	var out bytes.Buffer
	records, err := NewOrchestrator(c, &out, discardLogger(), WithStore(store)).Run(ctx)

	assert.ErrorIs(t, err, &sweep.TuningError{})
	assert.Equal(t, ExitTuning, ExitCode(err))
	assert.Len(t, records, 3)
	assert.Equal(t, 4, strings.Count(out.String(), "\n"))

	// records measured before the abort are flushed to the session
	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	r, err := store.ReadRecords(ctx, sessions[0].ID)
	require.NoError(t, err)
	stored, err := r.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i := range records {
		assert.Equal(t, records[i].Step, stored[i].Step)
		assert.Equal(t, records[i].CenterFreq, stored[i].CenterFreq)
	}
}

// rejectingStore accepts sessions and rejects every record.
type rejectingStore struct {
	*storage.SqliteStore
}

func (s rejectingStore) StoreRecords(context.Context, int64, []sweep.Record) error {
	return errors.New("database is locked")
}

func TestOrchestrator_StoreFailure(t *testing.T) {
	store := rejectingStore{storage.NewSqliteStore(filepath.Join(t.TempDir(), "sweep.sqlite"))}
	defer store.Close()

	var out bytes.Buffer
	records, err := NewOrchestrator(testConfig(), &out, discardLogger(),
		WithStore(store),
		WithMaxBatchSize(1),
	).Run(context.Background())

	require.Error(t, err)
	assert.Empty(t, records)
	// a record the store rejected is not printed either
	assert.Equal(t, "centre_freq,amplitude\n", out.String())
}

func TestOrchestrator_SettingRejected(t *testing.T) {
	c := testConfig()
	c.Receiver.Antenna = "RX1"

	records, err := NewOrchestrator(c, io.Discard, discardLogger()).Run(context.Background())
	assert.Equal(t, ExitTuning, ExitCode(err))
	assert.Empty(t, records)
}

func TestOrchestrator_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOrchestrator(testConfig(), io.Discard, discardLogger()).Run(ctx)
	assert.Equal(t, ExitInterrupted, ExitCode(err))
}
