package history

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/templatecheck/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string, startedAt time.Time, failDev bool) *models.RunResult {
	run := &models.RunResult{RunID: id, Revision: "abc123", StartedAt: startedAt, Duration: 42 * time.Second}
	for _, name := range []string{"basics", "minimal"} {
		for _, kind := range models.CaseKinds {
			c := models.CaseResult{
				Template:  models.Template{Name: name},
				Kind:      kind,
				Passed:    true,
				Duration:  1500 * time.Millisecond,
				StartedAt: startedAt,
			}
			if failDev && name == "minimal" && kind == models.CaseDev {
				c.Passed = false
				c.Message = "dev server failed to start: no output for 10s"
				c.Output = "compiling..."
			}
			run.Add(c)
		}
	}
	return run
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{name: "in-memory", dbPath: ":memory:"},
		{name: "file", dbPath: filepath.Join(t.TempDir(), "history.db")},
		{name: "creates parent directories", dbPath: filepath.Join(t.TempDir(), "a", "b", "history.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			version, err := store.GetLatestVersion()
			require.NoError(t, err)
			assert.Equal(t, len(migrations), version)
			assert.Equal(t, tt.dbPath, store.Path())
		})
	}
}

func TestStore_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordRun(context.Background(), sampleRun("run-1", time.Now(), false)))
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_RecordAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordRun(ctx, sampleRun("6f1c2d3e-aaaa", started, true)))

	run, err := store.GetRun(ctx, "6f1c2d3e-aaaa")
	require.NoError(t, err)
	assert.Equal(t, "abc123", run.Revision)
	assert.Equal(t, 6, run.Total)
	assert.Equal(t, 5, run.Passed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 42*time.Second, run.Duration)
	assert.True(t, started.Equal(run.StartedAt))

	cases, err := store.GetCases(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, cases, 6)
	assert.Equal(t, "basics (install)", cases[0].Label())
	assert.Equal(t, "minimal (build)", cases[5].Label())

	failed := cases[4]
	assert.Equal(t, "minimal (dev)", failed.Label())
	assert.False(t, failed.Passed)
	assert.Contains(t, failed.Message, "failed to start")
	assert.Equal(t, "compiling...", failed.Output)
	assert.Equal(t, 1500*time.Millisecond, failed.Duration)

	assert.Empty(t, cases[0].Output, "output is only kept for failures")
}

func TestStore_GetRunByPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.RecordRun(ctx, sampleRun("abcd-1111", now, false)))
	require.NoError(t, store.RecordRun(ctx, sampleRun("abcd-2222", now, false)))

	run, err := store.GetRun(ctx, "abcd-2")
	require.NoError(t, err)
	assert.Equal(t, "abcd-2222", run.ID)

	_, err = store.GetRun(ctx, "abcd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	_, err = store.GetRun(ctx, "zzz")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = store.GetRun(ctx, "%")
	assert.True(t, errors.Is(err, ErrRunNotFound), "LIKE wildcards are matched literally")
}

func TestStore_ListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.RecordRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour), false)))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "second", runs[1].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_RecordRunRejectsDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordRun(ctx, sampleRun("dup", time.Now(), false)))
	require.Error(t, store.RecordRun(ctx, sampleRun("dup", time.Now(), false)))

	cases, err := store.GetCases(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, cases, 6, "failed insert must not leave partial cases")

	assert.Error(t, store.RecordRun(ctx, nil))
	assert.Error(t, store.RecordRun(ctx, &models.RunResult{}))
}

func TestStore_GetCaseStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordRun(ctx, sampleRun("r1", base, true)))
	require.NoError(t, store.RecordRun(ctx, sampleRun("r2", base.Add(time.Hour), false)))

	stats, err := store.GetCaseStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 6)

	assert.Equal(t, "basics", stats[0].Template)
	assert.Equal(t, models.CaseStructure, stats[0].Kind)

	var dev CaseStats
	for _, s := range stats {
		if s.Template == "minimal" && s.Kind == models.CaseDev {
			dev = s
		}
	}
	assert.Equal(t, 2, dev.Runs)
	assert.Equal(t, 1, dev.Failures)
	assert.InDelta(t, 0.5, dev.PassRate(), 0.001)
	assert.True(t, base.Equal(dev.LastFailed), "got %v", dev.LastFailed)

	assert.Equal(t, float64(0), CaseStats{}.PassRate())
}

func TestStore_DeleteRunsBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.RecordRun(ctx, sampleRun("old", now.Add(-48*time.Hour), false)))
	require.NoError(t, store.RecordRun(ctx, sampleRun("new", now, false)))

	n, err := store.DeleteRunsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)

	cases, err := store.GetCases(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 5))
	assert.Equal(t, "cde", tail("abcde", 3))
	assert.True(t, strings.HasSuffix(tail(strings.Repeat("x", 100)+"end", 10), "end"))
}
