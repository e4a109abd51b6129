package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/templatecheck/internal/filelock"
	"github.com/harrison/templatecheck/internal/history"
	"github.com/harrison/templatecheck/internal/models"
)

func TestCleanCommand(t *testing.T) {
	p := newTestProject(t, []string{"basics", "minimal"}, nil)
	for _, name := range []string{"basics", "minimal", "unlisted"} {
		require.NoError(t, os.MkdirAll(filepath.Join(p.fixtures, name, "src"), 0755))
	}

	output, err := execute(t, "clean", "--config", p.configPath, "--template", "minimal")
	require.NoError(t, err)
	assert.Contains(t, output, "Removed 1 fixture(s)")
	assert.NoDirExists(t, filepath.Join(p.fixtures, "minimal"))
	assert.DirExists(t, filepath.Join(p.fixtures, "basics"))

	output, err = execute(t, "clean", "--config", p.configPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Removed 1 fixture(s)")
	assert.NoDirExists(t, filepath.Join(p.fixtures, "basics"))
	assert.DirExists(t, filepath.Join(p.fixtures, "unlisted"), "only listed templates are removed")
}

func TestCleanCommand_NoFixtures(t *testing.T) {
	p := newTestProject(t, []string{"minimal"}, nil)

	output, err := execute(t, "clean", "--config", p.configPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Nothing to clean")
}

func TestCleanCommand_RefusesWhileLocked(t *testing.T) {
	p := newTestProject(t, []string{"minimal"}, nil)
	release, err := filelock.LockDir(p.fixtures)
	require.NoError(t, err)
	defer release()

	_, err = execute(t, "clean", "--config", p.configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is using")
}

func TestCleanCommand_PrunesHistory(t *testing.T) {
	p := newTestProject(t, []string{"minimal"}, nil)

	store, err := history.NewStore(p.historyDB)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.RecordRun(ctx, &models.RunResult{RunID: "old", StartedAt: time.Now().Add(-72 * time.Hour)}))
	require.NoError(t, store.RecordRun(ctx, &models.RunResult{RunID: "new", StartedAt: time.Now()}))
	require.NoError(t, store.Close())

	output, err := execute(t, "clean", "--config", p.configPath, "--history-older-than", "24h")
	require.NoError(t, err)
	assert.Contains(t, output, "Pruned 1 run(s) from history")
}
