package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/models"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := common.NewDefaultConfig()
	cfg.Cache.Path = filepath.Join(dir, "cache")
	cfg.Storage.Badger.Path = filepath.Join(dir, "data")
	cfg.Run.Recipe = "UpgradeParentPom"
	return cfg
}

func TestNew_WiresEveryService(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, models.RecipePrefix+"UpgradeParentPom", a.Recipe.Name)
	assert.NotNil(t, a.Modernizer)
	assert.NotNil(t, a.Runs)
	assert.Equal(t, cfg.Cache.Path, a.Cache.Root())
	assert.Equal(t, "plugin-modernizer/UpgradeParentPom", a.Modernizer.Branch())
}

func TestNew_UnknownRecipe(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.Recipe = "DoesNotExist"

	_, err := New(cfg, arbor.NewNoOpLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DoesNotExist")
}

func TestNew_WithoutRunHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Badger.Path = ""

	a, err := New(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.Runs)
	_, err = a.History(context.Background(), "", 10)
	assert.Error(t, err)

	deleted, err := a.PruneHistory(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestPruneHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Badger.RetentionDays = 7

	a, err := New(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, a.Runs.SaveRun(ctx, &models.RunRecord{
		ID: "old", RunID: "r1", Plugin: "login-theme", Status: models.PluginStatusCompleted,
		StartedAt: now.AddDate(0, 0, -30), FinishedAt: now.AddDate(0, 0, -30),
	}))
	require.NoError(t, a.Runs.SaveRun(ctx, &models.RunRecord{
		ID: "new", RunID: "r2", Plugin: "login-theme", Status: models.PluginStatusFailed,
		StartedAt: now, FinishedAt: now,
	}))

	deleted, err := a.PruneHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	records, err := a.History(ctx, "login-theme", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].ID)
}

func TestStartScheduler_RegistersJobs(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.StartScheduler(context.Background(), []string{"login-theme"}))
	assert.True(t, a.SchedulerService.IsRunning())

	statuses := a.SchedulerService.GetAllJobStatuses()
	require.Contains(t, statuses, ModernizeJob)
	require.Contains(t, statuses, PruneHistoryJob)
	assert.Equal(t, cfg.Scheduler.Schedule, statuses[ModernizeJob].Schedule)
}
