package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/rotation-optimizer/internal/services"
	"github.com/stitts-dev/rotation-optimizer/pkg/config"
	"github.com/stitts-dev/rotation-optimizer/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Env:          "test",
		DataDir:      dir,
		CacheDir:     filepath.Join(dir, "cache"),
		RotationSize: 2,
		Encoding:     "pairwise",
		Solver:       "branch-and-bound",
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew_OfflineSolveFromDataDir(t *testing.T) {
	cfg := testConfig(t)
	write(t, filepath.Join(cfg.DataDir, "franchise", "Padres.csv"), "playerid,Name,WAR\n1,A,5\n2,B,4\n3,C,3\n")
	write(t, filepath.Join(cfg.DataDir, "player", "1.csv"), "teamId,ateam,aseason\n29,SDP,2001\n29,SDP,2002\n")
	write(t, filepath.Join(cfg.DataDir, "player", "2.csv"), "teamId,ateam,aseason\n29,SDP,2002\n")
	write(t, filepath.Join(cfg.DataDir, "player", "3.csv"), "teamId,ateam,aseason\n29,SDP,2010\n")

	a, err := New(context.Background(), cfg, logger.NewDiscardLogger(), Options{Offline: true})
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Fangraphs)
	assert.Nil(t, a.Redis)

	result, err := a.Service.Solve(context.Background(), services.RotationRequest{Franchise: "Padres"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, result.Solution.PickIDs())
	assert.InDelta(t, 8, result.Solution.Total, 1e-9)

	entries, err := os.ReadDir(cfg.CacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNew_RejectsBadSolverAndRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Solver = "quantum"
	_, err := New(context.Background(), cfg, logger.NewDiscardLogger(), Options{Offline: true, NoCache: true})
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.RedisURL = "not-a-url"
	_, err = New(context.Background(), cfg, logger.NewDiscardLogger(), Options{Offline: true})
	assert.Error(t, err)
}
