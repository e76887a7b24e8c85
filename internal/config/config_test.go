package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Lattice)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.False(t, cfg.CronEnabled)
	assert.NotEmpty(t, cfg.HostID)
	assert.NotNil(t, cfg.Labels)
}

func TestLoadFromFile(t *testing.T) {
	Reset()
	dir := t.TempDir()
	path := filepath.Join(dir, "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lattice: prod\nhost_id: N1\nredis_addr: redis:6379\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Lattice)
	assert.Equal(t, "N1", cfg.HostID)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
}

func TestLoadCronJobs(t *testing.T) {
	Reset()
	dir := t.TempDir()
	path := filepath.Join(dir, "lattice.yaml")
	body := "lattice: prod\ncron_enabled: true\ncron_jobs:\n" +
		"  - target_id: PPROVIDER1\n    link_name: default\n    job_name: heartbeat\n    cron_expression: \"*/5 * * * *\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.CronEnabled)
	require.Len(t, cfg.CronJobs, 1)
	assert.Equal(t, "PPROVIDER1", cfg.CronJobs[0].TargetID)
	assert.Equal(t, "heartbeat", cfg.CronJobs[0].JobName)
	assert.Equal(t, "*/5 * * * *", cfg.CronJobs[0].CronExpr)
}

func TestLoadEnvOverride(t *testing.T) {
	Reset()
	t.Chdir(t.TempDir())
	t.Setenv("LATTICE_LATTICE", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Lattice)
}

func TestLoadIsSingleton(t *testing.T) {
	Reset()
	t.Chdir(t.TempDir())

	cfg1, err := Load("")
	require.NoError(t, err)
	cfg2, err := Load("")
	require.NoError(t, err)
	assert.Same(t, cfg1, cfg2)
}

func TestSetLabelConcurrent(t *testing.T) {
	Reset()
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg.SetLabel("k", "v")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, "v", cfg.Labels["k"])
}
