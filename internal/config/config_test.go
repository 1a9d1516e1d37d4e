package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
database:
  host: localhost
  port: 5432
  user: capd
  name: capd_db

scheduler:
  reschedule_offset_days: 7
  follow_up_offset_days: 90
`

func loadFrom(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	viper.Reset()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	return LoadConfig()
}

func TestFollowUpOffsetIsItsOwnKnob(t *testing.T) {
	cfg, err := loadFrom(t, minimalConfig)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Scheduler.RescheduleOffsetDays)
	assert.Equal(t, 90, cfg.Scheduler.FollowUpOffsetDays)
}

func TestSchedulerDefaults(t *testing.T) {
	cfg, err := loadFrom(t, `
database:
  host: localhost
  port: 5432
  user: capd
  name: capd_db
`)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Scheduler.RescheduleOffsetDays)
	assert.Equal(t, 30, cfg.Scheduler.FollowUpOffsetDays)
	assert.Equal(t, 30, cfg.Scheduler.MaxCollisionProbes)
	assert.Equal(t, "0 8 * * *", cfg.Scheduler.DetectionCron)
}

func TestInvalidConfigRejected(t *testing.T) {
	_, err := loadFrom(t, `
database:
  host: localhost
  port: 5432
  user: capd
  name: capd_db

scheduler:
  reschedule_offset_days: 0
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
