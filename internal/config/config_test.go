package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quadra/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123:abc")
	dir := t.TempDir()

	path := writeConfig(t, `
telegram:
  bot_token: ${TEST_BOT_TOKEN}
store:
  path: `+filepath.Join(dir, "data", "quadra.db")+`
redis:
  address: localhost:6379
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 10*time.Second, cfg.LockWaitTimeout())
	assert.Equal(t, 5, cfg.Booking.DaysAhead)
	assert.Equal(t, 90, cfg.Retention.Days)
	assert.Equal(t, 24*time.Hour, cfg.RetentionInterval())
	assert.Equal(t, "exports", cfg.Export.Dir)

	// The database parent directory is created up front.
	assert.DirExists(t, filepath.Dir(cfg.Store.Path))
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: postgres
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCatalogDefaultsWhenNoUnits(t *testing.T) {
	cfg := &Config{}
	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, models.UnitA, catalog[0].ID)
}

func TestCatalogFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
store:
  path: `+filepath.Join(dir, "quadra.db")+`
units:
  - id: A
    name: Unidade Teste
    capacity: 3
    companions: true
    schedule:
      - days: [1, 3, 5]
        times: ["09:00", "10:00"]
      - days: [7]
        times: ["08:00"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	require.Len(t, catalog, 1)

	u := catalog[0]
	assert.Equal(t, models.UnitA, u.ID)
	assert.Equal(t, "Unidade Teste", u.Name)
	assert.Equal(t, 3, u.Capacity)
	assert.True(t, u.Companions)
	assert.Equal(t, []string{"09:00", "10:00"}, u.Times[time.Monday])
	assert.Equal(t, []string{"09:00", "10:00"}, u.Times[time.Friday])
	// Day 7 wraps to Sunday.
	assert.Equal(t, []string{"08:00"}, u.Times[time.Sunday])
	assert.Empty(t, u.Times[time.Tuesday])
}

func TestCatalogValidation(t *testing.T) {
	cases := []struct {
		name  string
		units []UnitConfig
	}{
		{"unknown unit", []UnitConfig{{ID: "Z"}}},
		{"duplicate unit", []UnitConfig{{ID: "A"}, {ID: "A"}}},
		{"bad day", []UnitConfig{{ID: "A", Schedule: []ScheduleBlock{{Days: []int{0}, Times: []string{"09:00"}}}}}},
		{"bad time", []UnitConfig{{ID: "A", Schedule: []ScheduleBlock{{Days: []int{1}, Times: []string{"9h"}}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Units: tc.units}
			_, err := cfg.Catalog()
			assert.Error(t, err)
		})
	}
}

func TestCatalogDefaultUnitName(t *testing.T) {
	cfg := &Config{Units: []UnitConfig{{ID: "B"}}}
	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	assert.Equal(t, "Unidade B", catalog[0].Name)
}
