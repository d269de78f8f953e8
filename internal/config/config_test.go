package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644)
	require.NoError(t, err)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5, cfg.Daily.MinPoints)
	assert.Equal(t, 25, cfg.Daily.MaxPoints)
	assert.Equal(t, 10, cfg.Pagination.DefaultPerPage)
	assert.Equal(t, 100, cfg.Pagination.MaxPerPage)
	assert.Empty(t, cfg.Admin.IDs)
}

func TestLoadFromFile(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 9090
auth:
  jwt_secret: supersecret
admin:
  ids: [7, 8]
daily:
  min_points: 1
  max_points: 10
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "supersecret", cfg.Auth.JWTSecret)
	assert.Equal(t, []int64{7, 8}, cfg.Admin.IDs)
	assert.Equal(t, 1, cfg.Daily.MinPoints)
	assert.Equal(t, 10, cfg.Daily.MaxPoints)
}

func TestLoadRejectsInvalidRanges(t *testing.T) {
	_, err := Load(writeConfig(t, `
daily:
  min_points: 10
  max_points: 5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily claim range")

	_, err = Load(writeConfig(t, `
pagination:
  default_per_page: 50
  max_per_page: 10
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pagination bounds")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db.internal", Port: 5433,
		User: "svc", Password: "pw", Name: "points",
	}
	assert.Equal(t, "postgres://svc:pw@db.internal:5433/points?sslmode=disable", d.DSN())
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{Admin: AdminConfig{IDs: []int64{1, 5}}}
	assert.True(t, cfg.IsAdmin(1))
	assert.True(t, cfg.IsAdmin(5))
	assert.False(t, cfg.IsAdmin(2))

	empty := &Config{}
	assert.False(t, empty.IsAdmin(1))
}
