package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../migrations"

var (
	createTable = regexp.MustCompile(`(?i)CREATE TABLE IF NOT EXISTS (\w+)`)
	dropTable   = regexp.MustCompile(`(?i)DROP TABLE IF EXISTS (\w+)`)
)

func TestMigrations_AreSequential(t *testing.T) {
	migrations, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, int64(i+1), m.Version, m.Source)
	}
}

func TestMigrations_DownDropsWhatUpCreates(t *testing.T) {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		raw, err := os.ReadFile(file)
		require.NoError(t, err)

		up, down, ok := strings.Cut(string(raw), "-- +goose Down")
		require.True(t, ok, "%s has no Down section", file)

		var created, dropped []string
		for _, m := range createTable.FindAllStringSubmatch(up, -1) {
			created = append(created, m[1])
		}
		for _, m := range dropTable.FindAllStringSubmatch(down, -1) {
			dropped = append(dropped, m[1])
		}
		assert.ElementsMatch(t, created, dropped, file)
	}
}
