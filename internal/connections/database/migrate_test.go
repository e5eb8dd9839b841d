package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesAreSortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_late.sql":  {Data: []byte("SELECT 1")},
		"migrations/002_mid.sql":   {Data: []byte("SELECT 1")},
		"migrations/001_first.sql": {Data: []byte("SELECT 1")},
		"migrations/README.md":     {Data: []byte("notes")},
	}
	names, err := migrationNames(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"migrations/001_first.sql",
		"migrations/002_mid.sql",
		"migrations/010_late.sql",
	}, names)
}

func TestEmbeddedMigrationsAreListed(t *testing.T) {
	names, err := migrationNames(migrationsFS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"migrations/001_orders.sql",
		"migrations/002_push_subscriptions.sql",
	}, names)
}
