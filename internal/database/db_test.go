package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpensAndPings(t *testing.T) {
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "client_data.db"),
		Name: "client_data",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "client_data", db.Name())

	_, err = db.Conn().Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
}

func TestNewFailsWhenPathIsDirectory(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "not_a_file")
	require.NoError(t, os.Mkdir(bogus, 0755))

	_, err := New(Config{Path: bogus, Name: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestBuildConnectionStringCarriesCachePragmas(t *testing.T) {
	connStr := buildConnectionString("/tmp/x.db")
	assert.Contains(t, connStr, "journal_mode(WAL)")
	assert.Contains(t, connStr, "synchronous(OFF)")
	assert.Contains(t, connStr, "temp_store(MEMORY)")
}
