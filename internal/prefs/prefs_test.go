package prefs

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/quantlens/trendview/internal/clientdata"
)

func newTestStore(t *testing.T, defaultLang string) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := clientdata.NewRepository(db)
	require.NoError(t, repo.InitSchema())
	return NewStore(repo, defaultLang, zerolog.Nop())
}

func TestLanguageDefault(t *testing.T) {
	store := newTestStore(t, LangEN)
	assert.Equal(t, "en", store.Language())
}

func TestSetAndGetLanguage(t *testing.T) {
	store := newTestStore(t, LangZH)

	require.NoError(t, store.SetLanguage(LangEN))
	assert.Equal(t, "en", store.Language())

	require.NoError(t, store.SetLanguage(LangZH))
	assert.Equal(t, "zh", store.Language())
}

func TestSetLanguageRejectsUnknown(t *testing.T) {
	store := newTestStore(t, LangZH)

	err := store.SetLanguage("fr")
	require.Error(t, err)
	assert.Equal(t, "zh", store.Language())
}

func TestMalformedStoredValueFallsBack(t *testing.T) {
	store := newTestStore(t, LangZH)

	require.NoError(t, store.repo.SetSetting("language", "klingon"))
	assert.Equal(t, "zh", store.Language())
}

func TestInvalidDefaultNormalized(t *testing.T) {
	store := newTestStore(t, "xx")
	assert.Equal(t, "zh", store.Language())
}
