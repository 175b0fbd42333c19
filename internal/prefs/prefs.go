// Package prefs stores user preferences for the console, currently just the
// display language the dashboard pages read before rendering.
package prefs

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quantlens/trendview/internal/clientdata"
)

const languageKey = "language"

// Languages the dashboard localizes into.
const (
	LangZH = "zh"
	LangEN = "en"
)

// Store reads and writes preferences through the settings table.
type Store struct {
	repo        *clientdata.Repository
	defaultLang string
	log         zerolog.Logger
}

// NewStore creates a preference store. defaultLang is used when nothing is
// persisted yet or the persisted value is unusable.
func NewStore(repo *clientdata.Repository, defaultLang string, log zerolog.Logger) *Store {
	if !validLanguage(defaultLang) {
		defaultLang = LangZH
	}
	return &Store{
		repo:        repo,
		defaultLang: defaultLang,
		log:         log.With().Str("component", "prefs").Logger(),
	}
}

func validLanguage(lang string) bool {
	return lang == LangZH || lang == LangEN
}

// Language returns the persisted language preference, falling back to the
// default on missing or malformed values. Read errors degrade to the
// default rather than propagating - preferences are never load-bearing.
func (s *Store) Language() string {
	value, err := s.repo.GetSetting(languageKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read language preference, using default")
		return s.defaultLang
	}
	if value == nil || !validLanguage(*value) {
		return s.defaultLang
	}
	return *value
}

// SetLanguage persists the language preference.
func (s *Store) SetLanguage(lang string) error {
	if !validLanguage(lang) {
		return fmt.Errorf("unsupported language: %q", lang)
	}
	return s.repo.SetSetting(languageKey, lang)
}
