package store

import (
	"fmt"

	"github.com/sadopc/alertlog/internal/feed"
)

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (s *Store) GetAllSettings() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// GetBool reads a "0"/"1" setting; a missing key reads as false.
func (s *Store) GetBool(key string) bool {
	v, err := s.GetSetting(key)
	return err == nil && v == "1"
}

func (s *Store) SetBool(key string, v bool) error {
	if v {
		return s.SetSetting(key, "1")
	}
	return s.SetSetting(key, "0")
}

// LoadFilter returns the persisted timeline filter. The keyword is never
// stored.
func (s *Store) LoadFilter() (feed.Filter, error) {
	var f feed.Filter
	cat, err := s.GetSetting(KeyFilterCategory)
	if err != nil {
		return f, err
	}
	app, err := s.GetSetting(KeyFilterApp)
	if err != nil {
		return f, err
	}
	f.Category = feed.Category(cat)
	f.AppName = app
	f.FavoritesOnly = s.GetBool(KeyFilterFavorites)
	return f, nil
}

func (s *Store) SaveFilter(f feed.Filter) error {
	if err := s.SetSetting(KeyFilterCategory, string(f.Category)); err != nil {
		return fmt.Errorf("save filter: %w", err)
	}
	if err := s.SetSetting(KeyFilterApp, f.AppName); err != nil {
		return fmt.Errorf("save filter: %w", err)
	}
	if err := s.SetBool(KeyFilterFavorites, f.FavoritesOnly); err != nil {
		return fmt.Errorf("save filter: %w", err)
	}
	return nil
}
