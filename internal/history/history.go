// Package history keeps the most recent searches on disk.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ssh-vom/archive-scout/internal/config"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
)

const (
	Limit    = 10
	fileName = "history.json"
)

type Search struct {
	Query      archive.Query `json:"query"`
	FileTypes  []string      `json:"file_types"`
	SearchedAt time.Time     `json:"searched_at"`
}

// Label renders the search the way the history list shows it.
func (search Search) Label() string {
	return fmt.Sprintf("%s (%s, %s-%s)",
		orNA(search.Query.Keyword),
		orNA(search.Query.Language),
		orNA(search.Query.StartYear),
		orNA(search.Query.EndYear),
	)
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}

type Store struct {
	path string
}

func DefaultPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns saved searches, oldest first.
func (store *Store) Load() ([]Search, error) {
	data, err := os.ReadFile(store.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read history: %w", err)
	}

	var searches []Search
	if err := json.Unmarshal(data, &searches); err != nil {
		return nil, fmt.Errorf("unable to parse history: %w", err)
	}
	return searches, nil
}

// Add appends search and keeps only the newest Limit entries.
func (store *Store) Add(search Search) ([]Search, error) {
	searches, err := store.Load()
	if err != nil {
		searches = nil
	}

	if search.SearchedAt.IsZero() {
		search.SearchedAt = time.Now().UTC()
	}
	searches = append(searches, search)
	if len(searches) > Limit {
		searches = searches[len(searches)-Limit:]
	}

	if err := store.save(searches); err != nil {
		return nil, err
	}
	return searches, nil
}

func (store *Store) save(searches []Search) error {
	if err := os.MkdirAll(filepath.Dir(store.path), 0o755); err != nil {
		return fmt.Errorf("unable to create history dir: %w", err)
	}

	data, err := json.MarshalIndent(searches, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal history: %w", err)
	}

	if err := os.WriteFile(store.path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write history: %w", err)
	}
	return nil
}
