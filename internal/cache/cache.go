// Package cache stores completed result sets keyed by their canonical search
// request. Records never expire; a hit is served regardless of age.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/ssh-vom/archive-scout/internal/providers/archive"
)

// ErrCache marks failures of the backing store. Reads never surface it:
// an unreadable store is a miss.
var ErrCache = errors.New("cache error")

// Cache is a keyed store of result sets. Get fails open.
type Cache interface {
	Get(ctx context.Context, key string) ([]archive.Entry, bool)
	Set(ctx context.Context, key string, entries []archive.Entry) error
	Clear(ctx context.Context) error
	Close() error
}

type record struct {
	Entries  []archive.Entry `json:"entries"`
	StoredAt time.Time       `json:"stored_at"`
}

// Key hashes the canonical form of query and fileTypes. Field order and
// file type order do not affect the result.
func Key(query archive.Query, fileTypes []string) string {
	query = query.Trimmed()
	types := archive.NormalizeFileTypes(fileTypes)
	sort.Strings(types)

	canonical := map[string]any{
		"language":   query.Language,
		"start_year": query.StartYear,
		"end_year":   query.EndYear,
		"keyword":    query.Keyword,
		"author":     query.Author,
		"file_types": types,
	}

	// Maps encode with sorted keys.
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func encode(entries []archive.Entry) ([]byte, error) {
	return json.Marshal(record{Entries: entries, StoredAt: time.Now().UTC()})
}

func decode(data []byte) ([]archive.Entry, error) {
	var stored record
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	if stored.Entries == nil {
		return nil, errors.New("record has no entries")
	}
	return stored.Entries, nil
}

func clone(entries []archive.Entry) []archive.Entry {
	return append([]archive.Entry(nil), entries...)
}
