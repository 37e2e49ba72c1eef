package archive

import (
	"context"
	"errors"
	"strings"
)

// Error kinds. Wrapped errors carry one of these so callers can decide, with
// errors.Is, whether a failure is absorbed or propagated.
var (
	ErrNetwork = errors.New("network error")
	ErrParse   = errors.New("parse error")
)

// Query is an advanced-search request. All fields are optional.
type Query struct {
	Language  string `json:"language"`
	StartYear string `json:"start_year"`
	EndYear   string `json:"end_year"`
	Keyword   string `json:"keyword"`
	Author    string `json:"author"`
}

// Entry is one downloadable file discovered on an item page.
type Entry struct {
	FileName    string `json:"file_name"`
	BookName    string `json:"book_name"`
	DownloadURL string `json:"download_url"`
	SizeBytes   int64  `json:"size_bytes"`
	SizeDisplay string `json:"size_display"`
	Description string `json:"description"`
	Identifier  string `json:"identifier"`
}

// Page is one page of search results.
type Page struct {
	Number      int
	NumFound    int
	Identifiers []string
}

type PageSearcher interface {
	SearchPage(ctx context.Context, query Query, page int) (Page, error)
}

type ItemScraper interface {
	Scrape(ctx context.Context, identifier string, fileTypes []string) []Entry
}

// Trimmed returns a copy of the query with surrounding whitespace removed.
func (query Query) Trimmed() Query {
	return Query{
		Language:  strings.TrimSpace(query.Language),
		StartYear: strings.TrimSpace(query.StartYear),
		EndYear:   strings.TrimSpace(query.EndYear),
		Keyword:   strings.TrimSpace(query.Keyword),
		Author:    strings.TrimSpace(query.Author),
	}
}

func (query Query) IsEmpty() bool {
	return query.Trimmed() == Query{}
}
