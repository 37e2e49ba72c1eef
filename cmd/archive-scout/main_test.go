package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ssh-vom/archive-scout/internal/fetch"
	"github.com/ssh-vom/archive-scout/internal/logger"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailsPage = `<html><body>
<h1 class="item-title">Chess Fundamentals</h1>
<div itemprop="description">A primer.</div>
<a class="download-pill" href="/download/chess/chess.pdf" title="2 KB">PDF</a>
</body></html>`

func newArchiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/advancedsearch.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"response":{"numFound":1,"docs":[{"identifier":"chess"}]}}`)
			return
		}
		fmt.Fprint(w, `{"response":{"numFound":1,"docs":[]}}`)
	})
	mux.HandleFunc("/details/chess", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailsPage)
	})
	mux.HandleFunc("/download/chess/chess.pdf", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "%PDF-1.4")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func useTestEnv(t *testing.T, origin string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ARCHIVE_SCOUT_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("ARCHIVE_SCOUT_ORIGIN", origin)
	t.Setenv("ARCHIVE_SCOUT_CACHE_BACKEND", "bolt")
	t.Setenv("ARCHIVE_SCOUT_CACHE_PATH", filepath.Join(dir, "cache", "results.db"))
	t.Setenv("ARCHIVE_SCOUT_LOG_LEVEL", "error")
	return dir
}

func TestSearchCommandExportsAndDownloads(t *testing.T) {
	server := newArchiveServer(t)
	dir := useTestEnv(t, server.URL)
	exportPath := filepath.Join(dir, "results.json")
	downloadDir := filepath.Join(dir, "books")

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search", "--keyword", "chess", "--types", "pdf", "--export", exportPath, "--download", downloadDir})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "chess.pdf")
	assert.Contains(t, out.String(), "Chess Fundamentals")
	assert.Contains(t, out.String(), "Results exported to "+exportPath)
	assert.FileExists(t, exportPath)

	data, err := os.ReadFile(filepath.Join(downloadDir, "chess.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	var history bytes.Buffer
	root = newRootCommand()
	root.SetOut(&history)
	root.SetArgs([]string{"history"})
	require.NoError(t, root.Execute())
	assert.Contains(t, history.String(), "chess (N/A, N/A-N/A)")

	var cleared bytes.Buffer
	root = newRootCommand()
	root.SetOut(&cleared)
	root.SetArgs([]string{"cache", "clear"})
	require.NoError(t, root.Execute())
	assert.Contains(t, cleared.String(), "Cleared bolt cache.")
}

func TestSearchCommandRejectsEmptyQuery(t *testing.T) {
	server := newArchiveServer(t)
	useTestEnv(t, server.URL)

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search", "--types", "pdf"})

	err := root.Execute()
	assert.ErrorIs(t, err, fetch.ErrEmptyQuery)
}

func TestRenderResults(t *testing.T) {
	var out bytes.Buffer
	renderResults(&out, fetch.Snapshot{}, "title:nothing")
	assert.Equal(t, "No results found for query: title:nothing\n", out.String())

	out.Reset()
	renderResults(&out, fetch.Snapshot{
		Status:   fetch.StatusCompleted,
		Progress: fetch.Progress{TotalBytes: 1536},
		Entries: []archive.Entry{
			{FileName: "a.pdf", BookName: "A", SizeDisplay: "1.50 KB"},
		},
	}, "title:a")

	rendered := out.String()
	assert.Contains(t, rendered, "Search Results for title:a")
	assert.Contains(t, rendered, "a.pdf")
	assert.Contains(t, strings.ToUpper(rendered), "COMPLETED")
	assert.Contains(t, rendered, "1.50 KB")
}

func TestEntriesForOptions(t *testing.T) {
	entries := []archive.Entry{
		{FileName: "same.pdf", BookName: "One", SizeDisplay: "1.00 KB"},
		{FileName: "same.pdf", BookName: "Two", SizeDisplay: "1.00 KB"},
	}
	options := entryOptions(entries)
	require.Len(t, options, 2)
	assert.NotEqual(t, options[0], options[1])

	selected := entriesForOptions(entries, options, []string{options[1], "unknown"})
	assert.Equal(t, []archive.Entry{entries[1]}, selected)
}

func TestChooseDownloadsWithoutPrompt(t *testing.T) {
	entries := []archive.Entry{{FileName: "a.pdf"}}

	chosen, err := chooseDownloads(entries, &searchFlags{})
	require.NoError(t, err)
	assert.Empty(t, chosen)

	chosen, err = chooseDownloads(entries, &searchFlags{downloadDir: "/tmp/books"})
	require.NoError(t, err)
	assert.Equal(t, entries, chosen)
}

// stuckSearcher blocks every page request until release is closed.
type stuckSearcher struct {
	release chan struct{}
}

func (searcher stuckSearcher) SearchPage(context.Context, archive.Query, int) (archive.Page, error) {
	<-searcher.release
	return archive.Page{}, nil
}

type noScraper struct{}

func (noScraper) Scrape(context.Context, string, []string) []archive.Entry { return nil }

func TestAwaitCancelledWarnsWhenLoopIsStuck(t *testing.T) {
	searcher := stuckSearcher{release: make(chan struct{})}
	t.Cleanup(func() { close(searcher.release) })

	ctx, cancel := context.WithCancel(context.Background())
	session, err := fetch.New(searcher, noScraper{}, nil).Start(ctx, archive.Query{Keyword: "chess"}, []string{"pdf"})
	require.NoError(t, err)
	cancel()
	require.Eventually(t, func() bool {
		return session.Status() == fetch.StatusCancelled
	}, time.Second, 5*time.Millisecond)

	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "warn", Console: true, Output: &buf})

	assert.False(t, awaitCancelled(session, 20*time.Millisecond, log))
	assert.Contains(t, buf.String(), "did not exit within grace period")
	assert.Contains(t, buf.String(), session.ID)
}

func TestAwaitCancelledReturnsOnceLoopExits(t *testing.T) {
	searcher := stuckSearcher{release: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	session, err := fetch.New(searcher, noScraper{}, nil).Start(ctx, archive.Query{Keyword: "chess"}, []string{"pdf"})
	require.NoError(t, err)
	cancel()
	close(searcher.release)

	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "warn", Console: true, Output: &buf})

	assert.True(t, awaitCancelled(session, 2*time.Second, log))
	assert.Empty(t, buf.String())
}
