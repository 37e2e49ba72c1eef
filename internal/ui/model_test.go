package ui

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ssh-vom/archive-scout/internal/cache"
	"github.com/ssh-vom/archive-scout/internal/config"
	"github.com/ssh-vom/archive-scout/internal/fetch"
	"github.com/ssh-vom/archive-scout/internal/history"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cachedEntries = []archive.Entry{
	{FileName: "a.pdf", BookName: "A", DownloadURL: "https://archive.org/download/a/a.pdf", SizeBytes: 2048, SizeDisplay: "2.00 KB"},
	{FileName: "b.pdf", BookName: "B", DownloadURL: "https://archive.org/download/b/b.pdf", SizeDisplay: "Unknown"},
}

func TestFormQuery(t *testing.T) {
	form := newQueryForm([]string{"pdf"})

	_, _, err := form.query()
	assert.ErrorContains(t, err, "at least one search field")

	form.inputs[fieldKeyword].SetValue("  chess ")
	query, fileTypes, err := form.query()
	require.NoError(t, err)
	assert.Equal(t, archive.Query{Keyword: "chess"}, query)
	assert.Equal(t, []string{"pdf"}, fileTypes)

	form.inputs[fieldFileTypes].SetValue(" , ")
	_, _, err = form.query()
	assert.ErrorContains(t, err, "file type")
}

func TestFormFill(t *testing.T) {
	form := newQueryForm(nil).fill(history.Search{
		Query:     archive.Query{Keyword: "chess", Author: "Lasker", StartYear: "1900", EndYear: "1920"},
		FileTypes: []string{"epub", "pdf"},
	})

	query, fileTypes, err := form.query()
	require.NoError(t, err)
	assert.Equal(t, "Lasker", query.Author)
	assert.Equal(t, "1920", query.EndYear)
	assert.Equal(t, []string{"epub", "pdf"}, fileTypes)
}

func TestUpdateFormFocusWraps(t *testing.T) {
	assert.Equal(t, 1, updateFormFocus("tab", 0, 3))
	assert.Equal(t, 0, updateFormFocus("tab", 2, 3))
	assert.Equal(t, 2, updateFormFocus("shift+tab", 0, 3))
}

func TestMarkedEntries(t *testing.T) {
	items := []list.Item{entryItem{entry: cachedEntries[0]}, entryItem{entry: cachedEntries[1]}}

	assert.Empty(t, markedEntries(items, map[int]bool{}))
	assert.Equal(t, []archive.Entry{cachedEntries[1]}, markedEntries(items, map[int]bool{1: true, 0: false}))
}

func TestLogWriterSplitsAndDrops(t *testing.T) {
	writer := LogWriter{channel: make(chan logMsg, 2)}

	n, err := writer.Write([]byte("first\n\nsecond\nthird\n"))
	require.NoError(t, err)
	assert.Equal(t, len("first\n\nsecond\nthird\n"), n)

	assert.Equal(t, logMsg("first"), <-writer.channel)
	assert.Equal(t, logMsg("second"), <-writer.channel)
	assert.Empty(t, writer.channel, "lines beyond the buffer are dropped")
}

func TestStaleSessionMessagesAreIgnored(t *testing.T) {
	current := NewModel(config.DefaultConfig(), Dependencies{})

	updated, cmd := current.Update(entryMsg{sessionID: "old", entry: cachedEntries[0]})
	assert.Nil(t, cmd)
	assert.Empty(t, updated.(model).entries)
}

func TestSearchFlowFromCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	query := archive.Query{Keyword: "chess"}
	require.NoError(t, store.Set(ctx, cache.Key(query, []string{"pdf"}), cachedEntries))

	historyStore := history.NewStore(filepath.Join(t.TempDir(), "history.json"))
	cfg := config.DefaultConfig()
	current := NewModel(cfg, Dependencies{
		Orchestrator: fetch.New(nil, nil, store),
		History:      historyStore,
	})

	msg := startSearchCmd(current.orchestrator, query, []string{"pdf"})()
	next, _ := current.Update(msg)
	current = next.(model)
	require.Equal(t, stateFetching, current.state)

	for range 10 {
		if current.state != stateFetching {
			break
		}
		next, _ = current.Update(listenSessionCmd(current.feed)())
		current = next.(model)
	}

	require.Equal(t, stateResults, current.state)
	assert.Equal(t, cachedEntries, current.entries)
	assert.Len(t, current.resultsList.Items(), 2)
	assert.Contains(t, current.infoMessage, "from cache")

	searches, err := historyStore.Load()
	require.NoError(t, err)
	require.Len(t, searches, 1)
	assert.Equal(t, "chess", searches[0].Query.Keyword)

	next, _ = current.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	current = next.(model)
	assert.True(t, current.resultMarks[0])
	assert.Equal(t, []archive.Entry{cachedEntries[0]}, current.selectedEntries())
}
