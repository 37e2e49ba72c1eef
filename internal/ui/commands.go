package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ssh-vom/archive-scout/internal/app"
	"github.com/ssh-vom/archive-scout/internal/fetch"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
)

type sessionStartedMsg struct {
	session *fetch.Session
	feed    *sessionFeed
	err     error
}

type entryMsg struct {
	sessionID string
	entry     archive.Entry
}

type progressMsg struct {
	sessionID string
	progress  fetch.Progress
}

type statusMsg struct {
	sessionID string
	status    fetch.Status
	err       error
}

type feedClosedMsg struct{}

type downloadStartMsg struct {
	updates <-chan app.ProgressUpdate
}

type logMsg string

// sessionFeed turns session observer callbacks into tea messages. Closing it
// releases a delivery goroutine blocked on a UI that moved on.
type sessionFeed struct {
	messages    chan tea.Msg
	closed      chan struct{}
	unsubscribe func()
}

func newSessionFeed(session *fetch.Session) *sessionFeed {
	feed := &sessionFeed{
		messages: make(chan tea.Msg, 256),
		closed:   make(chan struct{}),
	}
	id := session.ID
	feed.unsubscribe = session.Subscribe(fetch.ObserverFuncs{
		Entry: func(entry archive.Entry) {
			feed.send(entryMsg{sessionID: id, entry: entry})
		},
		Update: func(progress fetch.Progress) {
			feed.send(progressMsg{sessionID: id, progress: progress})
		},
		Status: func(status fetch.Status, err error) {
			feed.send(statusMsg{sessionID: id, status: status, err: err})
		},
	})
	return feed
}

func (feed *sessionFeed) send(msg tea.Msg) {
	select {
	case feed.messages <- msg:
	case <-feed.closed:
	}
}

func (feed *sessionFeed) close() {
	if feed == nil {
		return
	}
	feed.unsubscribe()
	close(feed.closed)
}

func listenSessionCmd(feed *sessionFeed) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-feed.messages:
			return msg
		case <-feed.closed:
			return feedClosedMsg{}
		}
	}
}

func startSearchCmd(orchestrator *fetch.Orchestrator, query archive.Query, fileTypes []string) tea.Cmd {
	return func() tea.Msg {
		if orchestrator == nil {
			return sessionStartedMsg{err: errors.New("search engine unavailable")}
		}
		session, err := orchestrator.Start(context.Background(), query, fileTypes)
		if err != nil {
			return sessionStartedMsg{err: err}
		}
		return sessionStartedMsg{session: session, feed: newSessionFeed(session)}
	}
}

// cancelSessionCmd runs Cancel off the update loop since it waits for the
// fetch loop to exit. The status change arrives through the feed.
func cancelSessionCmd(orchestrator *fetch.Orchestrator, session *fetch.Session) tea.Cmd {
	return func() tea.Msg {
		_ = orchestrator.Cancel(session)
		return nil
	}
}

func startDownloadCmd(downloader *app.Downloader, entries []archive.Entry) tea.Cmd {
	return func() tea.Msg {
		updates := make(chan app.ProgressUpdate, len(entries)*2+2)
		go func() {
			if downloader == nil {
				updates <- app.ProgressUpdate{Done: true, Err: errors.New("downloader unavailable")}
				close(updates)
				return
			}
			result, err := downloader.Download(context.Background(), entries, updates)
			if err == nil && len(result.Skipped) > 0 {
				err = fmt.Errorf("skipped %d file(s): %w", len(result.Skipped), errors.Join(result.Skipped...))
			}
			updates <- app.ProgressUpdate{Done: true, Err: err, Current: len(result.Saved), Total: len(entries)}
			close(updates)
		}()
		return downloadStartMsg{updates: updates}
	}
}

func listenProgressCmd(updates <-chan app.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return app.ProgressUpdate{Done: true}
		}
		return msg
	}
}

func listenLogCmd(ch <-chan logMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

type multiSelectDelegate struct {
	selected map[int]bool
}

func (delegate multiSelectDelegate) Height() int                                   { return 1 }
func (delegate multiSelectDelegate) Spacing() int                                  { return 0 }
func (delegate multiSelectDelegate) Update(msg tea.Msg, model *list.Model) tea.Cmd { return nil }
func (delegate multiSelectDelegate) Render(writer io.Writer, model list.Model, index int, item list.Item) {
	checkbox := " "
	if delegate.selected[index] {
		checkbox = "x"
	}
	cursor := " "
	if index == model.Index() {
		cursor = ">"
	}

	title := item.FilterValue()
	if titled, ok := item.(interface{ Title() string }); ok {
		title = titled.Title()
	}
	fmt.Fprintf(writer, "%s [%s] %s", cursor, checkbox, title)
}

// LogWriter feeds log lines into the TUI log pane. Lines are dropped when
// the pane falls behind.
type LogWriter struct {
	channel chan logMsg
}

func NewLogWriter() LogWriter {
	return LogWriter{channel: make(chan logMsg, 200)}
}

func (writer LogWriter) Write(data []byte) (int, error) {
	message := strings.TrimSpace(string(data))
	if message == "" {
		return len(data), nil
	}

	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		select {
		case writer.channel <- logMsg(line):
		default:
		}
	}

	return len(data), nil
}
