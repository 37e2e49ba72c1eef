package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ssh-vom/archive-scout/internal/logger"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
)

// ErrInvalidTransition is returned by Pause and Resume when the session is
// not in the state they act on.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Session is the state of one search-and-fetch run. Its accumulator has a
// single writer, the fetch loop; every accessor returns copies.
type Session struct {
	ID        string
	Key       string
	Query     archive.Query
	FileTypes []string
	FromCache bool

	log         logger.Logger
	cancelGrace time.Duration

	mu       sync.Mutex
	status   Status
	err      error
	progress Progress
	entries  []archive.Entry
	seen     map[string]struct{}
	resume   chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	subscribers    []subscriber
	nextSubscriber int
	queue          []event
	nextSeq        uint64
	draining       bool
}

type subscriber struct {
	id       int
	fromSeq  uint64
	observer Observer
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	Status   Status
	Err      error
	Progress Progress
	Entries  []archive.Entry
}

func newSession(query archive.Query, fileTypes []string, key string, log logger.Logger, cancelGrace time.Duration) *Session {
	id := uuid.NewString()
	return &Session{
		ID:          id,
		Key:         key,
		Query:       query,
		FileTypes:   fileTypes,
		log:         log.With(logger.String("session_id", id)),
		cancelGrace: cancelGrace,
		status:      StatusIdle,
		seen:        make(map[string]struct{}),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (session *Session) Status() Status {
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.status
}

// Err is the diagnostic of a Failed session.
func (session *Session) Err() error {
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.err
}

func (session *Session) Progress() Progress {
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.progress
}

// Entries returns the absorbed entries in completion order.
func (session *Session) Entries() []archive.Entry {
	session.mu.Lock()
	defer session.mu.Unlock()
	return append([]archive.Entry(nil), session.entries...)
}

func (session *Session) Snapshot() Snapshot {
	session.mu.Lock()
	defer session.mu.Unlock()
	return Snapshot{
		Status:   session.status,
		Err:      session.err,
		Progress: session.progress,
		Entries:  append([]archive.Entry(nil), session.entries...),
	}
}

// Done is closed once the fetch loop has exited.
func (session *Session) Done() <-chan struct{} {
	return session.done
}

func (session *Session) Wait(ctx context.Context) error {
	select {
	case <-session.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers observer. It first receives the entries, progress and
// status accumulated so far, then every later event. The returned func
// removes the observer.
func (session *Session) Subscribe(observer Observer) func() {
	session.mu.Lock()
	defer session.mu.Unlock()

	session.nextSubscriber++
	id := session.nextSubscriber
	session.subscribers = append(session.subscribers, subscriber{id: id, fromSeq: session.nextSeq, observer: observer})

	for _, entry := range session.entries {
		session.emitLocked(event{kind: entryEvent, target: id, entry: entry})
	}
	session.emitLocked(event{kind: progressEvent, target: id, progress: session.progress})
	session.emitLocked(event{kind: statusEvent, target: id, status: session.status, err: session.err})

	return func() {
		session.mu.Lock()
		defer session.mu.Unlock()
		for index, sub := range session.subscribers {
			if sub.id == id {
				session.subscribers = append(session.subscribers[:index], session.subscribers[index+1:]...)
				return
			}
		}
	}
}

// Pause holds back absorption of completed results. Scrapes already
// dispatched for the current page keep running.
func (session *Session) Pause() error {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.status != StatusRunning {
		return ErrInvalidTransition
	}
	session.resume = make(chan struct{})
	session.setStatusLocked(StatusPaused, nil)
	session.log.Info("Session paused")
	return nil
}

func (session *Session) Resume() error {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.status != StatusPaused {
		return ErrInvalidTransition
	}
	close(session.resume)
	session.resume = nil
	session.setStatusLocked(StatusRunning, nil)
	session.log.Info("Session resumed")
	return nil
}

// Cancel stops the session and waits up to the grace period for the fetch
// loop to exit. In-flight requests are not interrupted; their results are
// discarded. Cancelling a finished session is a no-op.
func (session *Session) Cancel() {
	if !session.requestCancel() {
		return
	}

	timer := time.NewTimer(session.cancelGrace)
	defer timer.Stop()

	select {
	case <-session.done:
	case <-timer.C:
		session.log.Warn("Fetch loop did not exit within grace period, abandoning it",
			logger.Duration("grace", session.cancelGrace),
		)
	}
}

// requestCancel marks the session Cancelled and signals the loop without
// waiting. It reports whether the session was still active.
func (session *Session) requestCancel() bool {
	session.mu.Lock()
	if session.status.IsTerminal() {
		session.mu.Unlock()
		return false
	}
	session.setStatusLocked(StatusCancelled, nil)
	session.mu.Unlock()

	session.stopOnce.Do(func() { close(session.stop) })
	session.log.Info("Session cancelled")
	return true
}

func (session *Session) stopped() bool {
	select {
	case <-session.stop:
		return true
	default:
		return false
	}
}

// waitWhilePaused blocks while the session is paused. It returns false once
// the session has been stopped.
func (session *Session) waitWhilePaused() bool {
	for {
		session.mu.Lock()
		resume := session.resume
		paused := session.status == StatusPaused
		session.mu.Unlock()

		if !paused {
			return !session.stopped()
		}

		select {
		case <-resume:
		case <-session.stop:
			return false
		}
	}
}

// completeFromCache fills a fresh session with a cached result set and ends
// it without running the fetch loop.
func (session *Session) completeFromCache(entries []archive.Entry) {
	session.mu.Lock()
	defer session.mu.Unlock()

	session.FromCache = true
	for _, entry := range entries {
		if _, dup := session.seen[entry.DownloadURL]; dup {
			continue
		}
		session.seen[entry.DownloadURL] = struct{}{}
		session.entries = append(session.entries, entry)
		session.progress.TotalBytes += entry.SizeBytes
	}
	session.progress.TotalFetched = len(session.entries)
	session.progress.TotalAvailable = len(session.entries)
	session.progress.Percent = 100
	session.status = StatusCompleted
	close(session.done)
}

func (session *Session) start() {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.setStatusLocked(StatusRunning, nil)
}

func (session *Session) setTotalAvailable(page, numFound int) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.status.IsTerminal() {
		return
	}
	session.progress.Page = page
	// The index can shrink between pages; never report fewer than already fetched.
	session.progress.TotalAvailable = max(numFound, session.progress.TotalFetched)
	session.updatePercentLocked()
	session.emitLocked(event{kind: progressEvent, progress: session.progress})
}

// absorb appends entries not seen before. It returns how many were added and
// whether the known total has been reached, after which the rest of the
// batch is discarded. held reports that the session was paused in the
// meantime and nothing was absorbed.
func (session *Session) absorb(entries []archive.Entry) (added int, full, held bool) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.status == StatusPaused {
		return 0, false, true
	}
	if session.status.IsTerminal() {
		return 0, false, false
	}

	for _, entry := range entries {
		if session.fullLocked() {
			return added, true, false
		}
		if _, dup := session.seen[entry.DownloadURL]; dup {
			continue
		}
		session.seen[entry.DownloadURL] = struct{}{}
		session.entries = append(session.entries, entry)
		session.progress.TotalFetched++
		session.progress.TotalBytes += entry.SizeBytes
		session.updatePercentLocked()
		added++

		session.emitLocked(event{kind: entryEvent, entry: entry})
		session.emitLocked(event{kind: progressEvent, progress: session.progress})
	}

	return added, session.fullLocked(), false
}

func (session *Session) fullLocked() bool {
	total := session.progress.TotalAvailable
	return total > 0 && session.progress.TotalFetched >= total
}

// finish moves an active session to a terminal status. It returns false
// when the session already ended, so Cancelled is never overwritten.
func (session *Session) finish(status Status, err error) bool {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.status.IsTerminal() {
		return false
	}
	if status == StatusCompleted {
		session.progress.Percent = 100
		session.emitLocked(event{kind: progressEvent, progress: session.progress})
	}
	session.setStatusLocked(status, err)
	return true
}

func (session *Session) updatePercentLocked() {
	total := session.progress.TotalAvailable
	if total <= 0 {
		return
	}
	percent := float64(session.progress.TotalFetched) / float64(total) * 100
	if percent > 100 {
		percent = 100
	}
	if percent > session.progress.Percent {
		session.progress.Percent = percent
	}
}

func (session *Session) setStatusLocked(status Status, err error) {
	session.status = status
	session.err = err
	session.emitLocked(event{kind: statusEvent, status: status, err: err})
}

// emitLocked queues ev and makes sure a delivery goroutine is running. A
// single drainer at a time keeps events in order.
func (session *Session) emitLocked(ev event) {
	ev.seq = session.nextSeq
	session.nextSeq++
	session.queue = append(session.queue, ev)
	if !session.draining {
		session.draining = true
		go session.drain()
	}
}

func (session *Session) drain() {
	for {
		session.mu.Lock()
		if len(session.queue) == 0 {
			session.draining = false
			session.mu.Unlock()
			return
		}
		batch := session.queue
		session.queue = nil
		subscribers := append([]subscriber(nil), session.subscribers...)
		session.mu.Unlock()

		for _, ev := range batch {
			for _, sub := range subscribers {
				if ev.target != 0 && ev.target != sub.id {
					continue
				}
				if ev.target == 0 && ev.seq < sub.fromSeq {
					continue
				}
				ev.deliver(sub.observer)
			}
		}
	}
}
