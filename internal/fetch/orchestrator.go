// Package fetch runs search sessions: it walks result pages one at a time,
// scrapes each page's items on a bounded pool and folds the results into a
// single session that observers can follow, pause, resume and cancel.
package fetch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ssh-vom/archive-scout/internal/cache"
	"github.com/ssh-vom/archive-scout/internal/logger"
	"github.com/ssh-vom/archive-scout/internal/metrics"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPoolWidth   = 10
	DefaultCancelGrace = 5 * time.Second
)

var (
	ErrEmptyQuery  = errors.New("search query is empty")
	ErrNoFileTypes = errors.New("at least one file type is required")
	ErrNoSession   = errors.New("no session")
)

type Orchestrator struct {
	searcher    archive.PageSearcher
	scraper     archive.ItemScraper
	store       cache.Cache
	poolWidth   int
	cancelGrace time.Duration
	log         logger.Logger
	metrics     *metrics.Metrics

	mu      sync.Mutex
	current *Session
}

type Option func(*Orchestrator)

func WithPoolWidth(width int) Option {
	return func(orchestrator *Orchestrator) {
		if width > 0 {
			orchestrator.poolWidth = width
		}
	}
}

func WithCancelGrace(grace time.Duration) Option {
	return func(orchestrator *Orchestrator) {
		if grace > 0 {
			orchestrator.cancelGrace = grace
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(orchestrator *Orchestrator) {
		if log != nil {
			orchestrator.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(orchestrator *Orchestrator) {
		orchestrator.metrics = m
	}
}

// New builds an Orchestrator. A nil store keeps results in memory only.
func New(searcher archive.PageSearcher, scraper archive.ItemScraper, store cache.Cache, opts ...Option) *Orchestrator {
	if store == nil {
		store = cache.NewMemory()
	}

	orchestrator := &Orchestrator{
		searcher:    searcher,
		scraper:     scraper,
		store:       store,
		poolWidth:   DefaultPoolWidth,
		cancelGrace: DefaultCancelGrace,
		log:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(orchestrator)
	}

	return orchestrator
}

// Start begins a session for query and fileTypes, superseding the active
// one. A cached result set is returned as an already Completed session.
// Cancelling ctx cancels the session.
func (orchestrator *Orchestrator) Start(ctx context.Context, query archive.Query, fileTypes []string) (*Session, error) {
	types := archive.NormalizeFileTypes(fileTypes)
	if len(types) == 0 {
		return nil, ErrNoFileTypes
	}
	query = query.Trimmed()
	if query.IsEmpty() {
		return nil, ErrEmptyQuery
	}

	key := cache.Key(query, types)
	session := newSession(query, types, key, orchestrator.log, orchestrator.cancelGrace)

	orchestrator.mu.Lock()
	previous := orchestrator.current
	orchestrator.current = session
	orchestrator.mu.Unlock()

	if previous != nil && previous.Status().IsActive() {
		orchestrator.log.Info("Superseding active session", logger.String("previous_session_id", previous.ID))
		previous.requestCancel()
	}

	entries, hit := orchestrator.store.Get(ctx, key)
	orchestrator.metrics.CacheLookup(hit)
	if hit {
		session.completeFromCache(entries)
		orchestrator.metrics.SessionFinished(metricOutcome(StatusCompleted))
		session.log.Info("Serving search from cache", logger.Int("entries", len(entries)))
		return session, nil
	}

	session.log.Info("Starting search",
		logger.String("query", archive.BuildQuery(query)),
		logger.Strings("file_types", types),
		logger.Int("pool_width", orchestrator.poolWidth),
	)
	session.start()

	stopOnContext := context.AfterFunc(ctx, func() { session.requestCancel() })
	go orchestrator.run(context.WithoutCancel(ctx), session, stopOnContext)

	return session, nil
}

// Current returns the most recently started session, or nil.
func (orchestrator *Orchestrator) Current() *Session {
	orchestrator.mu.Lock()
	defer orchestrator.mu.Unlock()
	return orchestrator.current
}

func (orchestrator *Orchestrator) Pause(session *Session) error {
	if session == nil {
		return ErrNoSession
	}
	return session.Pause()
}

func (orchestrator *Orchestrator) Resume(session *Session) error {
	if session == nil {
		return ErrNoSession
	}
	return session.Resume()
}

func (orchestrator *Orchestrator) Cancel(session *Session) error {
	if session == nil {
		return ErrNoSession
	}
	session.Cancel()
	return nil
}

func (orchestrator *Orchestrator) Subscribe(session *Session, observer Observer) (func(), error) {
	if session == nil {
		return nil, ErrNoSession
	}
	return session.Subscribe(observer), nil
}

func (orchestrator *Orchestrator) run(ctx context.Context, session *Session, stopOnContext func() bool) {
	defer close(session.done)
	defer stopOnContext()

	paginator := archive.NewPaginator(orchestrator.searcher, session.Query)
	for !session.stopped() {
		page, err := paginator.Next(ctx)
		if err != nil {
			if session.finish(StatusFailed, err) {
				session.log.Error("Search page failed", logger.Int("page", paginator.Cursor()), logger.Error(err))
				orchestrator.metrics.SessionFinished(metricOutcome(StatusFailed))
			}
			return
		}

		session.log.Debug("Search page fetched",
			logger.Int("page", page.Number),
			logger.Int("num_found", page.NumFound),
			logger.Int("identifiers", len(page.Identifiers)),
		)
		session.setTotalAvailable(page.Number, page.NumFound)

		if len(page.Identifiers) == 0 {
			break
		}
		if full := orchestrator.consume(ctx, session, page.Identifiers); full {
			break
		}
	}

	orchestrator.complete(ctx, session)
}

// consume scrapes one page of identifiers and absorbs the results in
// completion order. It returns true once the known total has been reached.
func (orchestrator *Orchestrator) consume(ctx context.Context, session *Session, identifiers []string) bool {
	results := make(chan []archive.Entry, len(identifiers))
	abandon := make(chan struct{})
	defer close(abandon)

	go orchestrator.dispatch(ctx, session, identifiers, results, abandon)

	for range identifiers {
		var batch []archive.Entry
		select {
		case batch = <-results:
		case <-session.stop:
			return false
		}

		for {
			if !session.waitWhilePaused() {
				return false
			}
			added, full, held := session.absorb(batch)
			if held {
				continue
			}
			for range added {
				orchestrator.metrics.EntryAbsorbed()
			}
			if full {
				return true
			}
			break
		}
	}

	return false
}

// dispatch submits one scrape per identifier, at most poolWidth at a time.
// It is not gated by pause; it stops submitting once the page is abandoned
// or the session stopped.
func (orchestrator *Orchestrator) dispatch(ctx context.Context, session *Session, identifiers []string, results chan<- []archive.Entry, abandon <-chan struct{}) {
	group := new(errgroup.Group)
	group.SetLimit(orchestrator.poolWidth)

	for _, identifier := range identifiers {
		select {
		case <-abandon:
			_ = group.Wait()
			return
		case <-session.stop:
			_ = group.Wait()
			return
		default:
		}

		group.Go(func() error {
			results <- orchestrator.scraper.Scrape(ctx, identifier, session.FileTypes)
			return nil
		})
	}

	_ = group.Wait()
}

func (orchestrator *Orchestrator) complete(ctx context.Context, session *Session) {
	if !session.finish(StatusCompleted, nil) {
		orchestrator.metrics.SessionFinished(metricOutcome(session.Status()))
		return
	}
	orchestrator.metrics.SessionFinished(metricOutcome(StatusCompleted))

	snapshot := session.Snapshot()
	session.log.Info("Search completed",
		logger.Int("entries", len(snapshot.Entries)),
		logger.Int("pages", snapshot.Progress.Page),
		logger.Int64("bytes", snapshot.Progress.TotalBytes),
	)

	if len(snapshot.Entries) == 0 {
		return
	}
	if err := orchestrator.store.Set(ctx, session.Key, snapshot.Entries); err != nil {
		session.log.Warn("Unable to store results in cache", logger.Error(err))
	}
}

func metricOutcome(status Status) string {
	return strings.ToLower(status.String())
}
