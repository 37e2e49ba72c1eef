package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/ssh-vom/archive-scout/internal/export"
	"github.com/ssh-vom/archive-scout/internal/fetch"
	"github.com/ssh-vom/archive-scout/internal/history"
	"github.com/ssh-vom/archive-scout/internal/logger"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
	"github.com/ssh-vom/archive-scout/internal/sizes"
)

const (
	bookColumnWidth    = 40
	fileColumnWidth    = 40
	metricsShutdownMax = 2 * time.Second
)

type searchFlags struct {
	query       archive.Query
	types       string
	exportPath  string
	downloadDir string
	selectFiles bool
	metricsAddr string
}

func newSearchCommand(global *globalFlags) *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a search without the UI and print the results",
		Long: `Search archive.org, scrape every matching item for files of the requested
types and print the results as a table.

Examples:
  # PDFs and EPUBs with "chess" in the title
  archive-scout search --keyword chess --types pdf,epub

  # Export results and pick files to download
  archive-scout search --author Capablanca --export results.csv --select`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, global, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.query.Keyword, "keyword", "k", "", "title keyword")
	cmd.Flags().StringVarP(&flags.query.Author, "author", "a", "", "author or creator")
	cmd.Flags().StringVarP(&flags.query.Language, "language", "l", "", "language")
	cmd.Flags().StringVar(&flags.query.StartYear, "start-year", "", "first publication year")
	cmd.Flags().StringVar(&flags.query.EndYear, "end-year", "", "last publication year")
	cmd.Flags().StringVarP(&flags.types, "types", "t", "", "comma separated file types (defaults to config)")
	cmd.Flags().StringVarP(&flags.exportPath, "export", "o", "", "export results to a .txt, .csv or .json file")
	cmd.Flags().StringVarP(&flags.downloadDir, "download", "d", "", "download files to this directory")
	cmd.Flags().BoolVarP(&flags.selectFiles, "select", "s", false, "choose which files to download")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while searching")

	return cmd
}

func runSearch(cmd *cobra.Command, global *globalFlags, flags *searchFlags) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}
	if flags.downloadDir != "" {
		cfg.DownloadDir = flags.downloadDir
	}

	fileTypes := cfg.FileTypes
	if flags.types != "" {
		fileTypes = archive.ParseFileTypes(flags.types)
	}

	log := newLogger(cfg, cmd.ErrOrStderr())
	deps, err := buildDependencies(cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	if flags.metricsAddr != "" {
		stopMetrics := serveMetrics(deps, flags.metricsAddr)
		defer stopMetrics()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := deps.orchestrator.Start(ctx, flags.query, fileTypes)
	if err != nil {
		return fmt.Errorf("unable to start search: %w", err)
	}
	if _, err := deps.history.Add(history.Search{Query: session.Query, FileTypes: session.FileTypes}); err != nil {
		log.Warn("Unable to save search history", logger.Error(err))
	}

	unsubscribe := session.Subscribe(progressLogger(log))
	defer unsubscribe()

	select {
	case <-session.Done():
	case <-ctx.Done():
		// The session was cancelled with ctx; give the loop its grace period.
		awaitCancelled(session, cfg.CancelGrace(), log)
	}

	snapshot := session.Snapshot()
	out := cmd.OutOrStdout()
	renderResults(out, snapshot, archive.BuildQuery(session.Query))

	if snapshot.Status == fetch.StatusFailed {
		return fmt.Errorf("search failed: %w", snapshot.Err)
	}
	if snapshot.Status == fetch.StatusCancelled {
		fmt.Fprintln(out, "Search cancelled; showing partial results.")
	}

	if flags.exportPath != "" {
		if err := export.WriteFile(flags.exportPath, snapshot.Entries); err != nil {
			return fmt.Errorf("unable to export results: %w", err)
		}
		fmt.Fprintf(out, "Results exported to %s\n", flags.exportPath)
	}

	toDownload, err := chooseDownloads(snapshot.Entries, flags)
	if err != nil {
		return err
	}
	if len(toDownload) == 0 {
		return nil
	}

	result, err := deps.downloader.Download(context.WithoutCancel(ctx), toDownload, nil)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	fmt.Fprintf(out, "Downloaded %d file(s) to %s\n", len(result.Saved), deps.downloader.Dir())
	for _, skipped := range result.Skipped {
		fmt.Fprintf(out, "Skipped %v\n", skipped)
	}

	return nil
}

// awaitCancelled waits up to grace for a cancelled session's loop to exit.
// It reports whether the loop exited in time.
func awaitCancelled(session *fetch.Session, grace time.Duration, log logger.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := session.Wait(ctx); err != nil {
		log.Warn("Fetch loop did not exit within grace period, abandoning it",
			logger.String("session_id", session.ID),
			logger.Duration("grace", grace),
		)
		return false
	}
	return true
}

// progressLogger reports each new page and the final status.
func progressLogger(log logger.Logger) fetch.Observer {
	lastPage := 0
	return fetch.ObserverFuncs{
		Entry: func(entry archive.Entry) {
			log.Debug("Found file", logger.String("file", entry.FileName), logger.String("size", entry.SizeDisplay))
		},
		Update: func(progress fetch.Progress) {
			if progress.Page == lastPage {
				return
			}
			lastPage = progress.Page
			log.Info("Fetching page",
				logger.Int("page", progress.Page),
				logger.Int("fetched", progress.TotalFetched),
				logger.Int("available", progress.TotalAvailable),
			)
		},
		Status: func(status fetch.Status, err error) {
			if err != nil {
				log.Error("Search status changed", logger.String("status", status.String()), logger.Error(err))
				return
			}
			log.Info("Search status changed", logger.String("status", status.String()))
		},
	}
}

func chooseDownloads(entries []archive.Entry, flags *searchFlags) ([]archive.Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	if flags.selectFiles {
		return promptForDownloads(entries)
	}
	if flags.downloadDir != "" {
		return entries, nil
	}
	return nil, nil
}

func promptForDownloads(entries []archive.Entry) ([]archive.Entry, error) {
	options := entryOptions(entries)
	prompt := &survey.MultiSelect{
		Message:  "Select files to download",
		Options:  options,
		PageSize: 15,
	}

	var chosen []string
	if err := survey.AskOne(prompt, &chosen); err != nil {
		return nil, fmt.Errorf("selection cancelled: %w", err)
	}

	return entriesForOptions(entries, options, chosen), nil
}

func entriesForOptions(entries []archive.Entry, options, chosen []string) []archive.Entry {
	indexByOption := make(map[string]int, len(options))
	for index, option := range options {
		indexByOption[option] = index
	}

	selected := make([]archive.Entry, 0, len(chosen))
	for _, option := range chosen {
		if index, ok := indexByOption[option]; ok {
			selected = append(selected, entries[index])
		}
	}
	return selected
}

// entryOptions labels entries for the selection prompt. Labels are numbered
// so that identical file names stay distinct.
func entryOptions(entries []archive.Entry) []string {
	options := make([]string, 0, len(entries))
	for index, entry := range entries {
		options = append(options, fmt.Sprintf("%d. %s (%s) - %s", index+1, entry.FileName, entry.SizeDisplay, entry.BookName))
	}
	return options
}

func configureResultsTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: fileColumnWidth},
		{Number: 3, WidthMax: bookColumnWidth},
	})
	t.AppendHeader(table.Row{"#", "File", "Book", "Size"})
	return t
}

func renderResults(out io.Writer, snapshot fetch.Snapshot, query string) {
	if len(snapshot.Entries) == 0 {
		fmt.Fprintf(out, "No results found for query: %s\n", query)
		return
	}

	t := configureResultsTable(out)
	for index, entry := range snapshot.Entries {
		t.AppendRow(table.Row{index + 1, entry.FileName, strings.TrimSpace(entry.BookName), entry.SizeDisplay})
	}
	t.AppendFooter(table.Row{"Total", len(snapshot.Entries), snapshot.Status.String(), sizes.Format(snapshot.Progress.TotalBytes)})

	fmt.Fprintf(out, "\nSearch Results for %s:\n", query)
	t.Render()
}

func serveMetrics(deps *dependencies, address string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.log.Error("Metrics server failed", logger.String("addr", address), logger.Error(err))
		}
	}()
	deps.log.Info("Serving metrics", logger.String("addr", address))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownMax)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
