package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ssh-vom/archive-scout/internal/logger"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
)

var ErrUnexpectedStatus = errors.New("unexpected status code")

type ProgressUpdate struct {
	Current int
	Total   int
	Message string
	Done    bool
	Err     error
}

type progressTracker struct {
	updates chan<- ProgressUpdate
	total   int
	current int
}

func newProgressTracker(updates chan<- ProgressUpdate, total int) *progressTracker {
	return &progressTracker{updates: updates, total: total}
}

func (tracker *progressTracker) message(message string) {
	if tracker == nil || tracker.updates == nil {
		return
	}
	tracker.updates <- ProgressUpdate{Current: tracker.current, Total: tracker.total, Message: message}
}

func (tracker *progressTracker) advance(message string) {
	if tracker == nil {
		return
	}
	if tracker.current < tracker.total {
		tracker.current++
	}
	if tracker.updates != nil {
		tracker.updates <- ProgressUpdate{Current: tracker.current, Total: tracker.total, Message: message}
	}
}

// DownloadResult lists the files written and the entries that were skipped.
type DownloadResult struct {
	Saved   []string
	Skipped []error
}

// Downloader writes entries to a directory one at a time, streaming each
// response body straight to disk.
type Downloader struct {
	httpClient *http.Client
	dir        string
	log        logger.Logger
}

func NewDownloader(httpClient *http.Client, dir string, log logger.Logger) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Downloader{httpClient: httpClient, dir: dir, log: log}
}

func (downloader *Downloader) Dir() string {
	return downloader.dir
}

// Download fetches entries sequentially. A failed entry is skipped and
// recorded; only an unusable directory or a cancelled ctx stops the run.
func (downloader *Downloader) Download(ctx context.Context, entries []archive.Entry, updates chan<- ProgressUpdate) (DownloadResult, error) {
	var result DownloadResult
	if len(entries) == 0 {
		return result, fmt.Errorf("no entries selected")
	}

	if err := os.MkdirAll(downloader.dir, 0o755); err != nil {
		return result, fmt.Errorf("unable to create download dir: %w", err)
	}

	tracker := newProgressTracker(updates, len(entries))

	for index, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		fileName := sanitizeFileName(entry.FileName)
		tracker.message(fmt.Sprintf("Downloading: %s (%d/%d)", fileName, index+1, len(entries)))

		target := filepath.Join(downloader.dir, fileName)
		if err := downloader.downloadFile(ctx, entry.DownloadURL, target); err != nil {
			downloader.log.Warn("Skipping download",
				logger.String("file", fileName),
				logger.String("url", entry.DownloadURL),
				logger.Error(err),
			)
			result.Skipped = append(result.Skipped, fmt.Errorf("%s: %w", fileName, err))
			tracker.advance("Skipping: " + fileName)
			continue
		}

		downloader.log.Info("Downloaded file", logger.String("file", fileName), logger.String("path", target))
		result.Saved = append(result.Saved, target)
		tracker.advance("Saved: " + fileName)
	}

	return result, nil
}

func (downloader *Downloader) downloadFile(ctx context.Context, downloadURL, target string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("error building download request: %w", err)
	}

	response, err := downloader.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("error downloading file: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, response.StatusCode)
	}

	file, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("unable to create file: %w", err)
	}

	if _, err := io.Copy(file, response.Body); err != nil {
		file.Close()
		os.Remove(target)
		return fmt.Errorf("error writing file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(target)
		return fmt.Errorf("error closing file: %w", err)
	}

	return nil
}

func sanitizeFileName(name string) string {
	trimmed := strings.TrimSpace(name)
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	trimmed = path.Base(trimmed)
	trimmed = strings.Trim(trimmed, ". ")
	if trimmed == "" || trimmed == "/" {
		return "untitled"
	}

	return trimmed
}
