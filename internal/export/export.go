// Package export writes result sets as text, CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ssh-vom/archive-scout/internal/providers/archive"
)

type Format string

const (
	FormatText Format = "txt"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

var (
	ErrNoResults     = errors.New("no results to export")
	ErrUnknownFormat = errors.New("unknown export format")
)

var header = []string{"File Name", "Book Name", "Size", "URL", "Description"}

type record struct {
	FileName    string `json:"File Name"`
	BookName    string `json:"Book Name"`
	Size        string `json:"Size"`
	URL         string `json:"URL"`
	Description string `json:"Description"`
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(filePath string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".txt":
		return FormatText, nil
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(filePath))
	}
}

func WriteFile(filePath string, entries []archive.Entry) error {
	if len(entries) == 0 {
		return ErrNoResults
	}
	format, err := FormatFromPath(filePath)
	if err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("unable to create export file: %w", err)
	}

	if err := Write(file, format, entries); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("unable to write export file: %w", err)
	}

	return nil
}

func Write(w io.Writer, format Format, entries []archive.Entry) error {
	switch format {
	case FormatText:
		return writeText(w, entries)
	case FormatCSV:
		return writeCSV(w, entries)
	case FormatJSON:
		return writeJSON(w, entries)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeText(w io.Writer, entries []archive.Entry) error {
	for _, entry := range entries {
		_, err := fmt.Fprintf(w, "File Name: %s\nBook Name: %s\nSize: %s\nURL: %s\nDescription: %s\n\n---\n\n",
			entry.FileName, entry.BookName, entry.SizeDisplay, entry.DownloadURL, entry.Description)
		if err != nil {
			return fmt.Errorf("error writing text export: %w", err)
		}
	}
	return nil
}

func writeCSV(w io.Writer, entries []archive.Entry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("error writing csv header: %w", err)
	}
	for _, entry := range entries {
		row := []string{entry.FileName, entry.BookName, entry.SizeDisplay, entry.DownloadURL, entry.Description}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("error writing csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("error flushing csv export: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, entries []archive.Entry) error {
	records := make([]record, 0, len(entries))
	for _, entry := range entries {
		records = append(records, record{
			FileName:    entry.FileName,
			BookName:    entry.BookName,
			Size:        entry.SizeDisplay,
			URL:         entry.DownloadURL,
			Description: entry.Description,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("error writing json export: %w", err)
	}
	return nil
}
