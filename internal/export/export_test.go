package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ssh-vom/archive-scout/internal/providers/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entries = []archive.Entry{
	{
		FileName:    "chess.pdf",
		BookName:    "Chess Fundamentals",
		DownloadURL: "https://archive.org/download/chess/chess.pdf",
		SizeDisplay: "1.50 MB",
		Description: "Capablanca, \"classic\" primer",
	},
	{
		FileName:    "endgames.epub",
		BookName:    "Endgames & more",
		DownloadURL: "https://archive.org/download/end/endgames.epub",
		SizeDisplay: "Unknown",
		Description: "No description available.",
	},
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"out.txt":      FormatText,
		"OUT.CSV":      FormatCSV,
		"dir/out.json": FormatJSON,
	}
	for input, want := range tests {
		got, err := FormatFromPath(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := FormatFromPath("out.xlsx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, entries[:1]))

	assert.Equal(t, "File Name: chess.pdf\nBook Name: Chess Fundamentals\nSize: 1.50 MB\n"+
		"URL: https://archive.org/download/chess/chess.pdf\nDescription: Capablanca, \"classic\" primer\n\n---\n\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, entries))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{"chess.pdf", "Chess Fundamentals", "1.50 MB", "https://archive.org/download/chess/chess.pdf", "Capablanca, \"classic\" primer"}, rows[1])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, entries))

	assert.Contains(t, buf.String(), "Endgames & more", "html characters are not escaped")

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "endgames.epub", decoded[1]["File Name"])
	assert.Equal(t, "Unknown", decoded[1]["Size"])
	assert.Equal(t, "https://archive.org/download/end/endgames.epub", decoded[1]["URL"])
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "results.csv")
	require.NoError(t, WriteFile(path, entries))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "File Name,Book Name,Size,URL,Description")

	assert.ErrorIs(t, WriteFile(filepath.Join(dir, "empty.json"), nil), ErrNoResults)
	assert.ErrorIs(t, WriteFile(filepath.Join(dir, "results.doc"), entries), ErrUnknownFormat)
	assert.NoFileExists(t, filepath.Join(dir, "results.doc"))
}
