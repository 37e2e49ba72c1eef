package archive

import (
	"fmt"
	"strings"
)

// CommonFileTypes are offered as defaults by the UI.
var CommonFileTypes = []string{"pdf", "epub", "mobi", "txt", "doc", "docx", "rtf", "djvu"}

// BuildQuery renders the advanced-search expression for query. The year range
// is only applied when both ends are set.
func BuildQuery(query Query) string {
	query = query.Trimmed()

	var parts []string
	if query.Language != "" {
		parts = append(parts, "language:"+query.Language)
	}
	if query.StartYear != "" && query.EndYear != "" {
		parts = append(parts, fmt.Sprintf("year:[%s TO %s]", query.StartYear, query.EndYear))
	}
	if query.Keyword != "" {
		parts = append(parts, "title:"+query.Keyword)
	}
	if query.Author != "" {
		parts = append(parts, "creator:"+query.Author)
	}

	return strings.Join(parts, " AND ")
}

// NormalizeFileTypes lowercases extensions, strips a leading dot and drops
// blanks and repeats while keeping the caller's order.
func NormalizeFileTypes(fileTypes []string) []string {
	seen := make(map[string]bool, len(fileTypes))
	normalized := make([]string, 0, len(fileTypes))
	for _, fileType := range fileTypes {
		fileType = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))
		if fileType == "" || seen[fileType] {
			continue
		}
		seen[fileType] = true
		normalized = append(normalized, fileType)
	}
	return normalized
}

// ParseFileTypes splits a comma separated list such as "pdf, epub".
func ParseFileTypes(list string) []string {
	return NormalizeFileTypes(strings.Split(list, ","))
}
