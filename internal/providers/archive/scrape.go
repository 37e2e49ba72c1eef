package archive

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ssh-vom/archive-scout/internal/logger"
	"github.com/ssh-vom/archive-scout/internal/sizes"
)

const (
	unknownTitle       = "Unknown"
	missingDescription = "No description available."
)

// DetailsURL is the item page for identifier.
func (provider *Provider) DetailsURL(identifier string) string {
	return provider.origin.JoinPath("details", identifier).String()
}

// Scrape returns the entries on identifier's detail page matching fileTypes.
// Failures are logged and produce no entries so one bad item cannot abort a
// batch.
func (provider *Provider) Scrape(ctx context.Context, identifier string, fileTypes []string) []Entry {
	entries, err := provider.FetchItem(ctx, identifier, fileTypes)
	provider.metrics.ItemScraped(err)
	if err != nil {
		provider.log.Error("Error fetching item data",
			logger.String("identifier", identifier),
			logger.String("url", provider.DetailsURL(identifier)),
			logger.Error(err),
		)
		return nil
	}
	return entries
}

// FetchItem is Scrape with the failure reported to the caller.
func (provider *Provider) FetchItem(ctx context.Context, identifier string, fileTypes []string) ([]Entry, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.DetailsURL(identifier), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: error building item request: %w", ErrNetwork, err)
	}
	provider.addHeaders(request)

	response, err := provider.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: error making item request: %w", ErrNetwork, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: item request failed: %s", ErrNetwork, response.Status)
	}

	doc, err := goquery.NewDocumentFromReader(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse item page: %w", ErrParse, err)
	}

	return provider.extractEntries(doc, identifier, fileTypes), nil
}

func (provider *Provider) extractEntries(doc *goquery.Document, identifier string, fileTypes []string) []Entry {
	bookName := textOr(doc.Find("h1.item-title").First(), unknownTitle)
	description := textOr(doc.Find(`div[itemprop="description"]`).First(), missingDescription)
	pageSize := strings.TrimSpace(doc.Find(".item-stats .size").First().Text())

	var entries []Entry
	seen := make(map[string]bool)
	anchors := doc.Find("a.download-pill")

	for _, fileType := range NormalizeFileTypes(fileTypes) {
		suffix := "." + fileType
		anchors.Each(func(_ int, link *goquery.Selection) {
			href, ok := link.Attr("href")
			if !ok || !strings.HasSuffix(href, suffix) {
				return
			}

			downloadURL, err := provider.resolve(href)
			if err != nil {
				provider.log.Warn("Skipping malformed download link",
					logger.String("identifier", identifier),
					logger.String("href", href),
					logger.Error(err),
				)
				return
			}
			if seen[downloadURL] {
				return
			}
			seen[downloadURL] = true

			rawSize := linkSize(link, pageSize)
			sizeBytes := sizes.Parse(rawSize)
			entries = append(entries, Entry{
				FileName:    fileName(downloadURL),
				BookName:    bookName,
				DownloadURL: downloadURL,
				SizeBytes:   sizeBytes,
				SizeDisplay: sizes.Display(sizeBytes, rawSize),
				Description: description,
				Identifier:  identifier,
			})
		})
	}

	return entries
}

func (provider *Provider) resolve(href string) (string, error) {
	reference, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return provider.origin.ResolveReference(reference).String(), nil
}

// linkSize prefers the anchor's tooltip, then its title, then the page-level
// size field.
func linkSize(link *goquery.Selection, pageSize string) string {
	for _, attribute := range []string{"data-original-title", "title"} {
		if value := strings.TrimSpace(link.AttrOr(attribute, "")); value != "" {
			return value
		}
	}
	if pageSize != "" {
		return pageSize
	}
	return sizes.Unknown
}

func textOr(selection *goquery.Selection, fallback string) string {
	if selection.Length() == 0 {
		return fallback
	}
	if text := strings.TrimSpace(selection.Text()); text != "" {
		return text
	}
	return fallback
}

func fileName(downloadURL string) string {
	parsed, err := url.Parse(downloadURL)
	if err != nil {
		return path.Base(downloadURL)
	}
	return path.Base(parsed.Path)
}
