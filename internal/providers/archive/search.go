package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ssh-vom/archive-scout/internal/logger"
)

var searchFields = []string{"identifier", "title", "creator", "year", "subject", "description"}

type searchResponse struct {
	Response *struct {
		NumFound *int         `json:"numFound"`
		Docs     *[]searchDoc `json:"docs"`
	} `json:"response"`
}

type searchDoc struct {
	Identifier string `json:"identifier"`
}

// SearchURL returns the advanced-search URL for one page of query.
func (provider *Provider) SearchURL(query Query, page int) string {
	searchURL := provider.origin.JoinPath("advancedsearch.php")

	values := url.Values{}
	values.Set("q", BuildQuery(query))
	values["fl[]"] = searchFields
	values.Set("sort[]", "downloads desc")
	values.Set("rows", strconv.Itoa(provider.rows))
	values.Set("output", "json")
	values.Set("page", strconv.Itoa(page))
	searchURL.RawQuery = values.Encode()

	return searchURL.String()
}

// SearchPage issues one blocking request for page and returns the result
// count and identifiers. A response missing the expected envelope fields is
// an ErrParse, never an empty page.
func (provider *Provider) SearchPage(ctx context.Context, query Query, page int) (result Page, err error) {
	if page < 1 {
		page = 1
	}
	started := time.Now()
	defer func() { provider.metrics.PageFetched(started, err) }()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.SearchURL(query, page), nil)
	if err != nil {
		return Page{}, fmt.Errorf("%w: error building search request: %w", ErrNetwork, err)
	}
	provider.addHeaders(request)

	response, err := provider.httpClient.Do(request)
	if err != nil {
		return Page{}, fmt.Errorf("%w: error making search request: %w", ErrNetwork, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("%w: search request failed: %s", ErrNetwork, response.Status)
	}

	var decoded searchResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return Page{}, fmt.Errorf("%w: error parsing search response: %w", ErrParse, err)
	}
	if decoded.Response == nil || decoded.Response.NumFound == nil || decoded.Response.Docs == nil {
		return Page{}, fmt.Errorf("%w: search response missing response.numFound or response.docs", ErrParse)
	}

	result = Page{Number: page, NumFound: *decoded.Response.NumFound}
	for _, doc := range *decoded.Response.Docs {
		if doc.Identifier == "" {
			provider.log.Warn("Skipping search result without identifier", logger.Int("page", page))
			continue
		}
		result.Identifiers = append(result.Identifiers, doc.Identifier)
	}

	provider.log.Debug("Fetched search page",
		logger.Int("page", page),
		logger.Int("num_found", result.NumFound),
		logger.Int("identifiers", len(result.Identifiers)),
	)

	return result, nil
}
