// Package archive talks to the archive.org advanced search API and scrapes
// item detail pages for downloadable files.
package archive

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ssh-vom/archive-scout/internal/logger"
	"github.com/ssh-vom/archive-scout/internal/metrics"
)

const (
	DefaultOrigin = "https://archive.org"
	DefaultRows   = 100
	userAgent     = "archive-scout/0.1"
)

type Provider struct {
	httpClient *http.Client
	origin     *url.URL
	rows       int
	log        logger.Logger
	metrics    *metrics.Metrics
}

type Option func(*Provider)

func WithRows(rows int) Option {
	return func(provider *Provider) {
		if rows > 0 {
			provider.rows = rows
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(provider *Provider) {
		if log != nil {
			provider.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(provider *Provider) {
		provider.metrics = m
	}
}

// New builds a Provider for origin. A nil client gets one without a timeout:
// a hung request stalls its caller until the server gives up.
func New(httpClient *http.Client, origin string, opts ...Option) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(origin), "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		parsed, _ = url.Parse(DefaultOrigin)
	}

	provider := &Provider{
		httpClient: httpClient,
		origin:     parsed,
		rows:       DefaultRows,
		log:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(provider)
	}

	return provider
}

func (provider *Provider) Origin() string {
	return provider.origin.String()
}

func (provider *Provider) addHeaders(request *http.Request) {
	request.Header.Set("User-Agent", userAgent)
}
