// Package scrape fetches the HTML source pages and parses them into raw
// domain records with goquery.
package scrape

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/city-data-etl/internal/domain"
)

// Client fetches HTML documents.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a scrape client with the given per-request timeout.
func NewClient(timeout time.Duration, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

// document fetches url and parses the body. Transport failures and non-200
// statuses are returned as *domain.FetchError, unparseable bodies as
// *domain.ParseError.
func (c *Client) document(ctx context.Context, source, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.FetchError{Source: source, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Source: source, URL: url, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body) //nolint:errcheck // drain for connection reuse
		return nil, &domain.FetchError{Source: source, URL: url, StatusCode: res.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, &domain.ParseError{Source: source, Detail: "read html " + url, Err: err}
	}
	c.logger.Debug("page fetched", "source", source, "url", url, "duration", time.Since(start))
	return doc, nil
}

// cellText returns the trimmed text of the i-th cell of a row selection.
func cellText(cells *goquery.Selection, i int) string {
	return strings.TrimSpace(cells.Eq(i).Text())
}
