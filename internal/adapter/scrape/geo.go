package scrape

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/city-data-etl/internal/domain"
)

// SourceGeo names the coordinate source in errors and logs.
const SourceGeo = "geo"

// GeoScraper reads city coordinates from a paginated listing.
type GeoScraper struct {
	client *Client
	urls   []string
}

// NewGeoScraper returns a scraper over the given listing pages.
func NewGeoScraper(client *Client, urls []string) *GeoScraper {
	return &GeoScraper{client: client, urls: urls}
}

// FetchGeo fetches every page in order. A failing page is logged and skipped;
// records from the other pages are returned together with the joined page errors.
func (s *GeoScraper) FetchGeo(ctx context.Context) ([]domain.RawGeoRecord, error) {
	var records []domain.RawGeoRecord
	var errs []error
	for page, url := range s.urls {
		doc, err := s.client.document(ctx, SourceGeo, url)
		if err != nil {
			s.client.logger.Warn("geo page failed, skipping", "page", page+1, "url", url, "error", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		records = append(records, parseGeo(doc)...)
	}
	return records, errors.Join(errs...)
}

// parseGeo reads every row with at least three data cells. Column 0 holds a
// linked "City, State" label; the link text is preferred over the cell text.
func parseGeo(doc *goquery.Document) []domain.RawGeoRecord {
	var records []domain.RawGeoRecord
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		label := strings.TrimSpace(cells.Eq(0).Find("a").First().Text())
		if label == "" {
			label = cellText(cells, 0)
		}
		name := domain.NormalizeCityName(label)
		if name == "" {
			return
		}
		records = append(records, domain.RawGeoRecord{
			CityName:  name,
			Latitude:  cellText(cells, 1),
			Longitude: cellText(cells, 2),
		})
	})
	return records
}
