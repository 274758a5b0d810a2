package scrape

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/city-data-etl/internal/domain"
)

// SourceStations names the station source in errors and logs.
const SourceStations = "stations"

// StationScraper reads train stations from a paginated station list.
type StationScraper struct {
	client *Client
	urls   []string
}

// NewStationScraper returns a scraper over the given station list pages.
func NewStationScraper(client *Client, urls []string) *StationScraper {
	return &StationScraper{client: client, urls: urls}
}

// FetchStations fetches every page in order with the same per-page failure
// handling as FetchGeo.
func (s *StationScraper) FetchStations(ctx context.Context) ([]domain.RawStationRecord, error) {
	var records []domain.RawStationRecord
	var errs []error
	for page, url := range s.urls {
		doc, err := s.client.document(ctx, SourceStations, url)
		if err != nil {
			s.client.logger.Warn("station page failed, skipping", "page", page+1, "url", url, "error", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		records = append(records, parseStations(doc)...)
	}
	return records, errors.Join(errs...)
}

// parseStations reads the body rows of the first table on the page:
// station code, station name, city.
func parseStations(doc *goquery.Document) []domain.RawStationRecord {
	var records []domain.RawStationRecord
	doc.Find("table").First().Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		name := domain.NormalizeCityName(cellText(cells, 2))
		code := cellText(cells, 0)
		if name == "" || code == "" {
			return
		}
		records = append(records, domain.RawStationRecord{
			CityName:    name,
			StationName: cellText(cells, 1),
			Code:        code,
		})
	})
	return records
}
