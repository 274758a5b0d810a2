package scrape

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/city-data-etl/internal/domain"
)

// SourcePopulation names the population source in errors and logs.
const SourcePopulation = "population"

// PopulationScraper reads city populations from the wikitables on one page.
type PopulationScraper struct {
	client *Client
	url    string
}

// NewPopulationScraper returns a scraper for the population page at url.
func NewPopulationScraper(client *Client, url string) *PopulationScraper {
	return &PopulationScraper{client: client, url: url}
}

// FetchPopulation fetches the page and returns one record per table row.
func (s *PopulationScraper) FetchPopulation(ctx context.Context) ([]domain.RawCityRecord, error) {
	doc, err := s.client.document(ctx, SourcePopulation, s.url)
	if err != nil {
		return nil, err
	}
	return parsePopulation(doc), nil
}

// parsePopulation walks every table.wikitable in document order. The first
// table holds name and population in columns 0 and 1; every later table has
// a rank column first, shifting them to columns 1 and 2. The header row of
// each table is skipped, as are rows without enough data cells.
func parsePopulation(doc *goquery.Document) []domain.RawCityRecord {
	var records []domain.RawCityRecord
	doc.Find("table.wikitable").Each(func(tableIdx int, table *goquery.Selection) {
		nameCol, popCol := 0, 1
		if tableIdx > 0 {
			nameCol, popCol = 1, 2
		}
		table.Find("tr").Each(func(rowIdx int, row *goquery.Selection) {
			if rowIdx == 0 {
				return
			}
			cells := row.Find("td")
			if cells.Length() <= popCol {
				return
			}
			name := domain.NormalizeCityName(cellText(cells, nameCol))
			if name == "" {
				return
			}
			records = append(records, domain.RawCityRecord{
				CityName:   name,
				Population: cellText(cells, popCol),
			})
		})
	})
	return records
}
