// Command validate probes the configured source pages and checks that they
// still parse into the shapes the merge expects: every source reachable,
// populations and coordinates well formed, and enough cities surviving the
// join. Nothing is written to any sink.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -sources sources.yaml \
//	  -stations \
//	  -min-retained 100
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/city-data-etl/internal/adapter/scrape"
	"github.com/couchcryptid/city-data-etl/internal/config"
	"github.com/couchcryptid/city-data-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// scraped holds the raw output of one probe.
type scraped struct {
	population []domain.RawCityRecord
	geo        []domain.RawGeoRecord
	stations   []domain.RawStationRecord
	errs       map[string]error
}

func main() {
	sourcesFile := flag.String("sources", "", "optional YAML sources file (defaults to the built-in URLs)")
	stations := flag.Bool("stations", false, "also probe the station pages and require station fields")
	timeout := flag.Duration("timeout", 15*time.Second, "per-request timeout")
	minRetained := flag.Int("min-retained", 1, "minimum number of cities that must survive the merge")
	flag.Parse()

	if code := run(*sourcesFile, *stations, *timeout, *minRetained); code != 0 {
		os.Exit(code)
	}
}

func run(sourcesFile string, stations bool, timeout time.Duration, minRetained int) int {
	sources := config.DefaultSources()
	if sourcesFile != "" {
		var err error
		if sources, err = config.LoadSources(sourcesFile); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
	}

	fmt.Println("=== City Source Validation ===")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	data := probe(context.Background(), scrape.NewClient(timeout, "city-data-etl-validate/1.0", logger), sources, stations)

	merged, report := domain.Merge(data.population, data.geo, data.stations, domain.RequiredFields(stations))

	phases := []*phase{
		validateReachability(data),
		validatePopulation(data.population),
		validateCoordinates(data.geo),
		validateJoin(merged, report, minRetained),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d population, %d geo, %d stations; %d cities retained (%d geo unmatched, %d incomplete)\n",
		len(data.population), len(data.geo), len(data.stations),
		report.Retained, report.GeoUnmatched, report.Incomplete)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func probe(ctx context.Context, client *scrape.Client, sources config.Sources, stations bool) scraped {
	out := scraped{errs: make(map[string]error)}
	var err error

	out.population, err = scrape.NewPopulationScraper(client, sources.PopulationURL).FetchPopulation(ctx)
	out.errs[scrape.SourcePopulation] = err

	out.geo, err = scrape.NewGeoScraper(client, sources.GeoURLs).FetchGeo(ctx)
	out.errs[scrape.SourceGeo] = err

	if stations {
		out.stations, err = scrape.NewStationScraper(client, sources.StationURLs).FetchStations(ctx)
		out.errs[scrape.SourceStations] = err
	}
	return out
}

func validateReachability(data scraped) *phase {
	p := &phase{name: "Phase 1: Sources reachable and non-empty"}
	counts := map[string]int{
		scrape.SourcePopulation: len(data.population),
		scrape.SourceGeo:        len(data.geo),
		scrape.SourceStations:   len(data.stations),
	}
	for _, name := range []string{scrape.SourcePopulation, scrape.SourceGeo, scrape.SourceStations} {
		err, probed := data.errs[name]
		if !probed {
			continue
		}
		status := domain.ClassifySource(counts[name], err)
		fmt.Printf("  %-10s %-12s %d records\n", name, status, counts[name])
		if status != domain.SourceOK {
			p.errorf("%s: %s: %v", name, status, err)
		}
	}
	return p
}

func validatePopulation(records []domain.RawCityRecord) *phase {
	p := &phase{name: "Phase 2: Population values are numeric"}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if _, ok := domain.ParsePopulation(r.Population); !ok {
			p.errorf("%s: population %q has no digits", r.CityName, r.Population)
		}
		if seen[r.CityName] {
			fmt.Printf("  note: %s appears more than once; the last row wins\n", r.CityName)
		}
		seen[r.CityName] = true
	}
	return p
}

func validateCoordinates(records []domain.RawGeoRecord) *phase {
	p := &phase{name: "Phase 3: Coordinates parse and are in range"}
	for _, r := range records {
		lat, ok := domain.ParseCoordinate(r.Latitude)
		if !ok || lat < -90 || lat > 90 {
			p.errorf("%s: latitude %q", r.CityName, r.Latitude)
		}
		lon, ok := domain.ParseCoordinate(r.Longitude)
		if !ok || lon < -180 || lon > 180 {
			p.errorf("%s: longitude %q", r.CityName, r.Longitude)
		}
	}
	return p
}

func validateJoin(merged map[string]domain.CityRecord, report domain.MergeReport, minRetained int) *phase {
	p := &phase{name: "Phase 4: Join retains enough cities"}
	if len(merged) < minRetained {
		p.errorf("%d cities retained, want at least %d", len(merged), minRetained)
	}
	for field, n := range report.MissingByField {
		fmt.Printf("  %d cities dropped for missing %s\n", n, field)
	}
	return p
}
