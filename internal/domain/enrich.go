package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// EnrichReport summarizes one enrichment pass.
type EnrichReport struct {
	Attempted int `json:"attempted"`
	Enriched  int `json:"enriched"`
	Failed    int `json:"failed"`
}

// Enrich looks up the weather for every city with at most concurrency lookups
// in flight and returns a new map with the results folded in. A city whose
// lookup fails keeps its record unchanged (graceful degradation); no failure
// affects another city. If lookup is nil the input is returned as is.
func Enrich(ctx context.Context, cities map[string]CityRecord, lookup WeatherLookup, concurrency int, logger *slog.Logger) (map[string]CityRecord, EnrichReport) {
	if lookup == nil || len(cities) == 0 {
		return cities, EnrichReport{}
	}
	if concurrency < 1 {
		concurrency = 1
	}

	keys := make([]string, 0, len(cities))
	for k := range cities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type result struct {
		weather Weather
		err     error
	}
	results := make([]result, len(keys))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, key := range keys {
		rec := cities[key]
		g.Go(func() error {
			w, err := lookupCity(ctx, rec, lookup)
			results[i] = result{weather: w, err: err}
			return nil
		})
	}
	_ = g.Wait() // workers never return an error

	out := make(map[string]CityRecord, len(cities))
	report := EnrichReport{Attempted: len(keys)}
	for i, key := range keys {
		rec := cities[key]
		if err := results[i].err; err != nil {
			logger.Warn("weather enrichment failed",
				"city", key,
				"lat", rec.Latitude,
				"lon", rec.Longitude,
				"error", err,
			)
			report.Failed++
			out[key] = rec
			continue
		}
		w := results[i].weather
		rec.Weather = &w
		report.Enriched++
		out[key] = rec
	}
	return out, report
}

func lookupCity(ctx context.Context, rec CityRecord, lookup WeatherLookup) (Weather, error) {
	lat, ok := ParseCoordinate(rec.Latitude)
	if !ok {
		return Weather{}, &ParseError{Source: "coordinates", Detail: fmt.Sprintf("latitude %q", rec.Latitude)}
	}
	lon, ok := ParseCoordinate(rec.Longitude)
	if !ok {
		return Weather{}, &ParseError{Source: "coordinates", Detail: fmt.Sprintf("longitude %q", rec.Longitude)}
	}
	return lookup.CurrentWeather(ctx, lat, lon)
}
