package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Sources lists the pages scraped on every run.
type Sources struct {
	PopulationURL string   `yaml:"population_url" env:"POPULATION_URL" validate:"required,url"`
	GeoURLs       []string `yaml:"geo_urls" env:"GEO_URLS" validate:"required,min=1,dive,url"`
	StationURLs   []string `yaml:"station_urls" env:"STATION_URLS" validate:"dive,url"`
}

const (
	defaultPopulationURL = "https://en.wikipedia.org/wiki/List_of_cities_in_India_by_population"
	geoURLPattern        = "https://www.latlong.net/category/cities-102-15%s.html"
	stationURLPattern    = "https://www.cleartrip.com/trains/stations/list?page=%d"
	geoPages             = 8
	stationPages         = 5
)

// DefaultSources returns the built-in population page, the 8 latlong.net
// category pages, and the 5 station list pages.
func DefaultSources() Sources {
	s := Sources{PopulationURL: defaultPopulationURL}
	for page := 1; page <= geoPages; page++ {
		suffix := ""
		if page > 1 {
			suffix = fmt.Sprintf("-%d", page)
		}
		s.GeoURLs = append(s.GeoURLs, fmt.Sprintf(geoURLPattern, suffix))
	}
	for page := 1; page <= stationPages; page++ {
		s.StationURLs = append(s.StationURLs, fmt.Sprintf(stationURLPattern, page))
	}
	return s
}

// LoadSources reads a YAML sources file. Keys left out of the file keep their
// built-in defaults.
func LoadSources(path string) (Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sources{}, fmt.Errorf("read sources file: %w", err)
	}
	var file Sources
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return Sources{}, fmt.Errorf("decode sources file: %w", err)
	}

	s := DefaultSources()
	if file.PopulationURL != "" {
		s.PopulationURL = file.PopulationURL
	}
	if len(file.GeoURLs) > 0 {
		s.GeoURLs = file.GeoURLs
	}
	if file.StationURLs != nil {
		s.StationURLs = file.StationURLs
	}
	return s, nil
}

func (s Sources) withEnvOverrides() Sources {
	if v := os.Getenv("POPULATION_URL"); v != "" {
		s.PopulationURL = v
	}
	if v := parseList(os.Getenv("GEO_URLS")); len(v) > 0 {
		s.GeoURLs = v
	}
	if v, ok := os.LookupEnv("STATION_URLS"); ok {
		s.StationURLs = parseList(v)
	}
	return s
}
