package domain

import "context"

// WeatherLookup fetches current conditions for a coordinate pair.
type WeatherLookup interface {
	// CurrentWeather returns the weather at lat/lon. Implementations return a
	// *FetchError for transport or status failures and a *ParseError for
	// malformed or incomplete payloads.
	CurrentWeather(ctx context.Context, lat, lon float64) (Weather, error)
}
