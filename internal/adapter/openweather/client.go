package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/couchcryptid/city-data-etl/internal/observability"
	"github.com/sony/gobreaker"
)

const source = "openweather"

// Client implements domain.WeatherLookup using the OpenWeather current weather API.
type Client struct {
	apiKey     string
	baseURL    string
	units      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Options configures a Client.
type Options struct {
	APIKey         string
	BaseURL        string
	Units          string // empty means the API default (Kelvin)
	Timeout        time.Duration
	BreakerTimeout time.Duration
}

// NewClient creates an OpenWeather client guarded by a circuit breaker that
// opens after 5 consecutive failures.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		units:      opts.Units,
		httpClient: &http.Client{Timeout: opts.Timeout},
		metrics:    metrics,
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("weather circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// CurrentWeather fetches current conditions at lat/lon.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (domain.Weather, error) {
	params := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	if c.units != "" {
		params.Set("units", c.units)
	}
	// Errors carry the URL without the key.
	redacted := c.baseURL + "?" + params.Encode()
	params.Set("appid", c.apiKey)
	fullURL := c.baseURL + "?" + params.Encode()

	start := time.Now()
	body, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, fullURL, redacted)
	})
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.Weather{}, &domain.FetchError{Source: source, URL: redacted, Err: err}
		}
		return domain.Weather{}, err
	}

	w, err := decodeWeather(body.([]byte))
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.Weather{}, err
	}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	return w, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, redacted string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &domain.FetchError{Source: source, URL: redacted, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Strip *url.Error, whose message repeats the full URL including the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &domain.FetchError{Source: source, URL: redacted, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Source: source, URL: redacted, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("openweather API error", "status", resp.StatusCode, "body", string(body))
		return nil, &domain.FetchError{Source: source, URL: redacted, StatusCode: resp.StatusCode}
	}
	return body, nil
}

func decodeWeather(body []byte) (domain.Weather, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.Weather{}, &domain.ParseError{Source: source, Detail: "decode response", Err: err}
	}
	missing := func(field string) error {
		return &domain.ParseError{Source: source, Detail: "missing " + field}
	}
	switch {
	case p.Main == nil || p.Main.Temp == nil:
		return domain.Weather{}, missing("main.temp")
	case p.Main.Humidity == nil:
		return domain.Weather{}, missing("main.humidity")
	case p.Wind == nil || p.Wind.Speed == nil:
		return domain.Weather{}, missing("wind.speed")
	case len(p.Weather) == 0 || p.Weather[0].Description == nil:
		return domain.Weather{}, missing("weather[0].description")
	case p.ID == nil:
		return domain.Weather{}, missing("id")
	}
	return domain.Weather{
		ExternalID:  *p.ID,
		Temperature: *p.Main.Temp,
		Humidity:    *p.Main.Humidity,
		WindSpeed:   *p.Wind.Speed,
		Conditions:  *p.Weather[0].Description,
	}, nil
}

// OpenWeather API response types. Pointers distinguish absent keys from zero values.

type payload struct {
	ID      *int64       `json:"id"`
	Main    *mainBlock   `json:"main"`
	Wind    *windBlock   `json:"wind"`
	Weather []conditions `json:"weather"`
}

type mainBlock struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
}

type windBlock struct {
	Speed *float64 `json:"speed"`
}

type conditions struct {
	Description *string `json:"description"`
}
