package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/askweather/askweather/internal/logger"
	"github.com/askweather/askweather/internal/pipeline"
)

const (
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL  = "https://api.open-meteo.com/v1/forecast"

	sourceName = "open-meteo"

	mphToKph = 1.60934
)

// Geocoder resolves a free-text location to coordinates and a formatted
// display name. OpenMeteo carries its own implementation; an alternate one
// (e.g. Google) can be injected.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (lat, lon float64, formatted string, err error)
}

// OpenMeteo implements pipeline.Provider against the Open-Meteo geocoding
// and forecast APIs, with retries, exponential backoff, and a circuit
// breaker on every outbound call.
type OpenMeteo struct {
	client       *http.Client
	geocodingURL string
	forecastURL  string
	backoff      BackoffConfig
	circuit      *gobreaker.CircuitBreaker
	geocoder     Geocoder
	log          logger.Logger
}

// Option customizes an OpenMeteo provider.
type Option func(*OpenMeteo)

// WithGeocoder replaces the built-in Open-Meteo geocoding with an
// alternate implementation. Coordinate strings still bypass it.
func WithGeocoder(g Geocoder) Option {
	return func(p *OpenMeteo) { p.geocoder = g }
}

// WithBaseURLs overrides the upstream endpoints. Used by tests.
func WithBaseURLs(geocodingURL, forecastURL string) Option {
	return func(p *OpenMeteo) {
		p.geocodingURL = geocodingURL
		p.forecastURL = forecastURL
	}
}

func NewOpenMeteo(client *http.Client, log logger.Logger, opts ...Option) *OpenMeteo {
	p := &OpenMeteo{
		client:       client,
		geocodingURL: defaultGeocodingURL,
		forecastURL:  defaultForecastURL,
		backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        sourceName,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		log: log.WithField("component", "openmeteo"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Geocode resolves a location name to coordinates. Strings already in
// "lat,lon" form bypass the network entirely.
func (p *OpenMeteo) Geocode(ctx context.Context, location string) (float64, float64, string, error) {
	if lat, lon, ok := parseCoordinates(location); ok {
		return lat, lon, fmt.Sprintf("%.2f,%.2f", lat, lon), nil
	}

	if p.geocoder != nil {
		return p.geocoder.Geocode(ctx, location)
	}

	values := url.Values{}
	values.Set("name", location)
	values.Set("count", "1")
	values.Set("language", "en")
	values.Set("format", "json")

	resp, err := p.do(ctx, p.geocodingURL+"?"+values.Encode())
	if err != nil {
		return 0, 0, "", fmt.Errorf("geocoding %q: %w", location, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Name      string  `json:"name"`
			Country   string  `json:"country"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, 0, "", fmt.Errorf("%w: geocoding payload: %v", pipeline.ErrMalformedResponse, err)
	}

	if len(payload.Results) == 0 {
		return 0, 0, "", fmt.Errorf("%w: location %q not found", pipeline.ErrInvalidRequest, location)
	}

	result := payload.Results[0]
	formatted := result.Name
	if result.Country != "" {
		formatted += ", " + result.Country
	}

	p.log.Debugf("geocoded %q to %.4f,%.4f (%s)", location, result.Latitude, result.Longitude, formatted)
	return result.Latitude, result.Longitude, formatted, nil
}

// FetchRange fetches daily weather for the date range. Wind speed is
// always normalized to km/h regardless of the requested unit system;
// precipitation is always millimeters.
func (p *OpenMeteo) FetchRange(ctx context.Context, lat, lon float64, startDate, endDate, units string) (pipeline.WeatherBundle, error) {
	temperatureUnit, windUnit := "celsius", "kmh"
	if units == pipeline.UnitsImperial {
		temperatureUnit, windUnit = "fahrenheit", "mph"
	}

	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("start_date", startDate)
	values.Set("end_date", endDate)
	values.Set("daily", strings.Join([]string{
		"temperature_2m_min",
		"temperature_2m_max",
		"precipitation_sum",
		"wind_speed_10m_max",
		"weather_code",
	}, ","))
	values.Set("temperature_unit", temperatureUnit)
	values.Set("wind_speed_unit", windUnit)
	values.Set("precipitation_unit", "mm")
	values.Set("timezone", "UTC")

	resp, err := p.do(ctx, p.forecastURL+"?"+values.Encode())
	if err != nil {
		return pipeline.WeatherBundle{}, fmt.Errorf("fetching range: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time       []string   `json:"time"`
			Tmin       []*float64 `json:"temperature_2m_min"`
			Tmax       []*float64 `json:"temperature_2m_max"`
			Precip     []*float64 `json:"precipitation_sum"`
			WindMax    []*float64 `json:"wind_speed_10m_max"`
			WeatherCode []*int    `json:"weather_code"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return pipeline.WeatherBundle{}, fmt.Errorf("%w: forecast payload: %v", pipeline.ErrMalformedResponse, err)
	}

	daily := make([]pipeline.DailyRecord, 0, len(payload.Daily.Time))
	for i, date := range payload.Daily.Time {
		daily = append(daily, pipeline.DailyRecord{
			Date:       date,
			Tmin:       floatAt(payload.Daily.Tmin, i),
			Tmax:       floatAt(payload.Daily.Tmax, i),
			PrecipMM:   floatOrZero(payload.Daily.Precip, i),
			WindMaxKph: normalizeWind(floatOrZero(payload.Daily.WindMax, i), units),
			Code:       intAt(payload.Daily.WeatherCode, i),
		})
	}

	return pipeline.WeatherBundle{
		StartDate: startDate,
		EndDate:   endDate,
		Units:     units,
		Daily:     daily,
		Source:    sourceName,
	}, nil
}

// do runs one GET with retries, exponential backoff, and the circuit
// breaker. A 2xx response is returned with its body unread; every other
// outcome is an error.
func (p *OpenMeteo) do(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}

		result, err := p.circuit.Execute(func() (interface{}, error) {
			resp, execErr := p.client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return nil, fmt.Errorf("%w: upstream status %d", pipeline.ErrInvalidRequest, resp.StatusCode)
				}
				return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", pipeline.ErrProviderUnavailable)
		}

		// Client errors will not improve on retry.
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			return nil, err
		}

		lastErr = err
		if attempt >= p.backoff.MaxRetries {
			return nil, lastErr
		}

		if err := p.backoff.sleep(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func parseCoordinates(location string) (float64, float64, bool) {
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func normalizeWind(speed float64, units string) float64 {
	if units == pipeline.UnitsImperial {
		return speed * mphToKph
	}
	return speed
}

func floatAt(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func floatOrZero(values []*float64, i int) float64 {
	if v := floatAt(values, i); v != nil {
		return *v
	}
	return 0
}

func intAt(values []*int, i int) *int {
	if i < len(values) {
		return values[i]
	}
	return nil
}
