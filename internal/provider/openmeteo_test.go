package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askweather/askweather/internal/logger"
	"github.com/askweather/askweather/internal/pipeline"
)

func testLogger() logger.Logger {
	return logger.NewWithWriter("error", io.Discard)
}

// fastBackoff keeps retry tests from sleeping for real.
var fastBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func newTestProvider(geocodingURL, forecastURL string) *OpenMeteo {
	p := NewOpenMeteo(&http.Client{Timeout: 5 * time.Second}, testLogger(),
		WithBaseURLs(geocodingURL, forecastURL))
	p.backoff = fastBackoff
	return p
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		input    string
		lat, lon float64
		ok       bool
	}{
		{"32.0853,34.7818", 32.0853, 34.7818, true},
		{"32.0853, 34.7818", 32.0853, 34.7818, true},
		{"-33.9, 151.2", -33.9, 151.2, true},
		{"Tel Aviv", 0, 0, false},
		{"1,2,3", 0, 0, false},
		{"abc,def", 0, 0, false},
	}
	for _, tt := range tests {
		lat, lon, ok := parseCoordinates(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		if tt.ok {
			assert.Equal(t, tt.lat, lat, "input %q", tt.input)
			assert.Equal(t, tt.lon, lon, "input %q", tt.input)
		}
	}
}

func TestNormalizeWind(t *testing.T) {
	assert.Equal(t, 25.0, normalizeWind(25, pipeline.UnitsMetric))
	assert.InDelta(t, 40.2335, normalizeWind(25, pipeline.UnitsImperial), 0.001)
}

func TestGeocodeCoordinateBypass(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	p := newTestProvider(server.URL, server.URL)

	lat, lon, formatted, err := p.Geocode(context.Background(), "32.0853, 34.7818")
	require.NoError(t, err)
	assert.Equal(t, 32.0853, lat)
	assert.Equal(t, 34.7818, lon)
	assert.Equal(t, "32.09,34.78", formatted)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "coordinate strings must not hit the network")
}

func TestGeocodeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Tel Aviv", r.URL.Query().Get("name"))
		assert.Equal(t, "1", r.URL.Query().Get("count"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		w.Write([]byte(`{"results":[{"latitude":32.0853,"longitude":34.7818,"name":"Tel Aviv","country":"Israel"}]}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, server.URL)

	lat, lon, formatted, err := p.Geocode(context.Background(), "Tel Aviv")
	require.NoError(t, err)
	assert.Equal(t, 32.0853, lat)
	assert.Equal(t, 34.7818, lon)
	assert.Equal(t, "Tel Aviv, Israel", formatted)
}

func TestGeocodeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, server.URL)

	_, _, _, err := p.Geocode(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrInvalidRequest)
}

func TestGeocodeMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": nonsense`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, server.URL)

	_, _, _, err := p.Geocode(context.Background(), "Tel Aviv")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrMalformedResponse)
}

type fakeGeocoder struct {
	calls int
}

func (g *fakeGeocoder) Geocode(ctx context.Context, location string) (float64, float64, string, error) {
	g.calls++
	return 48.8566, 2.3522, "Paris, France", nil
}

func TestGeocodeInjectedGeocoder(t *testing.T) {
	geocoder := &fakeGeocoder{}
	p := NewOpenMeteo(&http.Client{}, testLogger(), WithGeocoder(geocoder))

	lat, lon, formatted, err := p.Geocode(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, 1, geocoder.calls)
	assert.Equal(t, 48.8566, lat)
	assert.Equal(t, 2.3522, lon)
	assert.Equal(t, "Paris, France", formatted)

	// Coordinate strings still bypass the injected geocoder.
	_, _, _, err = p.Geocode(context.Background(), "1.5,2.5")
	require.NoError(t, err)
	assert.Equal(t, 1, geocoder.calls)
}

const forecastBody = `{
	"daily": {
		"time": ["2025-10-20","2025-10-21","2025-10-22"],
		"temperature_2m_min": [15.2, null, 12.8],
		"temperature_2m_max": [23.1, 19.4, 25.0],
		"precipitation_sum": [0.0, null, 6.2],
		"wind_speed_10m_max": [10.5, 12.0, 45.3],
		"weather_code": [0, null, 95]
	}
}`

func TestFetchRangeMetric(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2025-10-20", q.Get("start_date"))
		assert.Equal(t, "2025-10-22", q.Get("end_date"))
		assert.Equal(t, "celsius", q.Get("temperature_unit"))
		assert.Equal(t, "kmh", q.Get("wind_speed_unit"))
		assert.Equal(t, "mm", q.Get("precipitation_unit"))
		assert.Equal(t, "UTC", q.Get("timezone"))
		assert.Contains(t, q.Get("daily"), "weather_code")
		w.Write([]byte(forecastBody))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, server.URL)

	bundle, err := p.FetchRange(context.Background(), 32.0853, 34.7818,
		"2025-10-20", "2025-10-22", pipeline.UnitsMetric)
	require.NoError(t, err)

	assert.Equal(t, "open-meteo", bundle.Source)
	assert.Equal(t, pipeline.UnitsMetric, bundle.Units)
	require.Len(t, bundle.Daily, 3)

	first := bundle.Daily[0]
	assert.Equal(t, "2025-10-20", first.Date)
	require.NotNil(t, first.Tmin)
	assert.Equal(t, 15.2, *first.Tmin)
	assert.Equal(t, 10.5, first.WindMaxKph)
	require.NotNil(t, first.Code)
	assert.Equal(t, 0, *first.Code)

	// Null upstream values become nil pointers and zero aggregates.
	second := bundle.Daily[1]
	assert.Nil(t, second.Tmin)
	assert.Equal(t, 0.0, second.PrecipMM)
	assert.Nil(t, second.Code)
}

func TestFetchRangeImperialNormalizesWind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "fahrenheit", q.Get("temperature_unit"))
		assert.Equal(t, "mph", q.Get("wind_speed_unit"))
		w.Write([]byte(forecastBody))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, server.URL)

	bundle, err := p.FetchRange(context.Background(), 40.71, -74.0,
		"2025-10-20", "2025-10-22", pipeline.UnitsImperial)
	require.NoError(t, err)
	require.Len(t, bundle.Daily, 3)
	assert.InDelta(t, 10.5*mphToKph, bundle.Daily[0].WindMaxKph, 0.001)
}

func TestDoClientErrorNoRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := newTestProvider(server.URL, server.URL)

	_, err := p.FetchRange(context.Background(), 1, 2, "2025-10-20", "2025-10-22", pipeline.UnitsMetric)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrInvalidRequest)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoRetriesServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(forecastBody))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, server.URL)

	bundle, err := p.FetchRange(context.Background(), 1, 2, "2025-10-20", "2025-10-22", pipeline.UnitsMetric)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, bundle.Daily, 3)
}

func TestDoExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := newTestProvider(server.URL, server.URL)

	_, err := p.FetchRange(context.Background(), 1, 2, "2025-10-20", "2025-10-22", pipeline.UnitsMetric)
	require.Error(t, err)
	assert.False(t, errors.Is(err, pipeline.ErrInvalidRequest))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "initial attempt plus MaxRetries")
}

func TestBackoffRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := BackoffConfig{MaxRetries: 1, InitialInterval: time.Hour}
	err := b.sleep(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
