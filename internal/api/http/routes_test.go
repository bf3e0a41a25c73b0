package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askweather/askweather/internal/cache"
	"github.com/askweather/askweather/internal/logger"
	"github.com/askweather/askweather/internal/pipeline"
)

type stubProvider struct {
	geocodeErr error
	fetchErr   error
	fetchDelay time.Duration
}

func (p *stubProvider) Geocode(ctx context.Context, location string) (float64, float64, string, error) {
	if p.geocodeErr != nil {
		return 0, 0, "", p.geocodeErr
	}
	return 32.0853, 34.7818, "Tel Aviv, Israel", nil
}

func (p *stubProvider) FetchRange(ctx context.Context, lat, lon float64, startDate, endDate, units string) (pipeline.WeatherBundle, error) {
	if p.fetchDelay > 0 {
		select {
		case <-time.After(p.fetchDelay):
		case <-ctx.Done():
			return pipeline.WeatherBundle{}, ctx.Err()
		}
	}
	if p.fetchErr != nil {
		return pipeline.WeatherBundle{}, p.fetchErr
	}

	tmin, tmax := 15.0, 25.0
	code := 0
	return pipeline.WeatherBundle{
		StartDate: startDate,
		EndDate:   endDate,
		Units:     units,
		Source:    "open-meteo",
		Daily: []pipeline.DailyRecord{
			{Date: startDate, Tmin: &tmin, Tmax: &tmax, PrecipMM: 0, WindMaxKph: 12, Code: &code},
		},
	}, nil
}

func newTestApp(provider pipeline.Provider, timeout time.Duration) *fiber.App {
	log := logger.NewWithWriter("error", io.Discard)
	pipe := pipeline.New(provider, cache.New(time.Minute), timeout, log)

	app := fiber.New()
	RegisterRoutes(app, pipe, 500)
	return app
}

func postQuery(t *testing.T, app *fiber.App, body string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/weather/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestQueryEndpointSuccess(t *testing.T) {
	app := newTestApp(&stubProvider{}, time.Second)

	resp, body := postQuery(t, app, `{"query":"weather in Tel Aviv from 2025-10-20 to 2025-10-20"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "weather.get_range", body["tool_used"])
	assert.NotEmpty(t, body["summary"])
	assert.NotEmpty(t, body["request_id"])

	params, ok := body["params"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Tel Aviv, Israel", params["location"])
	assert.Equal(t, "2025-10-20", params["start_date"])
}

func TestQueryEndpointRejectsMalformedBody(t *testing.T) {
	app := newTestApp(&stubProvider{}, time.Second)

	resp, body := postQuery(t, app, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, pipeline.CodeInvalidRequest, body["error"])
}

func TestQueryEndpointRequiresQueryField(t *testing.T) {
	app := newTestApp(&stubProvider{}, time.Second)

	resp, body := postQuery(t, app, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, pipeline.CodeInvalidRequest, body["error"])
	assert.Equal(t, "Query parameter is required", body["hint"])
}

func TestQueryEndpointRejectsOversizedQuery(t *testing.T) {
	app := newTestApp(&stubProvider{}, time.Second)

	long := strings.Repeat("w", 501)
	resp, body := postQuery(t, app, fmt.Sprintf(`{"query":"%s"}`, long))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, pipeline.CodeInvalidRequest, body["error"])
	assert.Contains(t, body["hint"], "maximum length")
}

func TestQueryEndpointParseFailure(t *testing.T) {
	app := newTestApp(&stubProvider{}, time.Second)

	resp, body := postQuery(t, app, `{"query":"tomorrow"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, pipeline.CodeMissingLocation, body["error"])
	assert.NotEmpty(t, body["request_id"])
}

func TestQueryEndpointUpstreamUnavailable(t *testing.T) {
	provider := &stubProvider{
		fetchErr: fmt.Errorf("forecast: %w", pipeline.ErrProviderUnavailable),
	}
	app := newTestApp(provider, time.Second)

	resp, body := postQuery(t, app, `{"query":"weather in Tel Aviv today"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, pipeline.CodeProviderUnavailable, body["error"])
}

func TestQueryEndpointTimeout(t *testing.T) {
	provider := &stubProvider{fetchDelay: time.Second}
	app := newTestApp(provider, 30*time.Millisecond)

	resp, body := postQuery(t, app, `{"query":"weather in Tel Aviv today"}`)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, pipeline.CodeTimeout, body["error"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, statusFor(pipeline.CodeMissingQuery))
	assert.Equal(t, fiber.StatusBadRequest, statusFor(pipeline.CodeRangeTooLarge))
	assert.Equal(t, fiber.StatusGatewayTimeout, statusFor(pipeline.CodeTimeout))
	assert.Equal(t, fiber.StatusBadGateway, statusFor(pipeline.CodeProviderUnavailable))
	assert.Equal(t, fiber.StatusBadGateway, statusFor(pipeline.CodeCallFailed))
	assert.Equal(t, fiber.StatusInternalServerError, statusFor(pipeline.CodeInternalError))
	assert.Equal(t, fiber.StatusInternalServerError, statusFor(pipeline.CodeAnalysisFailed))
}
