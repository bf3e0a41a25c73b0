package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/askweather/askweather/internal/logger"
)

// WeatherDataFetcher resolves a ParsedQuery into a WeatherBundle through
// the Provider, with the Cache as a read-through layer in front of it.
type WeatherDataFetcher struct {
	provider Provider
	cache    Cache
	timeout  time.Duration
	log      logger.Logger
}

func NewWeatherDataFetcher(provider Provider, cache Cache, timeout time.Duration, log logger.Logger) *WeatherDataFetcher {
	return &WeatherDataFetcher{
		provider: provider,
		cache:    cache,
		timeout:  timeout,
		log:      log.WithField("component", "fetcher"),
	}
}

// Fetch geocodes the location, consults the cache, and calls the provider
// on a miss. The provider call runs under the configured timeout; elapsed
// wall-clock time is measured for every call, success or failure.
func (f *WeatherDataFetcher) Fetch(ctx context.Context, query *ParsedQuery) (*FetchResult, *StageError) {
	if serr := validateQuery(query); serr != nil {
		return nil, serr
	}

	units := query.Units
	if units == "" {
		units = UnitsMetric
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	started := time.Now()

	lat, lon, formatted, err := f.provider.Geocode(ctx, query.Location)
	if err != nil {
		elapsed := time.Since(started)
		f.log.Warnf("geocoding failed for %q after %v: %v", query.Location, elapsed, err)
		return nil, f.mapProviderError(err, elapsed)
	}

	params := ResolvedParams{
		Location:  formatted,
		StartDate: query.StartDate,
		EndDate:   query.EndDate,
		Units:     units,
	}

	if bundle, ok := f.cache.Get(lat, lon, query.StartDate, query.EndDate, units); ok {
		f.log.Debugf("cache hit for %s %s..%s", formatted, query.StartDate, query.EndDate)
		bundle.Location = formatted
		return &FetchResult{
			Params:     params,
			Bundle:     bundle,
			DurationMS: time.Since(started).Milliseconds(),
		}, nil
	}

	bundle, err := f.provider.FetchRange(ctx, lat, lon, query.StartDate, query.EndDate, units)
	elapsed := time.Since(started)
	if err != nil {
		f.log.Warnf("range fetch failed for %s after %v: %v", formatted, elapsed, err)
		return nil, f.mapProviderError(err, elapsed)
	}

	bundle.Location = formatted
	f.cache.Set(lat, lon, query.StartDate, query.EndDate, units, bundle)

	f.log.Infof("fetched %d days for %s in %v", len(bundle.Daily), formatted, elapsed)
	return &FetchResult{
		Params:     params,
		Bundle:     bundle,
		DurationMS: elapsed.Milliseconds(),
	}, nil
}

func validateQuery(query *ParsedQuery) *StageError {
	switch {
	case query == nil:
		return stageError(CodeMissingParameters, "Missing required parameter: location")
	case query.Location == "":
		return stageError(CodeMissingParameters, "Missing required parameter: location")
	case query.StartDate == "":
		return stageError(CodeMissingParameters, "Missing required parameter: start_date")
	case query.EndDate == "":
		return stageError(CodeMissingParameters, "Missing required parameter: end_date")
	}
	return nil
}

// mapProviderError converts collaborator failures onto the stable codes.
func (f *WeatherDataFetcher) mapProviderError(err error, elapsed time.Duration) *StageError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return stageError(CodeTimeout,
			fmt.Sprintf("Provider call timed out after %s", f.timeout))
	case errors.Is(err, ErrInvalidRequest):
		return stageError(CodeInvalidRequest, err.Error())
	case errors.Is(err, ErrMalformedResponse):
		return stageError(CodeInvalidResponse, err.Error())
	case errors.Is(err, ErrProviderUnavailable):
		return stageError(CodeProviderUnavailable, err.Error())
	default:
		return stageError(CodeCallFailed,
			fmt.Sprintf("Provider call failed after %s: %v", elapsed.Round(time.Millisecond), err))
	}
}
