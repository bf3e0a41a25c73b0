package provider

import (
	"context"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/askweather/askweather/internal/logger"
	"github.com/askweather/askweather/internal/pipeline"
)

// GoogleGeocoder resolves locations through the Google Geocoding API.
// Selected by configuration when an API key is present; otherwise the
// provider's built-in Open-Meteo geocoding is used.
type GoogleGeocoder struct {
	log logger.Logger
}

func NewGoogleGeocoder(apiKey string, log logger.Logger) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{log: log.WithField("component", "google_geocoder")}
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, location string) (float64, float64, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, "", err
	}

	loc, err := geocoder.Geocoding(geocoder.Address{City: location})
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: location %q not found: %v",
			pipeline.ErrInvalidRequest, location, err)
	}

	g.log.Debugf("geocoded %q to %.4f,%.4f", location, loc.Latitude, loc.Longitude)
	return loc.Latitude, loc.Longitude, location, nil
}
