package pipeline

import "context"

// Unit systems accepted throughout the pipeline.
const (
	UnitsMetric   = "metric"
	UnitsImperial = "imperial"
)

// ParsedQuery is the parser's structured output: where, when, and how
// confident we are that we read the query correctly. Dates are ISO 8601
// (YYYY-MM-DD) calendar dates.
type ParsedQuery struct {
	Location   string  `json:"location"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	Units      string  `json:"units"`
	Confidence float64 `json:"confidence"`
}

// DailyRecord is one calendar day of weather. Tmin, Tmax and Code are
// pointers because providers can legitimately have gaps; precipitation and
// wind default to zero when absent.
type DailyRecord struct {
	Date       string   `json:"date"`
	Tmin       *float64 `json:"tmin"`
	Tmax       *float64 `json:"tmax"`
	PrecipMM   float64  `json:"precip_mm"`
	WindMaxKph float64  `json:"wind_max_kph"`
	Code       *int     `json:"code"`
}

// WeatherBundle is the fetched data for one location and date range.
// Daily is ordered by date ascending, one entry per calendar day.
type WeatherBundle struct {
	Location  string        `json:"location"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	Units     string        `json:"units"`
	Daily     []DailyRecord `json:"daily"`
	Source    string        `json:"source"`
}

// ResolvedParams are the parameters the fetch stage actually used, with the
// location replaced by the provider's formatted name.
type ResolvedParams struct {
	Location  string `json:"location"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Units     string `json:"units"`
}

// FetchResult pairs the fetched bundle with the resolved parameters and the
// measured provider call duration.
type FetchResult struct {
	Params     ResolvedParams
	Bundle     WeatherBundle
	DurationMS int64
}

// Extreme identifies the day holding a temperature extreme.
type Extreme struct {
	Date string   `json:"date"`
	Tmin *float64 `json:"tmin,omitempty"`
	Tmax *float64 `json:"tmax,omitempty"`
}

// Extremes holds the coldest and hottest days of the range. Either side is
// nil when the range had no data at all.
type Extremes struct {
	Coldest *Extreme `json:"coldest"`
	Hottest *Extreme `json:"hottest"`
}

// NotableDay is a day that crossed one or more severe-weather thresholds.
type NotableDay struct {
	Date string `json:"date"`
	Note string `json:"note"`
}

// Highlights are the structured companions to the narrative summary.
type Highlights struct {
	Pattern     string       `json:"pattern"`
	Extremes    Extremes     `json:"extremes"`
	NotableDays []NotableDay `json:"notable_days"`
}

// AnalysisResult is the analyst's output: prose plus highlights.
type AnalysisResult struct {
	SummaryText string     `json:"summary_text"`
	Highlights  Highlights `json:"highlights"`
	Confidence  float64    `json:"confidence"`
}

// ResponseData is the raw data section of a successful response.
type ResponseData struct {
	Daily  []DailyRecord `json:"daily"`
	Source string        `json:"source"`
}

// Response is the success envelope returned by the pipeline entry point.
type Response struct {
	Summary    string         `json:"summary"`
	Params     ResolvedParams `json:"params"`
	Data       ResponseData   `json:"data"`
	Confidence float64        `json:"confidence"`
	ToolUsed   string         `json:"tool_used"`
	LatencyMS  int64          `json:"latency_ms"`
	RequestID  string         `json:"request_id"`
}

// ErrorResponse is the error envelope. Latency covers the stages that ran
// before the failure.
type ErrorResponse struct {
	Error     string `json:"error"`
	Hint      string `json:"hint"`
	RequestID string `json:"request_id"`
	LatencyMS int64  `json:"latency_ms"`
}

// Provider abstracts the geocoding and forecast source (e.g. Open-Meteo).
type Provider interface {
	Geocode(ctx context.Context, location string) (lat, lon float64, formatted string, err error)
	FetchRange(ctx context.Context, lat, lon float64, startDate, endDate, units string) (WeatherBundle, error)
}

// Cache is the read-through layer in front of the Provider. Implementations
// must be safe for concurrent use and round coordinates to two decimals
// when building keys.
type Cache interface {
	Get(lat, lon float64, startDate, endDate, units string) (WeatherBundle, bool)
	Set(lat, lon float64, startDate, endDate, units string, bundle WeatherBundle)
}
