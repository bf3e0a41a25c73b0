package pipeline

import "errors"

// Stable error codes. Callers branch on these, so they never change shape:
// client-input codes map to 4xx, upstream codes to 502/504, internal codes
// to 500.
const (
	CodeMissingQuery      = "missing_query"
	CodeMissingLocation   = "missing_location"
	CodeInvalidDateRange  = "invalid_date_range"
	CodeInvalidDateOrder  = "invalid_date_order"
	CodeRangeTooLarge     = "range_too_large"
	CodeParsingFailed     = "parsing_failed"
	CodeMissingParameters = "missing_parameters"

	CodeInvalidRequest      = "invalid_request"
	CodeTimeout             = "mcp_timeout"
	CodeInvalidResponse     = "invalid_mcp_response"
	CodeCallFailed          = "mcp_call_failed"
	CodeFetchFailed         = "fetch_failed"
	CodeProviderUnavailable = "provider_unavailable"

	CodeNoWeatherData  = "no_weather_data"
	CodeAnalysisFailed = "analysis_failed"
	CodeInternalError  = "internal_error"
)

// StageError is the uniform error shape flowing between pipeline stages.
// Once a stage emits one, every later stage forwards it unchanged.
type StageError struct {
	Code string
	Hint string
}

func (e *StageError) Error() string {
	return e.Code + ": " + e.Hint
}

func stageError(code, hint string) *StageError {
	return &StageError{Code: code, Hint: hint}
}

// Sentinel errors Provider implementations wrap so the fetch stage can map
// transport failures onto stable codes without knowing the provider.
var (
	ErrInvalidRequest      = errors.New("invalid provider request")
	ErrMalformedResponse   = errors.New("malformed provider response")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ClientInputError reports whether code identifies a problem with the
// caller's query rather than with this service or its upstreams.
func ClientInputError(code string) bool {
	switch code {
	case CodeMissingQuery, CodeMissingLocation, CodeInvalidDateRange,
		CodeInvalidDateOrder, CodeRangeTooLarge, CodeMissingParameters,
		CodeInvalidRequest:
		return true
	}
	return false
}

// UpstreamError reports whether code identifies an upstream dependency
// failure.
func UpstreamError(code string) bool {
	switch code {
	case CodeTimeout, CodeInvalidResponse, CodeCallFailed, CodeFetchFailed,
		CodeProviderUnavailable:
		return true
	}
	return false
}
