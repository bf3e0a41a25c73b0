package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askweather/askweather/internal/logger"
)

// ToolName identifies the range-fetch operation in success envelopes.
const ToolName = "weather.get_range"

// State is the orchestrator's position in the parse -> fetch -> analyze
// sequence.
type State string

const (
	StateParsing   State = "parsing"
	StateFetching  State = "fetching"
	StateAnalyzing State = "analyzing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Pipeline is the exposed entry point: one call takes a free-text query
// and returns either the success envelope or the error envelope.
type Pipeline struct {
	fetcher *WeatherDataFetcher
	analyst *WeatherAnalyst
	now     func() time.Time
	log     logger.Logger
}

// New wires a pipeline over the given collaborators. timeout bounds each
// provider call.
func New(provider Provider, cache Cache, timeout time.Duration, log logger.Logger) *Pipeline {
	return &Pipeline{
		fetcher: NewWeatherDataFetcher(provider, cache, timeout, log),
		analyst: NewWeatherAnalyst(),
		now:     time.Now,
		log:     log.WithField("component", "pipeline"),
	}
}

// flowRun is the per-request state machine. Stages run synchronously; the
// first stage error stops the run and becomes the error envelope.
type flowRun struct {
	p         *Pipeline
	requestID string
	state     State
	latencyMS int64
}

// ProcessQuery runs one query through parse -> fetch -> analyze. Every
// invocation gets a fresh request id, reported in both outcomes together
// with the accumulated stage latency.
func (p *Pipeline) ProcessQuery(ctx context.Context, query string) (*Response, *ErrorResponse) {
	run := &flowRun{p: p, requestID: uuid.NewString(), state: StateParsing}

	p.log.Infof("request %s: processing query", run.requestID)

	if strings.TrimSpace(query) == "" {
		return nil, run.fail(stageError(CodeMissingQuery, "Query parameter is required"))
	}

	parsed, serr := run.parse(query)
	if serr != nil {
		return nil, run.fail(serr)
	}

	run.state = StateFetching
	fetched, serr := run.fetch(ctx, parsed)
	if serr != nil {
		return nil, run.fail(serr)
	}

	run.state = StateAnalyzing
	analysis, serr := run.analyze(fetched.Bundle)
	if serr != nil {
		return nil, run.fail(serr)
	}

	run.state = StateDone
	p.log.Infof("request %s: completed in %dms", run.requestID, run.latencyMS)

	return &Response{
		Summary:    analysis.SummaryText,
		Params:     fetched.Params,
		Data:       ResponseData{Daily: fetched.Bundle.Daily, Source: fetched.Bundle.Source},
		Confidence: analysis.Confidence,
		ToolUsed:   ToolName,
		LatencyMS:  run.latencyMS,
		RequestID:  run.requestID,
	}, nil
}

func (r *flowRun) parse(query string) (parsed *ParsedQuery, serr *StageError) {
	defer r.measure(r.p.now())
	defer func() {
		if rec := recover(); rec != nil {
			serr = stageError(CodeParsingFailed, fmt.Sprintf("Failed to parse query: %v", rec))
		}
	}()

	parser := NewDateRangeParser(r.p.now())
	return parser.Parse(query)
}

func (r *flowRun) fetch(ctx context.Context, parsed *ParsedQuery) (result *FetchResult, serr *StageError) {
	defer r.measure(r.p.now())
	defer func() {
		if rec := recover(); rec != nil {
			serr = stageError(CodeFetchFailed, fmt.Sprintf("Failed to fetch weather data: %v", rec))
		}
	}()

	return r.p.fetcher.Fetch(ctx, parsed)
}

func (r *flowRun) analyze(bundle WeatherBundle) (result *AnalysisResult, serr *StageError) {
	defer r.measure(r.p.now())
	defer func() {
		if rec := recover(); rec != nil {
			serr = stageError(CodeAnalysisFailed, fmt.Sprintf("Failed to analyze weather data: %v", rec))
		}
	}()

	return r.p.analyst.Analyze(bundle)
}

// measure adds the elapsed time of the stage that started at stageStart to
// the running total.
func (r *flowRun) measure(stageStart time.Time) {
	elapsed := r.p.now().Sub(stageStart).Milliseconds()
	if elapsed > 0 {
		r.latencyMS += elapsed
	}
}

func (r *flowRun) fail(serr *StageError) *ErrorResponse {
	failedAt := r.state
	r.state = StateFailed
	r.p.log.Warnf("request %s: failed at %s stage: %s", r.requestID, failedAt, serr.Error())
	return &ErrorResponse{
		Error:     serr.Code,
		Hint:      serr.Hint,
		RequestID: r.requestID,
		LatencyMS: r.latencyMS,
	}
}
