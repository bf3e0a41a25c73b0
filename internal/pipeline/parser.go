package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

const dateLayout = "2006-01-02"

// weekdays in parser order, Monday = 0.
var weekdayNames = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// Phrases that look like place candidates but are really time references.
var timeWords = map[string]struct{}{
	"last week": {}, "this week": {}, "next week": {},
	"last monday": {}, "this monday": {}, "next monday": {},
	"yesterday": {}, "today": {}, "tomorrow": {},
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
	"from": {}, "to": {}, "during": {}, "this": {}, "next": {}, "last": {},
	"week": {}, "day": {}, "month": {}, "year": {},
}

var (
	coordPattern = regexp.MustCompile(`(-?\d+\.?\d*)\s*,\s*(-?\d+\.?\d*)`)

	// Location templates tuned to common phrasing, most specific first.
	locationPatterns = []*regexp.Regexp{
		// "in/for <place> <stop word>"
		regexp.MustCompile(`(?i)\b(?:in|for)\s+([A-Za-z\s,.-]+?)(?:\s+(?:for|from|during|this|next|last|tomorrow|today|yesterday|\d))`),
		// "weather in/for <place>"
		regexp.MustCompile(`(?i)weather\s+(?:in|for)\s+([A-Za-z\s,.-]+?)(?:\s+(?:for|from|during|this|next|last|tomorrow|today|yesterday|\d)|\s*$)`),
		// "forecast/temperature/climate (data) for <place>"
		regexp.MustCompile(`(?i)\b(?:forecast|temperature|climate)\s+(?:data\s+)?for\s+([A-Za-z\s,.-]+?)(?:\s+(?:from|during|this|next|last|tomorrow|today|yesterday|\d))`),
		// "forecast <place>"
		regexp.MustCompile(`(?i)\bforecast\s+([A-Za-z][A-Za-z\s,.-]*?)(?:\s+(?:from|during|this|next|last|tomorrow|today|yesterday|\d)|\s*$)`),
		// "<place> weather"
		regexp.MustCompile(`(?i)([A-Za-z\s,.-]+?)\s+weather`),
		// trailing "in/for <place>"
		regexp.MustCompile(`(?i)\b(?:in|for)\s+([A-Za-z\s,.-]+?)\s*$`),
	}

	spacesPattern   = regexp.MustCompile(`\s+`)
	nextDaysPattern = regexp.MustCompile(`next\s+(\d+)\s+days?`)

	// Explicit range connectors. The second capture runs to a comma, a
	// trailing "for ..." clause, or the end of the query.
	rangePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bfrom\s+(.+?)\s+to\s+(.+?)(?:\s*,|\s+for\b|\s*$)`),
		regexp.MustCompile(`\bbetween\s+(.+?)\s+and\s+(.+?)(?:\s*,|\s+for\b|\s*$)`),
		regexp.MustCompile(`(.+?)\s+to\s+(.+?)(?:\s*,|\s*$)`),
		regexp.MustCompile(`(.+?)\s+through\s+(.+?)(?:\s*,|\s*$)`),
	}

	// Recognizable bare date tokens for the fallback extractor.
	bareDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),               // YYYY-MM-DD
		regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{4})\b`),     // MM/DD/YYYY
		regexp.MustCompile(`\b([A-Za-z]+\s+\d{1,2},?\s+\d{4})\b`),   // Month DD, YYYY
	}

	monthDayPattern   = regexp.MustCompile(`(?i)^[a-z]+\s+\d{1,2}$`)
	punctuationClean  = regexp.MustCompile(`[,.]`)
	weekdayQualifiers []*regexp.Regexp
)

func init() {
	for _, name := range weekdayNames {
		weekdayQualifiers = append(weekdayQualifiers,
			regexp.MustCompile(`\b(?:last|this|next)\s+`+name+`\b`))
	}
}

// DateRangeParser turns free-text weather queries into ParsedQuery values.
// It is anchored on an explicit "today" so output is deterministic for a
// given query and anchor.
type DateRangeParser struct {
	today time.Time
}

// NewDateRangeParser anchors a parser on the calendar day of anchor.
func NewDateRangeParser(anchor time.Time) *DateRangeParser {
	y, m, d := anchor.Date()
	return &DateRangeParser{today: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Parse extracts location, date range, units and a confidence score from a
// free-text query.
func (p *DateRangeParser) Parse(query string) (*ParsedQuery, *StageError) {
	queryLower := strings.ToLower(strings.TrimSpace(query))

	units := extractUnits(queryLower)

	location, ok := p.extractLocation(query)
	if !ok {
		return nil, stageError(CodeMissingLocation,
			"Please specify a location (city name or coordinates)")
	}

	startDate, endDate, ok := p.extractDateRange(queryLower)
	if !ok {
		return nil, stageError(CodeInvalidDateRange,
			"Could not parse date range from query")
	}

	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, stageError(CodeInvalidDateRange, "Could not parse date range from query")
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, stageError(CodeInvalidDateRange, "Could not parse date range from query")
	}

	if end.Before(start) {
		return nil, stageError(CodeInvalidDateOrder, "End date must be after start date")
	}

	spanDays := int(end.Sub(start).Hours()/24) + 1
	if spanDays > 31 {
		return nil, stageError(CodeRangeTooLarge, "Date range must be <= 31 days")
	}

	return &ParsedQuery{
		Location:   location,
		StartDate:  startDate,
		EndDate:    endDate,
		Units:      units,
		Confidence: p.confidence(queryLower, location),
	}, nil
}

func extractUnits(queryLower string) string {
	if containsAny(queryLower, "imperial", "fahrenheit", "mph") {
		return UnitsImperial
	}
	return UnitsMetric
}

// extractLocation runs the matcher cascade: coordinates first, then the
// phrasing templates in priority order.
func (p *DateRangeParser) extractLocation(query string) (string, bool) {
	if m := coordPattern.FindStringSubmatch(query); m != nil {
		return m[1] + "," + m[2], true
	}

	for _, pattern := range locationPatterns {
		m := pattern.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		candidate := cleanLocation(m[1])
		if validLocation(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func cleanLocation(s string) string {
	s = spacesPattern.ReplaceAllString(strings.TrimSpace(s), " ")
	return strings.Trim(s, " ,.-")
}

func validLocation(s string) bool {
	if len(s) <= 2 {
		return false
	}
	_, isTimeWord := timeWords[strings.ToLower(s)]
	return !isTimeWord
}

// dateMatcher tries one extraction strategy; ok reports success.
type dateMatcher func(queryLower string) (start, end string, ok bool)

// extractDateRange tries each strategy in priority order and keeps the
// first one that produces a range.
func (p *DateRangeParser) extractDateRange(queryLower string) (string, string, bool) {
	matchers := []dateMatcher{
		p.matchSingleRelativeDay,
		p.matchNamedWeek,
		p.matchWorkweek,
		p.matchQualifiedWeekday,
		p.matchNextNDays,
		p.matchConnectorRange,
		p.matchBareDates,
	}
	for _, match := range matchers {
		if start, end, ok := match(queryLower); ok {
			return start, end, true
		}
	}
	return "", "", false
}

// matchSingleRelativeDay handles bare "today"/"tomorrow"/"yesterday"
// queries. A range connector in the query defers to the range matchers.
func (p *DateRangeParser) matchSingleRelativeDay(q string) (string, string, bool) {
	if containsAny(q, " from ", " to ", "between") {
		return "", "", false
	}
	switch {
	case strings.Contains(q, "today"):
		d := p.today.Format(dateLayout)
		return d, d, true
	case strings.Contains(q, "tomorrow"):
		d := p.today.AddDate(0, 0, 1).Format(dateLayout)
		return d, d, true
	case strings.Contains(q, "yesterday"):
		d := p.today.AddDate(0, 0, -1).Format(dateLayout)
		return d, d, true
	}
	return "", "", false
}

func (p *DateRangeParser) matchNamedWeek(q string) (string, string, bool) {
	offset := 0
	switch {
	case strings.Contains(q, "last week"):
		offset = -7
	case strings.Contains(q, "this week"):
		offset = 0
	case strings.Contains(q, "next week"):
		offset = 7
	default:
		return "", "", false
	}
	monday := p.thisMonday().AddDate(0, 0, offset)
	return monday.Format(dateLayout), monday.AddDate(0, 0, 6).Format(dateLayout), true
}

func (p *DateRangeParser) matchWorkweek(q string) (string, string, bool) {
	var monday time.Time
	switch {
	case strings.Contains(q, "last monday to friday"):
		monday = p.thisMonday().AddDate(0, 0, -7)
	case strings.Contains(q, "this monday to friday"):
		monday = p.thisMonday()
	default:
		return "", "", false
	}
	return monday.Format(dateLayout), monday.AddDate(0, 0, 4).Format(dateLayout), true
}

func (p *DateRangeParser) matchQualifiedWeekday(q string) (string, string, bool) {
	if containsAny(q, " from ", " to ", "between") {
		return "", "", false
	}
	for i, pattern := range weekdayQualifiers {
		if m := pattern.FindString(q); m != "" {
			d := p.weekdayDate(i, m)
			return d, d, true
		}
	}
	return "", "", false
}

func (p *DateRangeParser) matchNextNDays(q string) (string, string, bool) {
	m := nextDaysPattern.FindStringSubmatch(q)
	if m == nil {
		return "", "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return "", "", false
	}
	start := p.today.AddDate(0, 0, 1).Format(dateLayout)
	end := p.today.AddDate(0, 0, n).Format(dateLayout)
	return start, end, true
}

func (p *DateRangeParser) matchConnectorRange(q string) (string, string, bool) {
	for _, pattern := range rangePatterns {
		m := pattern.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		start, okStart := p.parseSingleDate(m[1])
		end, okEnd := p.parseSingleDate(m[2])
		if okStart && okEnd {
			return start, end, true
		}
	}
	return "", "", false
}

// matchBareDates collects every recognizable date token; two or more give
// a (min, max) range, exactly one gives a one-day range.
func (p *DateRangeParser) matchBareDates(q string) (string, string, bool) {
	var dates []string
	for _, pattern := range bareDatePatterns {
		for _, m := range pattern.FindAllStringSubmatch(q, -1) {
			if t, err := dateparse.ParseAny(m[1]); err == nil {
				dates = append(dates, t.Format(dateLayout))
			}
		}
	}
	if len(dates) == 0 {
		return "", "", false
	}
	minDate, maxDate := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d < minDate {
			minDate = d
		}
		if d > maxDate {
			maxDate = d
		}
	}
	return minDate, maxDate, true
}

// parseSingleDate resolves one side of an explicit range: relative
// keywords, weekday names, then free-form date strings.
func (p *DateRangeParser) parseSingleDate(s string) (string, bool) {
	s = punctuationClean.ReplaceAllString(strings.TrimSpace(s), "")
	lower := strings.ToLower(s)

	switch {
	case strings.Contains(lower, "today"):
		return p.today.Format(dateLayout), true
	case strings.Contains(lower, "yesterday"):
		return p.today.AddDate(0, 0, -1).Format(dateLayout), true
	case strings.Contains(lower, "tomorrow"):
		return p.today.AddDate(0, 0, 1).Format(dateLayout), true
	}

	for i, name := range weekdayNames {
		if strings.Contains(lower, name) {
			return p.weekdayDate(i, lower), true
		}
	}

	// "October 20" carries no year; anchor it before handing off.
	if monthDayPattern.MatchString(s) {
		s = fmt.Sprintf("%s %d", s, p.today.Year())
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", false
	}
	return t.Format(dateLayout), true
}

// weekdayDate resolves a weekday name against the anchor. "last" is the
// most recent past occurrence (a full week back when today matches),
// "next" the nearest future occurrence with the same wrap rule, otherwise
// the occurrence within the current Monday-Sunday week.
func (p *DateRangeParser) weekdayDate(target int, phrase string) string {
	current := mondayIndex(p.today)

	var d time.Time
	switch {
	case strings.Contains(phrase, "last"):
		back := ((current - target) % 7 + 7) % 7
		if back == 0 {
			back = 7
		}
		d = p.today.AddDate(0, 0, -back)
	case strings.Contains(phrase, "next"):
		forward := ((target - current) % 7 + 7) % 7
		if forward == 0 {
			forward = 7
		}
		d = p.today.AddDate(0, 0, forward)
	default:
		d = p.today.AddDate(0, 0, target-current)
	}
	return d.Format(dateLayout)
}

func (p *DateRangeParser) thisMonday() time.Time {
	return p.today.AddDate(0, 0, -mondayIndex(p.today))
}

// mondayIndex maps time.Weekday onto Monday=0..Sunday=6.
func mondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// confidence is a weighted heuristic, not a probability: location
// specificity and date clarity carry 40% each, units 10%, overall query
// structure the last 10%. Clamped to [0, 1].
func (p *DateRangeParser) confidence(queryLower, location string) float64 {
	confidence := 0.0

	locationScore := 0.0
	if len(location) > 2 {
		locationScore += 0.2
	}
	if strings.IndexFunc(location, unicode.IsUpper) >= 0 { // proper-noun signal
		locationScore += 0.1
	}
	if containsAny(strings.ToLower(location), "somewhere", "anywhere", "unknown") {
		locationScore -= 0.2
	}
	confidence += min(locationScore, 0.4)

	dateScore := 0.2 // successful parse
	dateScore += 0.1 // ranges are normalized to ISO dates
	if containsAny(queryLower, "sometime", "maybe", "perhaps", "possibly") {
		dateScore -= 0.15
	}
	if containsAny(queryLower, "today", "tomorrow", "yesterday", "last week", "next week", "this week") {
		dateScore += 0.1
	}
	confidence += min(dateScore, 0.4)

	if containsAny(queryLower, "metric", "imperial", "fahrenheit", "celsius") {
		confidence += 0.1
	} else {
		confidence += 0.05
	}

	clarity := 0.0
	for _, word := range []string{"maybe", "perhaps", "might", "possibly", "unclear", "vague"} {
		if strings.Contains(queryLower, word) {
			clarity -= 0.03
		}
	}
	if containsAny(queryLower, "from", "to", "between", "in") {
		clarity += 0.05
	}
	if len(strings.Fields(queryLower)) > 15 {
		clarity -= 0.02
	}
	confidence += clarity

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
