package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// WMO weather interpretation codes.
var weatherCodeDescriptions = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "moderate drizzle",
	55: "dense drizzle",
	56: "light freezing drizzle",
	57: "dense freezing drizzle",
	61: "slight rain",
	63: "moderate rain",
	65: "heavy rain",
	66: "light freezing rain",
	67: "heavy freezing rain",
	71: "slight snow fall",
	73: "moderate snow fall",
	75: "heavy snow fall",
	77: "snow grains",
	80: "slight rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	85: "slight snow showers",
	86: "heavy snow showers",
	95: "thunderstorm",
	96: "thunderstorm with slight hail",
	99: "thunderstorm with heavy hail",
}

// WeatherAnalyst turns a WeatherBundle into a narrative summary with
// highlights. It performs no I/O and holds no mutable state, so the same
// bundle always yields the same result.
type WeatherAnalyst struct{}

func NewWeatherAnalyst() *WeatherAnalyst {
	return &WeatherAnalyst{}
}

// aggregates are the range statistics computed once and shared by
// classification and summary generation.
type aggregates struct {
	avgTmin     float64
	avgTmax     float64
	totalPrecip float64
	rainyDays   int
	avgWind     float64
	minWind     float64
	maxWind     float64
}

// Analyze produces the analysis for a fetched bundle.
func (a *WeatherAnalyst) Analyze(bundle WeatherBundle) (*AnalysisResult, *StageError) {
	if len(bundle.Daily) == 0 {
		return nil, stageError(CodeNoWeatherData, "No weather data available for analysis")
	}

	agg := computeAggregates(bundle.Daily)

	pattern := strings.Join([]string{
		classifyTemperature(agg.avgTmin, agg.avgTmax, bundle.Units),
		classifyPrecipitation(agg.totalPrecip, agg.rainyDays, len(bundle.Daily)),
		classifyWind(agg.avgWind),
	}, ", ")

	extremes := findExtremes(bundle.Daily)
	notable := findNotableDays(bundle.Daily)

	return &AnalysisResult{
		SummaryText: buildSummary(bundle, agg, pattern, extremes, notable),
		Highlights: Highlights{
			Pattern:     pattern,
			Extremes:    extremes,
			NotableDays: notable,
		},
		Confidence: analysisConfidence(len(bundle.Daily), extremes, notable, pattern),
	}, nil
}

func computeAggregates(daily []DailyRecord) aggregates {
	var agg aggregates
	var tminSum, tmaxSum float64
	var tminCount, tmaxCount int

	agg.minWind = math.Inf(1)

	for _, day := range daily {
		if day.Tmin != nil {
			tminSum += *day.Tmin
			tminCount++
		}
		if day.Tmax != nil {
			tmaxSum += *day.Tmax
			tmaxCount++
		}
		agg.totalPrecip += day.PrecipMM
		if day.PrecipMM >= 1.0 {
			agg.rainyDays++
		}
		agg.avgWind += day.WindMaxKph
		if day.WindMaxKph < agg.minWind {
			agg.minWind = day.WindMaxKph
		}
		if day.WindMaxKph > agg.maxWind {
			agg.maxWind = day.WindMaxKph
		}
	}

	if tminCount > 0 {
		agg.avgTmin = tminSum / float64(tminCount)
	}
	if tmaxCount > 0 {
		agg.avgTmax = tmaxSum / float64(tmaxCount)
	}
	agg.avgWind /= float64(len(daily))
	if math.IsInf(agg.minWind, 1) {
		agg.minWind = 0
	}
	return agg
}

func classifyTemperature(avgTmin, avgTmax float64, units string) string {
	avg := (avgTmin + avgTmax) / 2

	if units == UnitsImperial {
		switch {
		case avg >= 80:
			return "hot"
		case avg >= 65:
			return "warm"
		case avg >= 50:
			return "cool"
		default:
			return "cold"
		}
	}
	switch {
	case avg >= 27:
		return "hot"
	case avg >= 18:
		return "warm"
	case avg >= 10:
		return "cool"
	default:
		return "cold"
	}
}

func classifyPrecipitation(totalPrecip float64, rainyDays, totalDays int) string {
	switch {
	case totalPrecip >= 25:
		return "wet"
	case float64(rainyDays) >= float64(totalDays)*0.5:
		return "wet"
	case totalPrecip >= 5:
		return "slightly wet"
	default:
		return "dry"
	}
}

func classifyWind(avgWind float64) string {
	switch {
	case avgWind >= 40:
		return "windy"
	case avgWind >= 20:
		return "breezy"
	default:
		return "calm"
	}
}

// findExtremes picks the day with the lowest tmin and the day with the
// highest tmax. Records missing the relevant field are never selected
// unless nothing else qualifies; ties keep the earliest day.
func findExtremes(daily []DailyRecord) Extremes {
	coldest, hottest := -1, -1
	coldestVal := math.Inf(1)
	hottestVal := math.Inf(-1)

	for i, day := range daily {
		if day.Tmin != nil && *day.Tmin < coldestVal {
			coldestVal = *day.Tmin
			coldest = i
		}
		if day.Tmax != nil && *day.Tmax > hottestVal {
			hottestVal = *day.Tmax
			hottest = i
		}
	}
	if coldest == -1 {
		coldest = 0
	}
	if hottest == -1 {
		hottest = 0
	}

	return Extremes{
		Coldest: &Extreme{Date: daily[coldest].Date, Tmin: daily[coldest].Tmin},
		Hottest: &Extreme{Date: daily[hottest].Date, Tmax: daily[hottest].Tmax},
	}
}

func findNotableDays(daily []DailyRecord) []NotableDay {
	var notable []NotableDay

	for _, day := range daily {
		var notes []string

		if day.PrecipMM >= 5 {
			notes = append(notes, "heavy rain")
		}
		if day.WindMaxKph >= 40 {
			notes = append(notes, "strong winds")
		}
		if day.Code != nil {
			switch *day.Code {
			case 95, 96, 99:
				notes = append(notes, "thunderstorm")
			case 65, 67, 82:
				notes = append(notes, "heavy precipitation")
			case 73, 75, 86:
				notes = append(notes, "heavy snow")
			}
		}

		if len(notes) > 0 {
			notable = append(notable, NotableDay{Date: day.Date, Note: strings.Join(notes, ", ")})
		}
	}
	return notable
}

// buildSummary assembles the narrative from sentence templates: intro,
// pattern, temperature, precipitation, wind, observed conditions, notable
// events, and a closing synthesis. Target length is 150-250 words.
func buildSummary(bundle WeatherBundle, agg aggregates, pattern string, extremes Extremes, notable []NotableDay) string {
	location := bundle.Location
	if location == "" {
		location = "the location"
	}

	dateRange, periodDesc := describePeriod(bundle.StartDate, bundle.EndDate)

	parts := strings.SplitN(pattern, ", ", 3)
	tempDesc, precipDesc, windDesc := "moderate", "typical", "calm"
	if len(parts) > 0 {
		tempDesc = parts[0]
	}
	if len(parts) > 1 {
		precipDesc = parts[1]
	}
	if len(parts) > 2 {
		windDesc = parts[2]
	}

	tempUnit := "°C"
	if bundle.Units == UnitsImperial {
		tempUnit = "°F"
	}

	var lines []string

	lines = append(lines, fmt.Sprintf(
		"Comprehensive weather analysis for %s %s reveals detailed atmospheric conditions across this %s.",
		location, dateRange, periodDesc))
	lines = append(lines, fmt.Sprintf(
		"The overall weather pattern was characterized by %s temperatures, %s precipitation conditions, and %s wind patterns throughout the observation period.",
		tempDesc, precipDesc, windDesc))

	if extremes.Coldest != nil && extremes.Coldest.Tmin != nil &&
		extremes.Hottest != nil && extremes.Hottest.Tmax != nil {
		lines = append(lines, fmt.Sprintf(
			"Temperature analysis shows average daily lows of %.1f%s and highs of %.1f%s. "+
				"The coldest temperature recorded was %.1f%s on %s, while the warmest reached %.1f%s on %s.",
			agg.avgTmin, tempUnit, agg.avgTmax, tempUnit,
			*extremes.Coldest.Tmin, tempUnit, prettyDate(extremes.Coldest.Date),
			*extremes.Hottest.Tmax, tempUnit, prettyDate(extremes.Hottest.Date)))
	} else {
		lines = append(lines, fmt.Sprintf(
			"Temperature patterns showed consistent ranges with average lows of %.1f%s and highs of %.1f%s.",
			agg.avgTmin, tempUnit, agg.avgTmax, tempUnit))
	}

	// Precipitation.
	switch {
	case agg.totalPrecip > 0 && agg.rainyDays > 0:
		lines = append(lines, fmt.Sprintf(
			"Precipitation analysis indicates %.1fmm of total rainfall distributed across %d rainy days, a significant moisture contribution to the regional weather pattern.",
			agg.totalPrecip, agg.rainyDays))
	case agg.totalPrecip > 0:
		lines = append(lines, fmt.Sprintf(
			"Light precipitation totaling %.1fmm was recorded, indicating minimal rainfall activity.",
			agg.totalPrecip))
	default:
		lines = append(lines,
			"Precipitation remained minimal throughout the period, indicating predominantly dry atmospheric conditions.")
	}

	lines = append(lines, fmt.Sprintf(
		"Wind conditions showed average speeds of %.1f km/h, ranging from gentle %.1f km/h breezes to stronger gusts reaching %.1f km/h, contributing to the overall %s atmospheric environment.",
		agg.avgWind, agg.minWind, agg.maxWind, windDesc))

	if conditions := observedConditions(bundle.Daily); len(conditions) > 0 {
		if len(conditions) > 1 {
			lines = append(lines, fmt.Sprintf(
				"Weather conditions varied throughout the period, including %s and %s.",
				strings.Join(conditions[:len(conditions)-1], ", "), conditions[len(conditions)-1]))
		} else {
			lines = append(lines, fmt.Sprintf(
				"Weather conditions remained consistently %s, providing stable atmospheric patterns throughout the observation period.",
				conditions[0]))
		}
	}

	if len(notable) > 0 {
		var events []string
		for i, day := range notable {
			if i == 4 {
				break
			}
			events = append(events, fmt.Sprintf("%s experienced %s", prettyDate(day.Date), day.Note))
		}
		lines = append(lines,
			"Significant meteorological events were observed during this period: "+
				strings.Join(events, ". ")+". These events significantly influenced the local weather dynamics.")
	} else {
		lines = append(lines,
			"No significant extreme weather events were recorded, indicating stable atmospheric conditions throughout the observation period.")
	}

	lines = append(lines, fmt.Sprintf(
		"Overall assessment indicates that the weather in %s during this %s demonstrated %s thermal characteristics with %s moisture patterns and %s wind conditions, aligning with typical seasonal expectations for the region.",
		location, periodDesc, tempDesc, precipDesc, windDesc))

	return strings.Join(lines, " ")
}

// observedConditions lists the distinct weather-code descriptions seen in
// the range, sorted for stable output.
func observedConditions(daily []DailyRecord) []string {
	seen := make(map[string]struct{})
	for _, day := range daily {
		if day.Code == nil {
			continue
		}
		if desc, ok := weatherCodeDescriptions[*day.Code]; ok {
			seen[desc] = struct{}{}
		}
	}

	conditions := make([]string, 0, len(seen))
	for desc := range seen {
		conditions = append(conditions, desc)
	}
	sort.Strings(conditions)
	return conditions
}

func describePeriod(startDate, endDate string) (dateRange, periodDesc string) {
	start, errStart := time.Parse(dateLayout, startDate)
	end, errEnd := time.Parse(dateLayout, endDate)
	if errStart != nil || errEnd != nil {
		return fmt.Sprintf("from %s to %s", startDate, endDate), "period"
	}

	if startDate == endDate {
		return "on " + start.Format("January 02, 2006"), "day"
	}
	days := int(end.Sub(start).Hours()/24) + 1
	return fmt.Sprintf("from %s to %s", start.Format("January 02"), end.Format("January 02, 2006")),
		fmt.Sprintf("%d-day period", days)
}

func prettyDate(isoDate string) string {
	t, err := time.Parse(dateLayout, isoDate)
	if err != nil {
		return isoDate
	}
	return t.Format("January 02")
}

// analysisConfidence starts at 0.5 and adds points for data volume, having
// both extremes, notable days, and a pattern string. Capped at 1.
func analysisConfidence(dataPoints int, extremes Extremes, notable []NotableDay, pattern string) float64 {
	confidence := 0.5

	switch {
	case dataPoints >= 7:
		confidence += 0.2
	case dataPoints >= 3:
		confidence += 0.1
	}
	if extremes.Coldest != nil && extremes.Hottest != nil {
		confidence += 0.1
	}
	if len(notable) > 0 {
		confidence += 0.1
	}
	if pattern != "" {
		confidence += 0.1
	}

	if confidence > 1 {
		return 1
	}
	return confidence
}
