package extract

import (
	"regexp"
	"strconv"
	"strings"

	"venuecrawl/internal/model"
)

var (
	dayRe             = regexp.MustCompile(`(?i)\b(mon|tue|wed|thu|fri|sat|sun)[a-z]*(?:\s*[-–to]+\s*(mon|tue|wed|thu|fri|sat|sun)[a-z]*)?\b`)
	timeBlockRe       = regexp.MustCompile(`(\d{1,2}(?::|\.|h)?\d{0,2}\s*(?:am|pm)?)\s*[-–]\s*(\d{1,2}(?::|\.|h)?\d{0,2}\s*(?:am|pm)?)`)
	phoneRe           = regexp.MustCompile(`(?:\+?\d[\d\s().-]{6,}\d)`)
	emailRe           = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	currencyRe        = regexp.MustCompile(`[€£$]`)
	priceRangePhaseRe = regexp.MustCompile(`(?i)price\s*range\s*[:\-]\s*([€£$]{1,4})`)
	currencyPriceRe   = regexp.MustCompile(`([€£$])\s?(\d+(?:[.,]\d{1,2})?)`)
)

var hoursPageTypes = map[model.PageType]bool{
	model.PageHours: true, model.PageContact: true, model.PageAbout: true, model.PageHomepage: true,
}
var feesPageTypes = map[model.PageType]bool{
	model.PageFees: true, model.PageAbout: true, model.PageHomepage: true,
}

// HeuristicFacts is what regex-based extraction can recover from plain text
// when schema.org markup is absent or incomplete.
type HeuristicFacts struct {
	Hours       model.Hours
	Phone       string
	Email       string
	Fees        string
	MenuURL     string
	PriceRange  string
	Description string
}

// ExtractHeuristics scans cleanedText line by line, gating each kind of
// extraction to the page types it's reliable on.
func ExtractHeuristics(cleanedText string, pageType model.PageType) HeuristicFacts {
	var facts HeuristicFacts
	lines := strings.Split(cleanedText, "\n")

	if m := emailRe.FindString(cleanedText); m != "" {
		facts.Email = m
	}
	if phone := extractPhone(cleanedText); phone != "" {
		facts.Phone = phone
	}

	if hoursPageTypes[pageType] {
		facts.Hours = extractHours(lines)
	}

	if feesPageTypes[pageType] {
		facts.Fees = extractFeeLine(lines)
	}

	if pageType == model.PageMenu {
		facts.PriceRange = bucketPriceRange(cleanedText)
	}

	facts.Description = fallbackDescription(lines)

	return facts
}

func extractPhone(text string) string {
	best := ""
	for _, m := range phoneRe.FindAllString(text, -1) {
		digits := digitsOnly(m)
		if len(digits) >= 7 && len(digits) > len(digitsOnly(best)) {
			best = strings.TrimSpace(m)
		}
	}
	return best
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractHours(lines []string) model.Hours {
	hours := model.Hours{}
	for _, line := range lines {
		dayMatch := dayRe.FindStringSubmatch(line)
		timeMatch := timeBlockRe.FindStringSubmatch(line)
		if dayMatch == nil || timeMatch == nil {
			continue
		}
		open := normalizeHHMM(timeMatch[1])
		closeTime := normalizeHHMM(timeMatch[2])
		if open == "" || closeTime == "" {
			continue
		}
		days := daySpan(dayMatch[1], dayMatch[2])
		for _, d := range days {
			hours[d] = appendRangeDedup(hours[d], model.HourRange{Open: open, Close: closeTime})
		}
	}
	return hours
}

func appendRangeDedup(ranges []model.HourRange, r model.HourRange) []model.HourRange {
	for _, existing := range ranges {
		if existing.Open == r.Open && existing.Close == r.Close {
			return ranges
		}
	}
	return append(ranges, r)
}

func daySpan(startTok, endTok string) []string {
	start := dayAliases[strings.ToLower(startTok)]
	if start == "" {
		return nil
	}
	if endTok == "" {
		return []string{start}
	}
	end := dayAliases[strings.ToLower(endTok)]
	if end == "" {
		return []string{start}
	}
	si := indexOfDay(start)
	ei := indexOfDay(end)
	if si < 0 || ei < 0 {
		return []string{start}
	}
	var out []string
	for i := si; ; i = (i + 1) % 7 {
		out = append(out, model.Weekdays[i])
		if i == ei {
			break
		}
		if len(out) > 7 {
			break
		}
	}
	return out
}

func indexOfDay(d string) int {
	for i, w := range model.Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// extractFeeLine returns the shortest line containing a currency symbol,
// truncated to 200 chars.
func extractFeeLine(lines []string) string {
	best := ""
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !currencyRe.MatchString(trimmed) {
			continue
		}
		if best == "" || len(trimmed) < len(best) {
			best = trimmed
		}
	}
	if len(best) > 200 {
		best = best[:200]
	}
	return best
}

// bucketPriceRange prefers an explicit "price range: $$" phrase; failing
// that it buckets the mean of the distinct currency-prefixed prices found
// on the page into 1-4 repeats of the first currency symbol seen.
func bucketPriceRange(text string) string {
	if m := priceRangePhaseRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	matches := currencyPriceRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}

	symbol := matches[0][1]
	seen := map[float64]bool{}
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.Replace(m[2], ",", ".", 1), 64)
		if err != nil {
			continue
		}
		seen[v] = true
	}
	if len(seen) == 0 {
		return ""
	}

	var sum float64
	for v := range seen {
		sum += v
	}
	avg := sum / float64(len(seen))

	switch {
	case avg < 10:
		return symbol
	case avg < 25:
		return strings.Repeat(symbol, 2)
	case avg < 45:
		return strings.Repeat(symbol, 3)
	default:
		return strings.Repeat(symbol, 4)
	}
}

// fallbackDescription returns the first line between 60 and 300 characters.
func fallbackDescription(lines []string) string {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) >= 60 && len(trimmed) <= 300 {
			return trimmed
		}
	}
	return ""
}
