package extract

import (
	"testing"

	"venuecrawl/internal/model"
)

func TestExtractHeuristicsFindsEmailAndPhone(t *testing.T) {
	text := "Call us on +1 415 555 0199 or email info@example.com for bookings."
	facts := ExtractHeuristics(text, model.PageContact)
	if facts.Email != "info@example.com" {
		t.Fatalf("expected email extracted, got %q", facts.Email)
	}
	if facts.Phone == "" {
		t.Fatal("expected phone extracted")
	}
}

func TestExtractHeuristicsParsesHoursOnGatedPageTypes(t *testing.T) {
	text := "Opening hours\nMonday - Friday 9:00-17:00\nClosed weekends."
	facts := ExtractHeuristics(text, model.PageHours)
	if ranges, ok := facts.Hours["mon"]; !ok || ranges[0].Open != "09:00" || ranges[0].Close != "17:00" {
		t.Fatalf("expected monday hours 09:00-17:00, got %+v", facts.Hours["mon"])
	}
	if _, ok := facts.Hours["fri"]; !ok {
		t.Fatal("expected friday covered by the mon-fri span")
	}
	if _, ok := facts.Hours["sat"]; ok {
		t.Fatal("saturday should not be included in a mon-fri span")
	}
}

func TestExtractHeuristicsSkipsHoursOnUngatedPageTypes(t *testing.T) {
	text := "Monday - Friday 9:00-17:00"
	facts := ExtractHeuristics(text, model.PageMenu)
	if len(facts.Hours) != 0 {
		t.Fatalf("expected no hours extracted on a menu page, got %+v", facts.Hours)
	}
}

func TestExtractHeuristicsFeesLineGatedAndTruncated(t *testing.T) {
	text := "Welcome to our venue.\nAdult ticket: €12.50\nGroup discounts available on request for parties of ten or more visitors throughout the year with advance booking required at least two weeks ahead."
	facts := ExtractHeuristics(text, model.PageFees)
	if facts.Fees == "" {
		t.Fatal("expected a fee line to be extracted")
	}
	if len(facts.Fees) > 200 {
		t.Fatalf("expected fee line truncated to 200 chars, got %d", len(facts.Fees))
	}
}

func TestExtractHeuristicsPriceRangePrefersExplicitPhrase(t *testing.T) {
	text := "Starters from $5. Price range: $$$. Mains $12, $18, $25."
	facts := ExtractHeuristics(text, model.PageMenu)
	if facts.PriceRange != "$$$" {
		t.Fatalf("expected explicit price range phrase to win, got %q", facts.PriceRange)
	}
}

func TestExtractHeuristicsPriceRangeBucketsMeanOfMenuPrices(t *testing.T) {
	text := "Starters $8\nMains $12, $18, $25\nDesserts $9"
	facts := ExtractHeuristics(text, model.PageMenu)
	// unique prices: 8, 12, 18, 25, 9 -> mean = 14.4 -> falls in the [10,25) band -> 2 symbols
	if facts.PriceRange != "$$" {
		t.Fatalf("expected $$ for a mean of 14.4, got %q", facts.PriceRange)
	}
}

func TestExtractHeuristicsPriceRangeEmptyWithoutPrices(t *testing.T) {
	text := "Our mains are seasonal and vary throughout the year."
	facts := ExtractHeuristics(text, model.PageMenu)
	if facts.PriceRange != "" {
		t.Fatalf("expected no price range without currency-prefixed prices, got %q", facts.PriceRange)
	}
}

func TestFallbackDescriptionPicksFirstMidLengthLine(t *testing.T) {
	lines := []string{
		"Home",
		"A short line",
		"This is a reasonably sized description line that should qualify for the summary field nicely.",
		"Too long: " + string(make([]byte, 400)),
	}
	desc := fallbackDescription(lines)
	if len(desc) < 60 || len(desc) > 300 {
		t.Fatalf("expected fallback description between 60 and 300 chars, got %d", len(desc))
	}
}
