// Package freshness classifies a venue's enrichment fields into missing,
// stale, or fresh sets. Evaluate is a pure function with no I/O, shared by
// the search layer's trigger-on-read check and the background scheduler's
// selection query.
package freshness

import (
	"strings"
	"time"

	"venuecrawl/internal/model"
)

// CategoryGroup buckets a venue by its category label, so the required
// field set can vary by venue kind.
type CategoryGroup string

const (
	GroupRestaurant    CategoryGroup = "restaurant"
	GroupAccommodation CategoryGroup = "accommodation"
	GroupAttraction    CategoryGroup = "attraction"
	GroupGeneral       CategoryGroup = "general"
)

var baseFields = []string{"address", "contact_details", "opening_hours", "description"}

var groupFields = map[CategoryGroup][]string{
	GroupRestaurant:    {"menu", "price_range"},
	GroupAccommodation: {"price_range", "amenities"},
	GroupAttraction:    {"features", "fees"},
	GroupGeneral:       nil,
}

// Windows holds the staleness window for every field name the evaluator
// knows about, in days; overridable from config (see FRESH_* env vars).
type Windows struct {
	OpeningHoursDays        int
	MenuContactPriceDays    int
	DescriptionFeaturesDays int
}

func (w Windows) windowFor(field string) time.Duration {
	switch field {
	case "opening_hours":
		return time.Duration(w.OpeningHoursDays) * 24 * time.Hour
	case "menu", "contact_details", "price_range", "fees":
		return time.Duration(w.MenuContactPriceDays) * 24 * time.Hour
	default:
		return time.Duration(w.DescriptionFeaturesDays) * 24 * time.Hour
	}
}

var restaurantKeywords = []string{"restaurant", "cafe", "café", "bistro", "diner", "bar", "pub", "bakery", "brewery", "eatery", "coffee"}
var accommodationKeywords = []string{"hotel", "hostel", "motel", "inn", "bed and breakfast", "bnb", "apartment", "resort", "guesthouse", "lodge"}
var attractionKeywords = []string{"museum", "gallery", "park", "zoo", "aquarium", "landmark", "monument", "tour", "attraction", "theater", "theatre", "castle", "garden"}

// Classify buckets a venue by keyword match on its category label.
func Classify(categoryName string) CategoryGroup {
	c := strings.ToLower(categoryName)
	if containsAny(c, restaurantKeywords) {
		return GroupRestaurant
	}
	if containsAny(c, accommodationKeywords) {
		return GroupAccommodation
	}
	if containsAny(c, attractionKeywords) {
		return GroupAttraction
	}
	return GroupGeneral
}

func containsAny(s string, toks []string) bool {
	for _, t := range toks {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// Result is the output of Evaluate: the required field set for the venue's
// category group, partitioned into missing, stale, and fresh.
type Result struct {
	CategoryGroup CategoryGroup
	Required      []string
	Missing       []string
	Stale         []string
	Fresh         []string
}

// Evaluate classifies venue into a category group, then partitions its
// required fields into missing/stale/fresh relative to now.
func Evaluate(venue model.Venue, enrichment model.Enrichment, now time.Time, windows Windows) Result {
	group := Classify(venue.CategoryName)
	required := append(append([]string{}, baseFields...), groupFields[group]...)

	result := Result{CategoryGroup: group, Required: required}
	for _, field := range required {
		empty, lastUpdated := fieldState(field, venue, enrichment)
		switch {
		case empty:
			result.Missing = append(result.Missing, field)
		case lastUpdated == nil:
			// Address has no timestamp; present means fresh.
			result.Fresh = append(result.Fresh, field)
		case now.Sub(*lastUpdated) > windows.windowFor(field):
			result.Stale = append(result.Stale, field)
		default:
			result.Fresh = append(result.Fresh, field)
		}
	}
	return result
}

// fieldState reports whether field is empty, and its last-updated time (nil
// when the field has no freshness timestamp of its own, e.g. address).
func fieldState(field string, venue model.Venue, e model.Enrichment) (empty bool, lastUpdated *time.Time) {
	switch field {
	case "address":
		return venue.Latitude == 0 && venue.Longitude == 0, nil
	case "contact_details":
		empty := e.Contact.Phone == "" && e.Contact.Email == "" && e.Contact.Website == "" && len(e.Contact.Social) == 0
		return empty, e.ContactUpdated
	case "opening_hours":
		return len(e.Hours) == 0, e.HoursUpdated
	case "description":
		return e.Description == "", e.DescriptionUpdated
	case "menu":
		return e.MenuURL == "", e.MenuUpdated
	case "price_range":
		return e.PriceRange == "", e.PriceUpdated
	case "amenities":
		return len(e.Amenities) == 0, e.AmenitiesUpdated
	case "features":
		return len(e.Features) == 0, e.FeaturesUpdated
	case "fees":
		return e.Fees == "", e.FeesUpdated
	default:
		return true, nil
	}
}
