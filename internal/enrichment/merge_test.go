package enrichment

import (
	"testing"
	"time"

	"venuecrawl/internal/model"
)

func TestMergeHoursUnionsHomepageAndHoursPage(t *testing.T) {
	now := time.Now()
	pages := []PageFacts{
		{
			PageType: model.PageHomepage,
			URL:      "https://example.com/",
			Hours:    model.Hours{"mon": {{Open: "08:00", Close: "16:00"}}},
		},
		{
			PageType: model.PageHours,
			URL:      "https://example.com/hours",
			Hours:    model.Hours{"mon": {{Open: "09:00", Close: "17:00"}}},
		},
	}
	merged := Merge(model.Enrichment{PlaceID: "p1"}, pages, now)

	ranges := merged.Hours["mon"]
	if len(ranges) != 2 {
		t.Fatalf("expected both ranges unioned (hours page doesn't override, it adds), got %+v", ranges)
	}
	if merged.HoursUpdated == nil {
		t.Fatal("expected hours_updated to be stamped")
	}
}

func TestMergeContactIsFirstWriterWinsExceptSocial(t *testing.T) {
	now := time.Now()
	pages := []PageFacts{
		{
			PageType: model.PageContact,
			URL:      "https://example.com/contact",
			Contact:  model.ContactDetails{Phone: "+1 555 0100", Social: []string{"https://facebook.com/a"}},
		},
		{
			PageType: model.PageAbout,
			URL:      "https://example.com/about",
			Contact:  model.ContactDetails{Phone: "+1 555 9999", Social: []string{"https://instagram.com/a"}},
		},
	}
	merged := Merge(model.Enrichment{PlaceID: "p1"}, pages, now)

	if merged.Contact.Phone != "+1 555 0100" {
		t.Fatalf("expected contact page's phone (higher priority) to win, got %q", merged.Contact.Phone)
	}
	if len(merged.Contact.Social) != 2 {
		t.Fatalf("expected social links unioned across pages, got %+v", merged.Contact.Social)
	}
}

func TestMergeDoesNotStampTimestampWhenFieldUnchanged(t *testing.T) {
	now := time.Now()
	existing := model.Enrichment{
		PlaceID:    "p1",
		MenuURL:    "https://example.com/menu",
		MenuUpdated: nil,
	}
	pages := []PageFacts{
		{PageType: model.PageMenu, URL: "https://example.com/menu", MenuURL: "https://example.com/menu"},
	}
	merged := Merge(existing, pages, now)
	if merged.MenuUpdated != nil {
		t.Fatal("expected menu_updated to stay nil since the value didn't change")
	}
}

func TestMergeStampsTimestampWhenFieldChanges(t *testing.T) {
	now := time.Now()
	existing := model.Enrichment{PlaceID: "p1", MenuURL: "https://example.com/old-menu"}
	pages := []PageFacts{
		{PageType: model.PageMenu, URL: "https://example.com/menu", MenuURL: "https://example.com/new-menu"},
	}
	merged := Merge(existing, pages, now)
	if merged.MenuURL != "https://example.com/new-menu" {
		t.Fatalf("expected menu url updated, got %q", merged.MenuURL)
	}
	if merged.MenuUpdated == nil || !merged.MenuUpdated.Equal(now) {
		t.Fatal("expected menu_updated stamped to now")
	}
}

func TestMergeUnionsFeaturesAndAmenitiesSorted(t *testing.T) {
	now := time.Now()
	existing := model.Enrichment{PlaceID: "p1", Features: []string{"outdoor-seating"}}
	pages := []PageFacts{
		{PageType: model.PageAbout, URL: "https://example.com/about", Features: []string{"wifi"}, Amenities: []string{"parking"}},
		{PageType: model.PageHomepage, URL: "https://example.com/", Amenities: []string{"parking", "wheelchair-access"}},
	}
	merged := Merge(existing, pages, now)

	if len(merged.Features) != 2 {
		t.Fatalf("expected 2 unique features, got %+v", merged.Features)
	}
	if len(merged.Amenities) != 2 {
		t.Fatalf("expected 2 unique amenities (deduped), got %+v", merged.Amenities)
	}
}

func TestMergeSourcesAccumulatesPageURLs(t *testing.T) {
	now := time.Now()
	pages := []PageFacts{
		{PageType: model.PageHours, URL: "https://example.com/hours"},
		{PageType: model.PageMenu, URL: "https://example.com/menu"},
	}
	merged := Merge(model.Enrichment{PlaceID: "p1"}, pages, now)
	if len(merged.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %+v", merged.Sources)
	}
}
