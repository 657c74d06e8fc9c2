// Package enrichment merges per-page extracted facts into a single
// per-venue Enrichment record, stamping each field's freshness timestamp
// only when that field actually changed.
package enrichment

import (
	"reflect"
	"sort"
	"time"

	"venuecrawl/internal/model"
)

// PageFacts is everything one fetched page contributed, ready for merging.
type PageFacts struct {
	PageType    model.PageType
	URL         string
	Hours       model.Hours
	Contact     model.ContactDetails
	Description string
	Features    []string
	MenuURL     string
	PriceRange  string
	Fees        string
	Amenities   []string
}

// pagePriority orders dedicated pages ahead of homepage/about text: lower
// value wins first-writer-wins fields.
func pagePriority(pt model.PageType) int {
	switch pt {
	case model.PageHours:
		return 0
	case model.PageMenu:
		return 1
	case model.PageContact:
		return 2
	case model.PageFees:
		return 3
	case model.PageAbout:
		return 4
	case model.PageHomepage:
		return 5
	default:
		return 9
	}
}

// Merge folds pages into existing, returning the new Enrichment with
// per-field *_updated timestamps bumped to now wherever the merged value
// differs from what was there before.
//
// Contact subfields are first-writer-wins, in page-priority order, except
// social links which are unioned and deduplicated across every page. Hours,
// features, and amenities are always union-merged regardless of priority,
// since a venue can legitimately source different days or tags from
// different pages.
func Merge(existing model.Enrichment, pages []PageFacts, now time.Time) model.Enrichment {
	ordered := make([]PageFacts, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return pagePriority(ordered[i].PageType) < pagePriority(ordered[j].PageType)
	})

	merged := existing
	merged.PlaceID = existing.PlaceID

	newHours := mergeHours(existing.Hours, ordered)
	if hoursChanged(existing.Hours, newHours) {
		merged.Hours = newHours
		merged.HoursUpdated = &now
	}

	newContact := mergeContact(existing.Contact, ordered)
	if !contactEqual(existing.Contact, newContact) {
		merged.Contact = newContact
		merged.ContactUpdated = &now
	}

	if desc := firstNonEmptyDescription(ordered); desc != "" && desc != existing.Description {
		merged.Description = desc
		merged.DescriptionUpdated = &now
	}

	newFeatures := unionSortedStrings(existing.Features, collectFeatures(ordered))
	if !stringsEqual(existing.Features, newFeatures) {
		merged.Features = newFeatures
		merged.FeaturesUpdated = &now
	}

	if menu := firstNonEmpty(ordered, func(p PageFacts) string { return p.MenuURL }); menu != "" && menu != existing.MenuURL {
		merged.MenuURL = menu
		merged.MenuUpdated = &now
	}

	if price := firstNonEmpty(ordered, func(p PageFacts) string { return p.PriceRange }); price != "" && price != existing.PriceRange {
		merged.PriceRange = price
		merged.PriceUpdated = &now
	}

	if fees := firstNonEmpty(ordered, func(p PageFacts) string { return p.Fees }); fees != "" && fees != existing.Fees {
		merged.Fees = fees
		merged.FeesUpdated = &now
	}

	newAmenities := unionSortedStrings(existing.Amenities, collectAmenities(ordered))
	if !stringsEqual(existing.Amenities, newAmenities) {
		merged.Amenities = newAmenities
		merged.AmenitiesUpdated = &now
	}

	merged.Sources = unionSortedStrings(existing.Sources, collectSources(ordered))

	return merged
}

func mergeHours(existing model.Hours, pages []PageFacts) model.Hours {
	out := model.Hours{}
	for day, ranges := range existing {
		out[day] = append(out[day], ranges...)
	}
	for _, p := range pages {
		for day, ranges := range p.Hours {
			for _, r := range ranges {
				out[day] = appendRangeDedup(out[day], r)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	for day := range out {
		sort.Slice(out[day], func(i, j int) bool {
			return out[day][i].Open < out[day][j].Open
		})
	}
	return out
}

func appendRangeDedup(ranges []model.HourRange, r model.HourRange) []model.HourRange {
	for _, existing := range ranges {
		if existing.Open == r.Open && existing.Close == r.Close {
			return ranges
		}
	}
	return append(ranges, r)
}

func hoursChanged(a, b model.Hours) bool {
	return !reflect.DeepEqual(a, b)
}

func mergeContact(existing model.ContactDetails, pages []PageFacts) model.ContactDetails {
	out := existing
	for _, p := range pages {
		if out.Phone == "" && p.Contact.Phone != "" {
			out.Phone = p.Contact.Phone
		}
		if out.Email == "" && p.Contact.Email != "" {
			out.Email = p.Contact.Email
		}
		if out.Website == "" && p.Contact.Website != "" {
			out.Website = p.Contact.Website
		}
	}
	var social []string
	social = append(social, existing.Social...)
	for _, p := range pages {
		social = append(social, p.Contact.Social...)
	}
	out.Social = unionSortedStrings(nil, social)
	return out
}

func contactEqual(a, b model.ContactDetails) bool {
	return a.Phone == b.Phone && a.Email == b.Email && a.Website == b.Website && stringsEqual(a.Social, b.Social)
}

func firstNonEmptyDescription(pages []PageFacts) string {
	for _, p := range pages {
		if p.Description != "" {
			return p.Description
		}
	}
	return ""
}

func firstNonEmpty(pages []PageFacts, field func(PageFacts) string) string {
	for _, p := range pages {
		if v := field(p); v != "" {
			return v
		}
	}
	return ""
}

func collectFeatures(pages []PageFacts) []string {
	var out []string
	for _, p := range pages {
		out = append(out, p.Features...)
	}
	return out
}

func collectAmenities(pages []PageFacts) []string {
	var out []string
	for _, p := range pages {
		out = append(out, p.Amenities...)
	}
	return out
}

func collectSources(pages []PageFacts) []string {
	var out []string
	for _, p := range pages {
		if p.URL != "" {
			out = append(out, p.URL)
		}
	}
	return out
}

func unionSortedStrings(base []string, add []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range base {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range add {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
