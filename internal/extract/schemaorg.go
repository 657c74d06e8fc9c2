// Package extract lifts venue facts out of a fetched page, either from
// embedded schema.org JSON-LD or by regex heuristics over the cleaned text.
package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"venuecrawl/internal/model"
)

var dayAliases = map[string]string{
	"monday": "mon", "mon": "mon", "mo": "mon",
	"tuesday": "tue", "tue": "tue", "tu": "tue",
	"wednesday": "wed", "wed": "wed", "we": "wed",
	"thursday": "thu", "thu": "thu", "th": "thu",
	"friday": "fri", "fri": "fri", "fr": "fri",
	"saturday": "sat", "sat": "sat", "sa": "sat",
	"sunday": "sun", "sun": "sun", "su": "sun",
}

var timeRe = regexp.MustCompile(`^([01]?\d|2[0-3]):?[0-5]\d$`)

// normalizeHHMM accepts H:MM, HH:MM, HHMM, H.MM, and "H h MM" and returns a
// zero-padded HH:MM, or "" if the input isn't a recognizable time.
func normalizeHHMM(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ".", ":")
	s = strings.ReplaceAll(s, " h ", ":")
	s = strings.ReplaceAll(s, "h", ":")
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ":") && (len(s) == 3 || len(s) == 4) {
		s = s[:len(s)-2] + ":" + s[len(s)-2:]
	}
	if !timeRe.MatchString(s) {
		return ""
	}
	parts := strings.SplitN(s, ":", 2)
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return ""
	}
	return padTime(hh, mm)
}

func padTime(hh, mm int) string {
	out := ""
	if hh < 10 {
		out += "0"
	}
	out += strconv.Itoa(hh) + ":"
	if mm < 10 {
		out += "0"
	}
	out += strconv.Itoa(mm)
	return out
}

func normalizeDay(raw any) string {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case map[string]any:
		if t, ok := v["@type"].(string); ok && strings.EqualFold(t, "dayofweek") {
			if name, ok := v["name"].(string); ok {
				s = name
			}
		}
	default:
		return ""
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "http://schema.org/")
	s = strings.TrimPrefix(s, "https://schema.org/")
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		s = s[idx+1:]
	}
	return dayAliases[s]
}

func asList(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

func asStringList(v any) []string {
	var out []string
	for _, item := range asList(v) {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SchemaOrgFacts is the subset of ContactDetails/Enrichment fields that can
// be lifted from a JSON-LD block.
type SchemaOrgFacts struct {
	Hours          model.Hours
	Contact        model.ContactDetails
	HasContact     bool
	Description    string
	PriceRange     string
	MenuURL        string
	Amenities      []string
	Fees           string
}

// ParseSchemaOrg extracts and merges every application/ld+json block in html.
func ParseSchemaOrg(html string) (SchemaOrgFacts, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return SchemaOrgFacts{}, err
	}

	var facts SchemaOrgFacts
	var social []string
	hours := model.Hours{}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := sel.Text()
		if strings.TrimSpace(raw) == "" {
			return
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return
		}
		for _, item := range asList(decoded) {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			mergeSchemaBlock(block, &facts, hours, &social)
		}
	})

	trimEmptyDays(hours)
	if len(hours) > 0 {
		facts.Hours = hours
	}
	if len(social) > 0 {
		facts.Contact.Social = dedupeStrings(social)
		facts.HasContact = true
	}
	return facts, nil
}

func mergeSchemaBlock(block map[string]any, facts *SchemaOrgFacts, hours model.Hours, social *[]string) {
	if tel, ok := block["telephone"].(string); ok && tel != "" {
		facts.Contact.Phone = strings.TrimSpace(tel)
		facts.HasContact = true
	}
	if email, ok := block["email"].(string); ok && email != "" {
		facts.Contact.Email = strings.TrimSpace(email)
		facts.HasContact = true
	}
	if website, ok := block["url"].(string); ok && website != "" {
		facts.Contact.Website = strings.TrimSpace(website)
		facts.HasContact = true
	}
	for _, s := range asStringList(block["sameAs"]) {
		*social = append(*social, strings.TrimSpace(s))
	}

	if desc, ok := block["description"].(string); ok && len(strings.TrimSpace(desc)) >= 30 {
		facts.Description = strings.TrimSpace(desc)
	}
	if pr, ok := block["priceRange"].(string); ok && pr != "" {
		facts.PriceRange = strings.TrimSpace(pr)
	}

	switch menu := block["menu"].(type) {
	case string:
		if menu != "" {
			facts.MenuURL = strings.TrimSpace(menu)
		}
	case map[string]any:
		if u, ok := menu["url"].(string); ok && u != "" {
			facts.MenuURL = strings.TrimSpace(u)
		}
	}
	if facts.MenuURL == "" {
		switch menu := block["hasMenu"].(type) {
		case string:
			facts.MenuURL = strings.TrimSpace(menu)
		case map[string]any:
			if u, ok := menu["url"].(string); ok {
				facts.MenuURL = strings.TrimSpace(u)
			}
		}
	}

	for _, spec := range asList(block["openingHoursSpecification"]) {
		specMap, ok := spec.(map[string]any)
		if !ok {
			continue
		}
		opens := normalizeHHMM(asString(specMap["opens"]))
		closes := normalizeHHMM(asString(specMap["closes"]))
		if opens == "" || closes == "" {
			continue
		}
		for _, d := range asList(specMap["dayOfWeek"]) {
			day := normalizeDay(d)
			if day == "" {
				continue
			}
			hours[day] = append(hours[day], model.HourRange{Open: opens, Close: closes})
		}
	}

	var amenities []string
	for _, f := range asList(block["amenityFeature"]) {
		fm, ok := f.(map[string]any)
		if !ok {
			continue
		}
		name := firstNonEmpty(asString(fm["name"]), asString(fm["propertyID"]), asString(fm["description"]))
		if name != "" {
			amenities = append(amenities, name)
		}
	}
	if len(amenities) > 0 {
		facts.Amenities = sortedUnique(append(facts.Amenities, amenities...))
	}

	offers := block["offers"]
	if offers == nil {
		offers = block["aggregateOffer"]
	}
	if fee := parseOffers(offers); fee != "" {
		facts.Fees = fee
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseOffers(offers any) string {
	var parts []string
	for _, o := range asList(offers) {
		om, ok := o.(map[string]any)
		if !ok {
			continue
		}
		price := om["price"]
		if price == nil {
			price = om["lowPrice"]
		}
		cur, _ := om["priceCurrency"].(string)
		category := firstNonEmpty(asString(om["category"]), asString(om["name"]))
		if price != nil && cur != "" {
			frag := ""
			if category != "" {
				frag = category + ": "
			}
			frag += cur + " " + formatAny(price)
			parts = append(parts, strings.TrimSpace(frag))
		}
	}
	return strings.Join(parts, "; ")
}

func formatAny(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func trimEmptyDays(h model.Hours) {
	for d, ranges := range h {
		if len(ranges) == 0 {
			delete(h, d)
		}
	}
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func sortedUnique(in []string) []string {
	out := dedupeStrings(in)
	sort.Strings(out)
	return out
}
