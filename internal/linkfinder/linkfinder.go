// Package linkfinder discovers same-site target pages (hours, menu, contact,
// about, fees) from a fetched homepage, so the pipeline knows which pages to
// fetch next.
package linkfinder

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"venuecrawl/internal/model"
)

// TargetOrder is the strict priority order candidates are selected in.
var TargetOrder = []model.PageType{
	model.PageHours, model.PageMenu, model.PageContact, model.PageAbout, model.PageFees,
}

// keywords holds multilingual signal tokens per page type (en/fr/es/it/de/nl/pl/pt).
var keywords = map[model.PageType][]string{
	model.PageHours: {
		"hours", "opening", "open", "times", "today",
		"heures", "horaires",
		"horario", "abierto",
		"orari", "apertura",
		"öffnungszeiten", "geöffnet",
		"uur", "openingstijden",
		"godziny", "otwarte",
		"horário",
	},
	model.PageMenu: {
		"menu", "food", "drink", "drinks", "lunch", "dinner",
		"menú", "carta",
		"carte", "menu du jour",
		"speisekarte",
		"menù", "cucina",
		"menukaart",
	},
	model.PageContact: {
		"contact", "contact-us", "get-in-touch", "enquiries", "inquiries",
		"kontakt", "contatto", "contacto", "contattarci", "kontaktieren",
		"impressum",
	},
	model.PageAbout: {
		"about", "about-us", "our-story", "who-we-are",
		"a-propos", "über", "chi-siamo", "sobre", "sobre-nosotros",
		"om-oss", "over-ons",
	},
	model.PageFees: {
		"fees", "tickets", "pricing", "prices", "admission", "visit",
		"tarifs", "billets",
		"prezzi", "biglietti",
		"precios", "entradas",
		"preise",
	},
}

var negativeKeywords = []string{
	"privacy", "terms", "cookies", "careers", "jobs", "press", "news",
	"login", "signin", "account", "admin", "wp-admin", "cart", "checkout",
	"partners", "media", "newsletter", "blog", "events", "gift-card",
}

var documentExt = regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?|zip|rar|7z)(\?|$)`)

var trackingParamPrefixes = []string{"utm_", "fbclid", "gclid", "mc_eid", "mc_cid"}

// Candidate is a classified same-site link discovered on a page.
type Candidate struct {
	URL        string
	PageType   model.PageType
	Confidence float64
	AnchorText string
	Reason     string
}

// DiscoverTargets parses html (relative to baseURL) and returns up to
// maxTargets same-site candidate links, one per page type, in TargetOrder.
func DiscoverTargets(html string, baseURL string, maxTargets int) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	byType := make(map[model.PageType][]Candidate)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		abs, ok := resolve(baseURL, href)
		if !ok {
			return
		}
		if !isSameSite(baseURL, abs) {
			return
		}

		norm := stripTrackingParams(abs)
		if documentExt.MatchString(norm) {
			return
		}

		u, err := url.Parse(norm)
		if err != nil {
			return
		}

		pageType, score, reason := classify(u.Path, sel.Text())
		if pageType == "" {
			return
		}

		score = minFloat(1.0, score+sectionWeight(sel))

		cand := Candidate{
			URL:        norm,
			PageType:   pageType,
			Confidence: round3(score),
			AnchorText: strings.TrimSpace(sel.Text()),
			Reason:     reason,
		}
		byType[pageType] = append(byType[pageType], cand)
	})

	var results []Candidate
	for _, t := range TargetOrder {
		cands := byType[t]
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].Confidence != cands[j].Confidence {
				return cands[i].Confidence > cands[j].Confidence
			}
			return len(cands[i].URL) < len(cands[j].URL)
		})
		results = append(results, cands[0])
		if len(results) >= maxTargets {
			break
		}
	}

	return results, nil
}

func resolve(baseURL, href string) (string, bool) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

// isSameSite reports whether target shares a registrable domain (eTLD+1)
// with base, restricted to http/https.
func isSameSite(baseURL, targetURL string) bool {
	return registrableDomain(baseURL) == registrableDomain(targetURL)
}

var multiPartTLDs = map[string]bool{
	"co.uk": true, "org.uk": true, "ac.uk": true,
	"com.au": true, "net.au": true, "org.au": true,
	"co.nz": true, "org.nz": true,
	"com.br": true, "com.mx": true, "com.tr": true,
}

// registrableDomain returns a conservative eTLD+1 approximation: the last
// two labels, or the last three when the last two form a known multi-part
// TLD (co.uk, com.au, ...).
func registrableDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	lastTwo := strings.Join(parts[len(parts)-2:], ".")
	if multiPartTLDs[lastTwo] && len(parts) >= 3 {
		return strings.Join(parts[len(parts)-3:], ".")
	}
	return lastTwo
}

func stripTrackingParams(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for key := range q {
		lk := strings.ToLower(key)
		for _, prefix := range trackingParamPrefixes {
			if strings.HasPrefix(lk, prefix) {
				q.Del(key)
				break
			}
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String()
}

func containsAny(text string, toks []string) bool {
	tl := strings.ToLower(text)
	for _, tok := range toks {
		if strings.Contains(tl, tok) {
			return true
		}
	}
	return false
}

// classify scores a link's path and anchor text against each page type's
// keyword table, returning the best match in TargetOrder priority.
func classify(path, anchorText string) (model.PageType, float64, string) {
	urlL := strings.ToLower(path)
	textL := strings.ToLower(anchorText)

	if containsAny(urlL, negativeKeywords) || containsAny(textL, negativeKeywords) {
		return "", 0, ""
	}

	scores := make(map[model.PageType]float64)
	reasons := make(map[model.PageType][]string)

	boundary := "/" + urlL + "/"
	for ptype, toks := range keywords {
		for _, tok := range toks {
			if pathTokenMatch(boundary, tok) {
				scores[ptype] += 0.6
				reasons[ptype] = append(reasons[ptype], "url:"+tok)
			}
		}
	}
	for ptype, toks := range keywords {
		for _, tok := range toks {
			if strings.Contains(textL, tok) {
				scores[ptype] += 0.4
				reasons[ptype] = append(reasons[ptype], "text:"+tok)
			}
		}
	}

	var best model.PageType
	var bestScore float64
	for _, ptype := range TargetOrder {
		if scores[ptype] > bestScore {
			best = ptype
			bestScore = scores[ptype]
		}
	}
	if best == "" || bestScore <= 0 {
		return "", 0, ""
	}

	rs := reasons[best]
	if len(rs) > 4 {
		rs = rs[:4]
	}
	reason := strings.Join(rs, ",")
	if reason == "" {
		reason = "signals"
	}
	return best, minFloat(1.0, bestScore), reason
}

// pathTokenMatch approximates the Python implementation's word-boundary
// regex by requiring non-alphanumeric separators on both sides of tok.
func pathTokenMatch(boundary, tok string) bool {
	idx := strings.Index(boundary, tok)
	for idx != -1 {
		before := boundary[idx-1]
		after := boundary[idx+len(tok)]
		if !isWordChar(before) && !isWordChar(after) {
			return true
		}
		next := strings.Index(boundary[idx+1:], tok)
		if next == -1 {
			break
		}
		idx = idx + 1 + next
	}
	return false
}

func isWordChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// sectionWeight boosts links found inside nav/header/footer containers,
// walking up to three ancestors before giving up, capped at +0.3.
func sectionWeight(sel *goquery.Selection) float64 {
	weight := 0.0
	nodes := sel.ParentsUntil("body")
	nodes.EachWithBreak(func(i int, s *goquery.Selection) bool {
		name := strings.ToLower(goquery.NodeName(s))
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		blob := strings.ToLower(name + " " + class + " " + id)

		if strings.Contains(name, "nav") || strings.Contains(name, "header") {
			weight += 0.15
		}
		if strings.Contains(name, "footer") {
			weight += 0.05
		}
		for _, k := range []string{"menu", "main-nav", "site-nav", "top-bar", "masthead"} {
			if strings.Contains(blob, k) {
				weight += 0.1
				break
			}
		}
		return i < 2 && weight < 0.3 && len(blob) <= 300
	})
	return minFloat(weight, 0.3)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
