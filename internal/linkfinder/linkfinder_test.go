package linkfinder

import (
	"testing"

	"venuecrawl/internal/model"
)

const samplePage = `
<html><body>
<nav>
  <a href="/hours">Opening Hours</a>
  <a href="/menu">Our Menu</a>
  <a href="/contact-us">Contact</a>
  <a href="/about-us">About Us</a>
  <a href="/tickets">Tickets &amp; Fees</a>
  <a href="/privacy">Privacy Policy</a>
  <a href="https://other-domain.example/menu">External menu</a>
  <a href="/brochure.pdf">Download brochure</a>
  <a href="/hours?utm_source=newsletter&ref=1">Hours (tracked)</a>
</nav>
</body></html>
`

func TestDiscoverTargetsPicksOnePerTypeInOrder(t *testing.T) {
	cands, err := DiscoverTargets(samplePage, "https://example.com/", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 3 {
		t.Fatalf("expected 3 candidates (capped), got %d: %+v", len(cands), cands)
	}
	if cands[0].PageType != model.PageHours {
		t.Fatalf("expected hours first, got %s", cands[0].PageType)
	}
	if cands[1].PageType != model.PageMenu {
		t.Fatalf("expected menu second, got %s", cands[1].PageType)
	}
	if cands[2].PageType != model.PageContact {
		t.Fatalf("expected contact third, got %s", cands[2].PageType)
	}
}

func TestDiscoverTargetsExcludesOffSiteAndDocumentLinks(t *testing.T) {
	cands, err := DiscoverTargets(samplePage, "https://example.com/", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range cands {
		if c.URL == "https://other-domain.example/menu" {
			t.Fatal("off-site link should have been excluded")
		}
		if c.PageType == model.PageFees && c.URL != "" {
			// fees link should never be the pdf brochure
			if c.URL == "https://example.com/brochure.pdf" {
				t.Fatal("document link should have been excluded")
			}
		}
	}
}

func TestDiscoverTargetsStripsTrackingParams(t *testing.T) {
	cands, err := DiscoverTargets(samplePage, "https://example.com/", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) == 0 {
		t.Fatal("expected at least one candidate")
	}
	if cands[0].PageType != model.PageHours {
		t.Fatalf("expected hours as top candidate, got %s", cands[0].PageType)
	}
	for _, c := range cands {
		if c.PageType == model.PageHours {
			if contains(c.URL, "utm_source") || contains(c.URL, "ref=") {
				t.Fatalf("tracking params should be stripped, got %s", c.URL)
			}
		}
	}
}

func TestDiscoverTargetsExcludesNegativeKeywordLinks(t *testing.T) {
	cands, err := DiscoverTargets(samplePage, "https://example.com/", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range cands {
		if contains(c.URL, "/privacy") {
			t.Fatal("privacy link should never be classified as a target")
		}
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
