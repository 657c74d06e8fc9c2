// Package downloader fetches a single URL under strict per-phase time and
// size budgets, gates on MIME type and robots.txt, and reduces the raw
// response to a content hash plus cleaned, readable text.
package downloader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"venuecrawl/internal/model"
)

// retryableStatuses are HTTP response codes the downloader retries on,
// mirroring the backoff policy of a transient-error-tolerant fetcher.
var retryableStatuses = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// Page is the result of one fetch attempt.
type Page struct {
	URL           string
	FinalURL      string
	HTTPStatus    int
	ContentType   string
	ContentHash   string
	RawHTML       []byte
	CleanedText   string
	FetchedAt     time.Time
	DurationMs    int
	FirstByteMs   int
	SizeBytes     int
	RedirectChain []string
	Reason        model.ReasonCode
}

// PolitenessLimiter gates fetches to the same host across an entire worker
// fleet. internal/politeness.Limiter satisfies this; kept as a narrow
// interface here so the downloader doesn't depend on Redis directly.
type PolitenessLimiter interface {
	Wait(ctx context.Context, host string) error
}

// Downloader performs budget-bound, robots-compliant HTML fetches.
//
// StoreRawHTML only controls whether raw_html is persisted downstream (see
// internal/worker); Fetch always returns the raw body in Page.RawHTML
// since the pipeline needs it transiently to discover same-site links off
// the homepage regardless of the persistence setting.
type Downloader struct {
	UserAgent      string
	ConnectTimeout time.Duration
	TTFBTimeout    time.Duration
	ReadTimeout    time.Duration
	SizeLimitBytes int
	StoreRawHTML   bool
	MaxRetries     int

	// Politeness, when set, is consulted before every fetch so the
	// cross-process minimum gap is enforced on top of the per-host
	// concurrency cap already applied at job-claim time.
	Politeness PolitenessLimiter

	client *http.Client
	robots *RobotsCache
}

// New builds a Downloader from the config-sourced budgets.
func New(userAgent string, connectTimeout, ttfbTimeout, readTimeout time.Duration, sizeLimitBytes int, storeRawHTML bool, robotsTTL time.Duration) *Downloader {
	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConnsPerHost: 16,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			if chain, ok := req.Context().Value(redirectChainKey{}).(*[]string); ok && len(via) > 0 {
				*chain = append(*chain, via[len(via)-1].URL.String())
			}
			return nil
		},
	}

	return &Downloader{
		UserAgent:      userAgent,
		ConnectTimeout: connectTimeout,
		TTFBTimeout:    ttfbTimeout,
		ReadTimeout:    readTimeout,
		SizeLimitBytes: sizeLimitBytes,
		StoreRawHTML:   storeRawHTML,
		MaxRetries:     2,
		client:         client,
		robots:         NewRobotsCache(userAgent, robotsTTL, client),
	}
}

func isHTML(contentType string) bool {
	ct := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	ct = strings.ToLower(ct)
	return ct == "text/html" || ct == "application/xhtml+xml"
}

// Fetch retrieves rawURL, respecting the absolute deadline carried by ctx.
// When the remaining time under that deadline is tighter than the
// downloader's own per-phase budgets, each phase is shrunk to an even
// three-way split of what's left, so a late fetch degrades gracefully
// instead of starving a sibling fetch of budget it never had.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) Page {
	start := time.Now()

	if deadline, ok := ctx.Deadline(); ok && time.Now().After(deadline) {
		return d.timeBudgetPage(rawURL, start)
	}

	if !d.robots.Allowed(ctx, rawURL) {
		return Page{URL: rawURL, FinalURL: rawURL, FetchedAt: start, Reason: model.ReasonRobotsDisallowed}
	}

	if d.Politeness != nil {
		if host := hostOf(rawURL); host != "" {
			if err := d.Politeness.Wait(ctx, host); err != nil {
				return d.timeBudgetPage(rawURL, start)
			}
		}
	}

	connectTimeout, ttfbTimeout, readTimeout := d.ConnectTimeout, d.TTFBTimeout, d.ReadTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 50*time.Millisecond {
			return d.timeBudgetPage(rawURL, start)
		}
		slice := remaining / 3
		if slice < connectTimeout {
			connectTimeout = slice
		}
		if slice < ttfbTimeout {
			ttfbTimeout = slice
		}
		if slice < readTimeout {
			readTimeout = slice
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, connectTimeout+ttfbTimeout+readTimeout)
	defer cancel()

	var chain []string
	reqCtx = context.WithValue(reqCtx, redirectChainKey{}, &chain)

	resp, reason := d.doWithRetry(reqCtx, rawURL, connectTimeout)
	if reason != model.ReasonOK {
		return Page{URL: rawURL, FinalURL: rawURL, FetchedAt: start, DurationMs: ms(time.Since(start)), Reason: reason}
	}
	defer resp.Body.Close()

	redirectChain := redirectChainFrom(reqCtx)
	finalURL := resp.Request.URL.String()
	contentType := resp.Header.Get("Content-Type")

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return Page{
			URL: rawURL, FinalURL: finalURL, HTTPStatus: resp.StatusCode, ContentType: contentType,
			FetchedAt: start, DurationMs: ms(time.Since(start)), RedirectChain: redirectChain,
			Reason: model.ReasonNon200Status,
		}
	}

	if !isHTML(contentType) {
		drain(resp.Body)
		return Page{
			URL: rawURL, FinalURL: finalURL, HTTPStatus: resp.StatusCode, ContentType: contentType,
			FetchedAt: start, DurationMs: ms(time.Since(start)), RedirectChain: redirectChain,
			Reason: model.ReasonInvalidMIME,
		}
	}

	body, firstByteMs, readReason := d.readBody(resp.Body, readTimeout, ttfbTimeout, ctx)
	page := Page{
		URL: rawURL, FinalURL: finalURL, HTTPStatus: resp.StatusCode, ContentType: contentType,
		FetchedAt: start, FirstByteMs: firstByteMs, SizeBytes: len(body),
		RedirectChain: redirectChain, DurationMs: ms(time.Since(start)),
	}

	page.RawHTML = body
	if readReason != model.ReasonOK {
		page.Reason = readReason
		if len(body) > 0 {
			page.ContentHash = sha256Hex(body)
		}
		return page
	}

	page.Reason = model.ReasonOK
	page.ContentHash = sha256Hex(body)
	page.CleanedText = cleanedText(finalURL, body)
	return page
}

func (d *Downloader) timeBudgetPage(rawURL string, start time.Time) Page {
	return Page{URL: rawURL, FinalURL: rawURL, FetchedAt: start, Reason: model.ReasonTimeBudgetExceeded}
}

// doWithRetry performs the GET with bounded exponential jittered backoff on
// the retryable status set, charging every retry against reqCtx so retries
// can never exceed the caller's deadline.
func (d *Downloader) doWithRetry(reqCtx context.Context, rawURL string, connectTimeout time.Duration) (*http.Response, model.ReasonCode) {
	var lastReason model.ReasonCode

	for attempt := 0; attempt <= d.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
			backoff += time.Duration(rand.Int63n(int64(100 * time.Millisecond)))
			select {
			case <-time.After(backoff):
			case <-reqCtx.Done():
				return nil, model.ReasonTimeBudgetExceeded
			}
		}

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, model.ReasonNetworkError
		}
		req.Header.Set("User-Agent", d.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

		resp, err := d.client.Do(req)
		if err == nil {
			if retryableStatuses[resp.StatusCode] && attempt < d.MaxRetries {
				drain(resp.Body)
				resp.Body.Close()
				continue
			}
			return resp, model.ReasonOK
		}

		lastReason = classifyNetErr(err)
		if lastReason == model.ReasonTimeBudgetExceeded {
			return nil, lastReason
		}
	}

	return nil, lastReason
}

func classifyNetErr(err error) model.ReasonCode {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ReasonNetworkTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.ReasonDNSFailure
	}

	msg := err.Error()
	if strings.Contains(msg, "x509") || strings.Contains(msg, "tls:") {
		return model.ReasonTLSError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ReasonTimeBudgetExceeded
	}
	return model.ReasonNetworkError
}

// readBody streams the response body up to SizeLimitBytes, tracking the
// time to first byte and enforcing the read and global deadlines.
func (d *Downloader) readBody(r io.Reader, readTimeout, ttfbTimeout time.Duration, ctx context.Context) ([]byte, int, model.ReasonCode) {
	start := time.Now()
	buf := make([]byte, 32*1024)
	var body bytes.Buffer
	firstByteMs := 0

	for {
		if deadline, ok := ctx.Deadline(); ok && time.Now().After(deadline) {
			return body.Bytes(), firstByteMs, model.ReasonTimeBudgetExceeded
		}
		if time.Since(start) > readTimeout {
			return body.Bytes(), firstByteMs, model.ReasonNetworkTimeout
		}

		n, err := r.Read(buf)
		if n > 0 {
			if firstByteMs == 0 {
				firstByteMs = ms(time.Since(start))
			}
			body.Write(buf[:n])
			if body.Len() > d.SizeLimitBytes {
				return body.Bytes()[:d.SizeLimitBytes], firstByteMs, model.ReasonSizeLimitExceeded
			}
		}
		if err == io.EOF {
			return body.Bytes(), firstByteMs, model.ReasonOK
		}
		if err != nil {
			return body.Bytes(), firstByteMs, model.ReasonNetworkError
		}
	}
}

func drain(r io.Reader) {
	_, _ = io.CopyN(io.Discard, r, 4096)
}

func ms(d time.Duration) int {
	return int(d.Milliseconds())
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// redirectChainKey threads the per-request list of intermediate URLs
// visited through http.Client.CheckRedirect, since *http.Response only
// exposes the final request.
type redirectChainKey struct{}

func redirectChainFrom(ctx context.Context) []string {
	if v, ok := ctx.Value(redirectChainKey{}).(*[]string); ok {
		return *v
	}
	return nil
}

// hostOf extracts the lowercase hostname from rawURL, empty on parse failure.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// cleanedText produces a readability-lite rendering of the page: Markdown
// via html-to-markdown, falling back to goquery's visible body text if the
// converter fails on malformed HTML.
func cleanedText(pageURL string, raw []byte) string {
	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Hostname()
	}

	converter := htmlmd.NewConverter(host, true, nil)
	if md, err := converter.ConvertString(string(raw)); err == nil {
		return strings.TrimSpace(md)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("body").Text())
}
