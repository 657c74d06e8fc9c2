// Package metrics holds simple Prometheus-style in-memory counters for the
// HTTP API and the crawl pipeline. It is intentionally minimal: no external
// metrics sink is in scope, only Go accessors plus a text Export for
// debugging.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	jobsTotal       = make(map[jobKey]int64)
	fetchReasons    = make(map[string]int64)
	queueDepthGauge = make(map[string]int64)
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type jobKey struct {
	Mode   string
	Result string
}

// RecordRequest increments the request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	requestsTotal[reqKey{Method: method, Path: path, Status: status}]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordJobOutcome increments the job completion counter for a given mode
// (realtime/background) and terminal result (success/fail).
func RecordJobOutcome(mode, result string) {
	mu.Lock()
	defer mu.Unlock()
	jobsTotal[jobKey{Mode: mode, Result: result}]++
}

// RecordFetchReason increments the downloader reason-code counter.
func RecordFetchReason(reason string) {
	if reason == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	fetchReasons[reason]++
}

// SetQueueDepth records the latest observed queue depth for a job state.
func SetQueueDepth(state string, depth int64) {
	mu.Lock()
	defer mu.Unlock()
	queueDepthGauge[state] = depth
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP venuecrawl_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE venuecrawl_http_requests_total counter\n")
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})
	for _, k := range reqKeys {
		fmt.Fprintf(&b, "venuecrawl_http_requests_total{method=%q,path=%q,status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# HELP venuecrawl_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE venuecrawl_http_request_duration_ms_sum counter\n")
	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})
	for _, k := range latKeys {
		fmt.Fprintf(&b, "venuecrawl_http_request_duration_ms_sum{method=%q,path=%q} %d\n", k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "venuecrawl_http_request_duration_ms_count{method=%q,path=%q} %d\n", k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP venuecrawl_jobs_total Total crawl jobs by mode and terminal result\n")
	b.WriteString("# TYPE venuecrawl_jobs_total counter\n")
	var jobKeys []jobKey
	for k := range jobsTotal {
		jobKeys = append(jobKeys, k)
	}
	sort.Slice(jobKeys, func(i, j int) bool {
		if jobKeys[i].Mode != jobKeys[j].Mode {
			return jobKeys[i].Mode < jobKeys[j].Mode
		}
		return jobKeys[i].Result < jobKeys[j].Result
	})
	for _, k := range jobKeys {
		fmt.Fprintf(&b, "venuecrawl_jobs_total{mode=%q,result=%q} %d\n", k.Mode, k.Result, jobsTotal[k])
	}

	b.WriteString("# HELP venuecrawl_fetch_reason_total Downloader outcomes by reason code\n")
	b.WriteString("# TYPE venuecrawl_fetch_reason_total counter\n")
	var reasons []string
	for r := range fetchReasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(&b, "venuecrawl_fetch_reason_total{reason=%q} %d\n", r, fetchReasons[r])
	}

	b.WriteString("# HELP venuecrawl_queue_depth Current job queue depth by state\n")
	b.WriteString("# TYPE venuecrawl_queue_depth gauge\n")
	var states []string
	for s := range queueDepthGauge {
		states = append(states, s)
	}
	sort.Strings(states)
	for _, s := range states {
		fmt.Fprintf(&b, "venuecrawl_queue_depth{state=%q} %d\n", s, queueDepthGauge[s])
	}

	return b.String()
}
