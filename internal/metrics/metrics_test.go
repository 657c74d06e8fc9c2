package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	RecordRequest("GET", "/scrape/123", 200, 42)

	out := Export()
	if !strings.Contains(out, `venuecrawl_http_requests_total{method="GET",path="/scrape/123",status="200"}`) {
		t.Fatalf("expected HTTP request metric in export, got:\n%s", out)
	}
	if !strings.Contains(out, "venuecrawl_http_request_duration_ms_sum") {
		t.Fatalf("expected latency metric header in export, got:\n%s", out)
	}
}

func TestRecordJobOutcome(t *testing.T) {
	RecordJobOutcome("realtime", "success")
	RecordJobOutcome("background", "fail")

	out := Export()
	if !strings.Contains(out, `venuecrawl_jobs_total{mode="realtime",result="success"}`) {
		t.Fatalf("expected realtime/success job metric, got:\n%s", out)
	}
	if !strings.Contains(out, `venuecrawl_jobs_total{mode="background",result="fail"}`) {
		t.Fatalf("expected background/fail job metric, got:\n%s", out)
	}
}

func TestRecordFetchReasonAndQueueDepth(t *testing.T) {
	RecordFetchReason("ok")
	RecordFetchReason("robots_disallowed")
	SetQueueDepth("pending", 7)

	out := Export()
	if !strings.Contains(out, `venuecrawl_fetch_reason_total{reason="ok"}`) {
		t.Fatalf("expected ok reason metric, got:\n%s", out)
	}
	if !strings.Contains(out, `venuecrawl_queue_depth{state="pending"} 7`) {
		t.Fatalf("expected queue depth gauge, got:\n%s", out)
	}
}
