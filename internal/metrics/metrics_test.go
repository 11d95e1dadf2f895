package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestScrapeOutput(t *testing.T) {
	m := New(func() int { return 3 }, func() int { return 12 })

	m.IncStreamRequests()
	m.IncStreamErrors()
	m.AddRelayedBytes(4096)
	m.ViewerAttached()
	m.ViewerAttached()
	m.ViewerDetached()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	for _, want := range []string{
		"amps_stream_requests_total 1",
		"amps_stream_errors_total 1",
		"amps_relayed_bytes_total 4096",
		"amps_viewer_sessions 1",
		"amps_live_processes 3",
		"amps_channels 12",
		"amps_start_time_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q:\n%s", want, body)
		}
	}
}
