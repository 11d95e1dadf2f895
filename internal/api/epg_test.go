package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/amps-media/amps/internal/config"
)

func TestEPGXML(t *testing.T) {
	s := newTestServer(t)
	s.registry.Replace([]config.Channel{
		{ID: 1, Name: "News One", Logo: "http://cdn/logo.png",
			Programs: []config.Program{
				{Title: "Evening News", Start: "2026-08-30T18:00:00Z", Stop: "2026-08-30T19:00:00Z", Description: "Daily roundup"},
				{Title: "No Start"},
			}},
		{ID: 2, Name: "Geo", RegionsBlocked: []string{"de"}},
	})

	w := s.do("GET", "/epg.xml", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := w.Body.String()
	for _, want := range []string{
		`<tv source-info-name="amps" generator-info-name="amps">`,
		`<channel id="1">`,
		`<display-name>News One</display-name>`,
		`<icon src="http://cdn/logo.png">`,
		`<programme start="20260830180000 +0000" stop="20260830190000 +0000" channel="1">`,
		`<title>Evening News</title>`,
		`<desc>Daily roundup</desc>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("EPG missing %q:\n%s", want, body)
		}
	}

	if strings.Contains(body, "No Start") {
		t.Error("programme without a start time was placed")
	}

	t.Run("region filter", func(t *testing.T) {
		body := s.do("GET", "/epg.xml?region=de", nil).Body.String()
		if strings.Contains(body, "Geo") {
			t.Errorf("blocked channel listed:\n%s", body)
		}
	})
}

func TestEPGJSON(t *testing.T) {
	s := newTestServer(t)
	s.registry.Replace([]config.Channel{
		{ID: 1, Name: "News One", Group: "News",
			Programs: []config.Program{{Title: "Evening News", Start: "2026-08-30T18:00:00Z"}}},
		{ID: 2, Name: "Bare"},
	})

	w := s.do("GET", "/epg.json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var channels []struct {
		ID       int              `json:"id"`
		Name     string           `json:"name"`
		Programs []config.Program `json:"programs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &channels); err != nil {
		t.Fatal(err)
	}

	if len(channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(channels))
	}
	if channels[0].Programs[0].Title != "Evening News" {
		t.Errorf("programs = %+v", channels[0].Programs)
	}
	if channels[1].Programs == nil {
		t.Error("programs must render as an empty list, not null")
	}
}

func TestParseProgramTime(t *testing.T) {
	tests := []struct {
		value string
		want  time.Time
		ok    bool
	}{
		{"2026-08-30T18:00:00Z", time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC), true},
		{"2026-08-30T20:00:00+02:00", time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC), true},
		{"2026-08-30T18:00:00", time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC), true},
		{"2026-08-30 18:00:00", time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"soon", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := parseProgramTime(tt.value)
		if ok != tt.ok {
			t.Errorf("parseProgramTime(%q) ok = %v, want %v", tt.value, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("parseProgramTime(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
