package utils

import (
	"net/http/httptest"
	"testing"
)

func TestNormalizeRegion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"us", "US"},
		{" de ", "DE"},
		{"GB", "GB"},
		{"usa", ""},
		{"u", ""},
		{"1x", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeRegion(tt.input); got != tt.want {
			t.Errorf("NormalizeRegion(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRegionFromRequest(t *testing.T) {
	t.Run("query beats headers", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/stream/1?region=fr", nil)
		r.Header.Set("CF-IPCountry", "US")
		if got := RegionFromRequest(r); got != "FR" {
			t.Errorf("RegionFromRequest() = %q, want FR", got)
		}
	})

	t.Run("cdn header fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/stream/1", nil)
		r.Header.Set("CF-IPCountry", "us")
		if got := RegionFromRequest(r); got != "US" {
			t.Errorf("RegionFromRequest() = %q, want US", got)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/stream/1", nil)
		if got := RegionFromRequest(r); got != "" {
			t.Errorf("RegionFromRequest() = %q, want empty", got)
		}
	})
}

func TestRegionAllowed(t *testing.T) {
	tests := []struct {
		name    string
		region  string
		allowed []string
		blocked []string
		want    bool
	}{
		{"no restrictions", "US", nil, nil, true},
		{"no restrictions unknown region", "", nil, nil, true},
		{"on allow list", "US", []string{"us", "ca"}, nil, true},
		{"off allow list", "DE", []string{"us", "ca"}, nil, false},
		{"allow list requires known region", "", []string{"us"}, nil, false},
		{"on block list", "DE", nil, []string{"de"}, false},
		{"off block list", "FR", nil, []string{"de"}, true},
		{"block list ignores unknown region", "", nil, []string{"de"}, true},
		{"allowed then blocked", "US", []string{"us"}, []string{"us"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RegionAllowed(tt.region, tt.allowed, tt.blocked); got != tt.want {
				t.Errorf("RegionAllowed(%q, %v, %v) = %v, want %v",
					tt.region, tt.allowed, tt.blocked, got, tt.want)
			}
		})
	}
}
