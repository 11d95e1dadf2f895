package utils

import (
	"net/http"
	"strings"
)

// headers checked for a client region, in order of preference
var regionHeaders = []string{
	"X-Amps-Region",
	"X-Region",
	"CF-IPCountry",
	"X-Appengine-Country",
}

// NormalizeRegion returns the upper-cased ISO-3166 alpha-2 code, or an empty
// string when the value does not look like one.
func NormalizeRegion(value string) string {
	candidate := strings.ToUpper(strings.TrimSpace(value))
	if len(candidate) != 2 {
		return ""
	}
	for _, r := range candidate {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return candidate
}

// RegionFromRequest extracts the client region from the query string or the
// usual CDN headers, best effort.
func RegionFromRequest(r *http.Request) string {
	if region := NormalizeRegion(r.URL.Query().Get("region")); region != "" {
		return region
	}

	for _, header := range regionHeaders {
		if region := NormalizeRegion(r.Header.Get(header)); region != "" {
			return region
		}
	}

	return ""
}

// RegionAllowed reports whether a client region may view a channel with the
// given allow and block lists. An allow list requires a matching region; the
// block list only applies when a region is known.
func RegionAllowed(region string, allowed, blocked []string) bool {
	allowList := normalizeRegions(allowed)
	blockList := normalizeRegions(blocked)

	if len(allowList) > 0 {
		if region == "" || !containsRegion(allowList, region) {
			return false
		}
	}

	if len(blockList) > 0 && region != "" && containsRegion(blockList, region) {
		return false
	}

	return true
}

func normalizeRegions(regions []string) []string {
	var out []string
	for _, region := range regions {
		if code := NormalizeRegion(region); code != "" {
			out = append(out, code)
		}
	}
	return out
}

func containsRegion(regions []string, region string) bool {
	for _, r := range regions {
		if r == region {
			return true
		}
	}
	return false
}
