package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/amps-media/amps/internal/config"
	"github.com/amps-media/amps/internal/utils"
)

// Playlist renders the channel lineup as an M3U document. Filters: region
// (also taken from headers), group (comma separated group titles) and ids
// (comma separated channel ids).
func (a *ApiManagerCtx) Playlist(w http.ResponseWriter, r *http.Request) {
	region := utils.RegionFromRequest(r)
	groups := parseGroupFilter(r.URL.Query().Get("group"))
	ids := parseIDFilter(r.URL.Query().Get("ids"))

	authQuery := ""
	if a.conf.Auth.Enabled {
		authQuery = "?token=" + a.conf.Auth.Token
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")

	for _, channel := range a.registry.List() {
		if !channelMatches(channel, region, groups, ids) {
			continue
		}

		b.WriteString(extinfLine(channel))
		b.WriteByte('\n')

		if len(channel.Programs) > 0 {
			writeProgramHint(&b, channel.Programs[0])
		}
		if channel.ProgramFeed != "" {
			fmt.Fprintf(&b, "#EXTREM:AMP-PROGRAM-FEED url=%q\n", channel.ProgramFeed)
		}
		if channel.Description != "" {
			fmt.Fprintf(&b, "#EXTREM:AMP-DESCRIPTION %s\n", channel.Description)
		}

		fmt.Fprintf(&b, "%s/stream/%d%s\n", baseURL(r, a.conf.Proxy), channel.ID, authQuery)
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	_, _ = w.Write([]byte(b.String()))
}

func extinfLine(channel config.Channel) string {
	attributes := []string{fmt.Sprintf("tvg-id=%q", strconv.Itoa(channel.ID))}

	tvgName := channel.TVGName
	if tvgName == "" {
		tvgName = channel.Name
	}
	if tvgName != "" {
		attributes = append(attributes, fmt.Sprintf("tvg-name=%q", tvgName))
	}
	if channel.Logo != "" {
		attributes = append(attributes, fmt.Sprintf("tvg-logo=%q", channel.Logo))
	}
	if channel.Group != "" {
		attributes = append(attributes, fmt.Sprintf("group-title=%q", channel.Group))
	}
	if channel.ChannelNumber != 0 {
		attributes = append(attributes, fmt.Sprintf("channel-number=%q", strconv.Itoa(channel.ChannelNumber)))
	}

	return fmt.Sprintf("#EXTINF:-1 %s,%s", strings.Join(attributes, " "), channel.Name)
}

func writeProgramHint(b *strings.Builder, program config.Program) {
	var parts []string
	if program.Title != "" {
		parts = append(parts, fmt.Sprintf("title=%q", program.Title))
	}
	if program.Start != "" {
		parts = append(parts, fmt.Sprintf("start=%q", program.Start))
	}
	if program.Description != "" {
		parts = append(parts, fmt.Sprintf("description=%q", program.Description))
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, "#EXTREM:AMP-NEXT %s\n", strings.Join(parts, " "))
	}
}

func channelMatches(channel config.Channel, region string, groups map[string]struct{}, ids map[int]struct{}) bool {
	if ids != nil {
		if _, ok := ids[channel.ID]; !ok {
			return false
		}
	}

	if groups != nil {
		group := strings.ToLower(strings.TrimSpace(channel.Group))
		if _, ok := groups[group]; !ok {
			return false
		}
	}

	return utils.RegionAllowed(region, channel.RegionsAllowed, channel.RegionsBlocked)
}

func parseGroupFilter(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}

	groups := make(map[string]struct{})
	for _, item := range strings.Split(raw, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			groups[item] = struct{}{}
		}
	}

	if len(groups) == 0 {
		return nil
	}
	return groups
}

func parseIDFilter(raw string) map[int]struct{} {
	if raw == "" {
		return nil
	}

	ids := make(map[int]struct{})
	for _, chunk := range strings.Split(raw, ",") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		id, err := strconv.Atoi(chunk)
		if err != nil {
			continue
		}
		ids[id] = struct{}{}
	}

	if len(ids) == 0 {
		return nil
	}
	return ids
}

func baseURL(r *http.Request, allowProxy bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if allowProxy {
		if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
			scheme = forwarded
		}
	}
	return scheme + "://" + r.Host
}
