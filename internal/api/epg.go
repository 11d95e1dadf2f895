package api

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"time"

	"github.com/amps-media/amps/internal/config"
	"github.com/amps-media/amps/internal/utils"
)

const xmltvTimeLayout = "20060102150405 -0700"

type xmltvDocument struct {
	XMLName    xml.Name         `xml:"tv"`
	SourceInfo string           `xml:"source-info-name,attr"`
	Generator  string           `xml:"generator-info-name,attr"`
	Channels   []xmltvChannel   `xml:"channel"`
	Programmes []xmltvProgramme `xml:"programme"`
}

type xmltvChannel struct {
	ID          string     `xml:"id,attr"`
	DisplayName string     `xml:"display-name"`
	Icon        *xmltvIcon `xml:"icon,omitempty"`
}

type xmltvIcon struct {
	Src string `xml:"src,attr"`
}

type xmltvProgramme struct {
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr,omitempty"`
	Channel string `xml:"channel,attr"`
	Title   string `xml:"title"`
	Desc    string `xml:"desc,omitempty"`
}

// EPGXML renders the lineup's programme data as an XMLTV document.
func (a *ApiManagerCtx) EPGXML(w http.ResponseWriter, r *http.Request) {
	region := utils.RegionFromRequest(r)

	doc := xmltvDocument{
		SourceInfo: "amps",
		Generator:  "amps",
	}

	for _, channel := range a.registry.List() {
		if !utils.RegionAllowed(region, channel.RegionsAllowed, channel.RegionsBlocked) {
			continue
		}

		id := strconv.Itoa(channel.ID)
		displayName := channel.Name
		if displayName == "" {
			displayName = id
		}

		entry := xmltvChannel{ID: id, DisplayName: displayName}
		if channel.Logo != "" {
			entry.Icon = &xmltvIcon{Src: channel.Logo}
		}
		doc.Channels = append(doc.Channels, entry)

		for _, program := range channel.Programs {
			start, ok := parseProgramTime(program.Start)
			if !ok {
				// a programme without a valid start cannot be placed
				continue
			}

			programme := xmltvProgramme{
				Start:   start.Format(xmltvTimeLayout),
				Channel: id,
				Title:   program.Title,
				Desc:    program.Description,
			}
			if stop, ok := parseProgramTime(program.Stop); ok {
				programme.Stop = stop.Format(xmltvTimeLayout)
			}
			doc.Programmes = append(doc.Programmes, programme)
		}
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(doc); err != nil {
		a.logger.Warn().Err(err).Msg("unable to render EPG")
	}
}

type epgChannel struct {
	ID       int              `json:"id"`
	Name     string           `json:"name"`
	Group    string           `json:"group,omitempty"`
	Logo     string           `json:"logo,omitempty"`
	Programs []config.Program `json:"programs"`
}

// EPGJSON renders the same programme data as JSON.
func (a *ApiManagerCtx) EPGJSON(w http.ResponseWriter, r *http.Request) {
	region := utils.RegionFromRequest(r)

	out := []epgChannel{}
	for _, channel := range a.registry.List() {
		if !utils.RegionAllowed(region, channel.RegionsAllowed, channel.RegionsBlocked) {
			continue
		}

		programs := channel.Programs
		if programs == nil {
			programs = []config.Program{}
		}

		out = append(out, epgChannel{
			ID:       channel.ID,
			Name:     channel.Name,
			Group:    channel.Group,
			Logo:     channel.Logo,
			Programs: programs,
		})
	}

	a.writeJSON(w, http.StatusOK, out)
}

// parseProgramTime accepts RFC3339 or a naive timestamp assumed UTC.
func parseProgramTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}

	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
