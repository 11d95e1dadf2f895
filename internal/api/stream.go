package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/amps-media/amps/internal/config"
	"github.com/amps-media/amps/internal/transcoder"
	"github.com/amps-media/amps/internal/utils"
)

// relay chunk size, matches the transport stream packet multiple viewers
// consume comfortably
const chunkSize = 4096

// Stream relays the transcoder output of one channel to one viewer. Viewers
// of the same (channel, variant) share a process; overlap=true requests a
// private process torn down when this viewer disconnects.
func (a *ApiManagerCtx) Stream(w http.ResponseWriter, r *http.Request) {
	a.metrics.IncStreamRequests()

	logger := a.logger.With().Str("path", r.URL.Path).Logger()

	id, err := strconv.Atoi(chi.URLParam(r, "channelID"))
	if err != nil {
		http.Error(w, "404 channel not found", http.StatusNotFound)
		return
	}

	channel, ok := a.registry.Get(id)
	if !ok {
		http.Error(w, "404 channel not found", http.StatusNotFound)
		return
	}

	region := utils.RegionFromRequest(r)
	if !utils.RegionAllowed(region, channel.RegionsAllowed, channel.RegionsBlocked) {
		logger.Info().Str("region", region).Int("channel", id).Msg("region blocked")
		http.Error(w, "403 channel not available in this region", http.StatusForbidden)
		return
	}

	effective := channel
	baseTag := transcoder.DefaultVariant
	if name := r.URL.Query().Get("variant"); name != "" {
		variant, ok := channel.FindVariant(name)
		if !ok {
			http.Error(w, "404 variant not found", http.StatusNotFound)
			return
		}
		effective = channel.WithVariant(variant)
		baseTag = variant.Name
	}

	profile, ok := a.lookupProfile(effective)
	if !ok {
		a.metrics.IncStreamErrors()
		logger.Warn().Int("channel", id).Str("profile", effective.Profile).Msg("profile not available")
		http.Error(w, "500 stream unavailable", http.StatusInternalServerError)
		return
	}

	tag := baseTag
	private := isTruthy(r.URL.Query().Get("overlap"))
	if private {
		tag = transcoder.PrivateVariant(baseTag)
	}

	process, tag, err := a.supervisor.GetOrStart(effective, profile, tag)
	if err != nil {
		a.metrics.IncStreamErrors()
		logger.Warn().Err(err).Int("channel", id).Str("variant", tag).Msg("stream could not be started")
		// diagnostic detail stays in the logs, viewers get a plain failure
		http.Error(w, "500 stream unavailable", http.StatusInternalServerError)
		return
	}

	logger.Info().
		Int("channel", id).
		Str("variant", tag).
		Bool("private", private).
		Msg("viewer attached")

	a.metrics.ViewerAttached()
	defer a.metrics.ViewerDetached()

	w.Header().Set("Content-Type", "video/mp2t")

	a.relay(w, r, process)

	if private {
		// private instances never outlive their viewer
		a.supervisor.Stop(id, tag)
	}

	logger.Info().Int("channel", id).Str("variant", tag).Msg("viewer detached")
}

// relay copies process output to the viewer in fixed chunks, flushing after
// every write, until end of stream or viewer disconnect. A dead shared
// process is only respawned by the next incoming request.
func (a *ApiManagerCtx) relay(w http.ResponseWriter, r *http.Request, process *transcoder.Process) {
	flusher, _ := w.(http.Flusher)
	output := process.Output()
	buf := make([]byte, chunkSize)

	for {
		if r.Context().Err() != nil {
			return
		}

		n, err := output.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			a.metrics.AddRelayedBytes(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

func (a *ApiManagerCtx) lookupProfile(effective config.Channel) (config.Profile, bool) {
	if effective.Custom != nil {
		// a custom invocation needs no profile; use one when named anyway
		if effective.Profile == "" {
			return config.Profile{}, true
		}
		profile, ok := a.profiles.Get(effective.Profile)
		if !ok {
			return config.Profile{}, true
		}
		return profile, true
	}

	if effective.Profile == "" {
		return config.Profile{}, false
	}

	return a.profiles.Get(effective.Profile)
}

func isTruthy(value string) bool {
	switch value {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
