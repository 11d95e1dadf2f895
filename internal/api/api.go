package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/amps-media/amps/internal/config"
	"github.com/amps-media/amps/internal/metrics"
	"github.com/amps-media/amps/internal/registry"
	"github.com/amps-media/amps/internal/transcoder"
)

type ApiManagerCtx struct {
	logger     zerolog.Logger
	conf       *config.Server
	registry   *registry.Registry
	profiles   *registry.ProfileStore
	supervisor *transcoder.Supervisor
	metrics    *metrics.Metrics
}

func New(conf *config.Server, reg *registry.Registry, profiles *registry.ProfileStore, supervisor *transcoder.Supervisor, m *metrics.Metrics) *ApiManagerCtx {
	return &ApiManagerCtx{
		logger:     log.With().Str("module", "api").Logger(),
		conf:       conf,
		registry:   reg,
		profiles:   profiles,
		supervisor: supervisor,
		metrics:    m,
	}
}

func (a *ApiManagerCtx) Mount(r *chi.Mux) {
	r.Use(a.authMiddleware)

	r.Get("/stream/{channelID}", a.Stream)
	r.Get("/playlist.m3u", a.Playlist)
	r.Get("/epg.xml", a.EPGXML)
	r.Get("/epg.json", a.EPGJSON)

	r.Route("/api", func(r chi.Router) {
		r.Get("/channels", a.ListChannels)
		r.Post("/channels", a.AddChannel)
		r.Get("/channels/{channelID}", a.GetChannel)
		r.Put("/channels/{channelID}", a.UpdateChannel)
		r.Delete("/channels/{channelID}", a.DeleteChannel)
		r.Get("/channels/{channelID}/programs", a.GetPrograms)
		r.Put("/channels/{channelID}/programs", a.PutPrograms)
	})

	r.Method("GET", "/metrics", a.metrics.Handler())
}

func (a *ApiManagerCtx) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Warn().Err(err).Msg("unable to write response")
	}
}

func (a *ApiManagerCtx) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}
