package amps

import (
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/amps-media/amps/internal/api"
	"github.com/amps-media/amps/internal/config"
	"github.com/amps-media/amps/internal/http"
	"github.com/amps-media/amps/internal/metrics"
	"github.com/amps-media/amps/internal/registry"
	"github.com/amps-media/amps/internal/resolver"
	"github.com/amps-media/amps/internal/scheduler"
	"github.com/amps-media/amps/internal/transcoder"
)

var Service *Main

func init() {
	Service = &Main{
		ServerConfig: &config.Server{},
	}
}

type Main struct {
	ServerConfig *config.Server

	logger     zerolog.Logger
	registry   *registry.Registry
	profiles   *registry.ProfileStore
	supervisor *transcoder.Supervisor
	scheduler  *scheduler.Controller
	metrics    *metrics.Metrics
	apiManager *api.ApiManagerCtx
	server     *http.HttpManagerCtx
}

func (main *Main) Preflight() {
	main.logger = log.With().Str("service", "main").Logger()
}

func (main *Main) Start() {
	main.registry = registry.New()
	main.profiles = registry.NewProfileStore()

	main.supervisor = transcoder.New(transcoder.Options{
		FFmpegBinary: main.ServerConfig.FFmpegBinary,
		OutputDir:    main.ServerConfig.OutputDir,
		GracePeriod:  main.ServerConfig.StopGracePeriod,
		Resolver:     resolver.NewExec(main.ServerConfig.ResolverBinary),
	})

	main.scheduler = scheduler.New(main.registry, main.supervisor)

	main.metrics = metrics.New(
		func() int { return main.supervisor.Count() },
		func() int { return main.registry.Len() },
	)

	main.LoadChannels()

	main.apiManager = api.New(
		main.ServerConfig,
		main.registry,
		main.profiles,
		main.supervisor,
		main.metrics,
	)

	main.server = http.New(main.ServerConfig)
	main.server.Mount(main.apiManager.Mount)

	if main.ServerConfig.PProf {
		main.server.WithDebugPProf("/debug/pprof")
	}

	main.server.Start()
}

// LoadChannels reads the lineup and hands it to the registry and the
// scheduler. Called on startup and whenever the configuration reloads.
func (main *Main) LoadChannels() {
	// config can reload before the service started
	if main.registry == nil {
		return
	}

	lineup, err := config.LoadChannels(main.ServerConfig.ChannelsFile)
	if err != nil {
		main.logger.Err(err).Msg("unable to load channel lineup")
		return
	}

	main.applyLineup(lineup)

	main.logger.Info().
		Int("channels", len(lineup.Channels)).
		Int("profiles", len(lineup.Profiles)).
		Int("scheduled", len(lineup.Scheduled)).
		Msg("channel lineup loaded")
}

func (main *Main) applyLineup(lineup *config.Channels) {
	previous := main.registry.List()

	main.registry.Replace(lineup.Channels)
	main.profiles.Replace(lineup.Profiles)
	main.scheduler.Load(lineup.Channels, lineup.Scheduled)

	// channels dropped from the lineup leave the registry without passing
	// through the scheduler, so their processes must be stopped here
	for _, ch := range previous {
		if _, ok := main.registry.Get(ch.ID); !ok {
			main.supervisor.Stop(ch.ID, "")
		}
	}
}

func (main *Main) Shutdown() {
	main.scheduler.Shutdown()
	main.supervisor.CleanupAll()

	if err := main.server.Shutdown(); err != nil {
		main.logger.Err(err).Msg("server shutdown with an error")
	} else {
		main.logger.Debug().Msg("server shutdown")
	}
}

func (main *Main) ServeCommand(cmd *cobra.Command, args []string) {
	main.logger.Info().Msg("starting main server")
	main.Start()
	main.logger.Info().Msg("main ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	sig := <-quit

	main.logger.Warn().Msgf("received %s, attempting graceful shutdown", sig)
	main.Shutdown()
	main.logger.Info().Msg("shutdown complete")
}
