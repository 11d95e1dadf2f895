package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	amps "github.com/amps-media/amps"
)

func init() {
	command := &cobra.Command{
		Use:   "serve",
		Short: "serve amps media server",
		Long:  `serve amps channel supervisor and streaming server`,
		Run:   amps.Service.ServeCommand,
	}

	configs := []Config{
		amps.Service.ServerConfig,
	}

	cobra.OnInitialize(func() {
		for _, cfg := range configs {
			cfg.Set()
		}
		amps.Service.Preflight()
	})

	// reload the channel lineup when the config file changes
	OnConfigLoad(amps.Service.LoadChannels)

	for _, cfg := range configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Msg("unable to run serve command")
		}
	}

	rootCmd.AddCommand(command)
}
