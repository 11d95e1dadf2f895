package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	amps "github.com/amps-media/amps"
	"github.com/amps-media/amps/internal/config"
)

func init() {
	command := &cobra.Command{
		Use:   "list",
		Short: "list configured channels",
		Long:  `list the channel lineup from the configuration file`,
		Run:   listCommand,
	}

	configs := []Config{
		amps.Service.ServerConfig,
	}

	cobra.OnInitialize(func() {
		for _, cfg := range configs {
			cfg.Set()
		}
	})

	for _, cfg := range configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Msg("unable to run list command")
		}
	}

	rootCmd.AddCommand(command)
}

func listCommand(cmd *cobra.Command, args []string) {
	lineup, err := config.LoadChannels(amps.Service.ServerConfig.ChannelsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load channel lineup")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tGROUP\tPROFILE\tVARIANTS\tSOURCE")

	for _, channel := range lineup.Channels {
		profile := channel.Profile
		if profile == "" && channel.Custom != nil {
			profile = "(custom)"
		}

		variants := ""
		for i, v := range channel.Variants {
			if i > 0 {
				variants += ","
			}
			variants += v.Name
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			channel.ID, channel.Name, channel.Group, profile, variants, channel.Source)
	}

	if len(lineup.Scheduled) > 0 {
		fmt.Fprintf(w, "\n%d scheduled channel(s) not shown\n", len(lineup.Scheduled))
	}

	w.Flush()
}
