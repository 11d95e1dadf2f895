package config

import (
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Auth struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type Server struct {
	PProf bool

	Cert  string
	Key   string
	Bind  string
	Proxy bool

	// OutputDir is the scratch base for segmented transcoder outputs.
	OutputDir string
	// FFmpegBinary is the transcoder executable used for profile-driven channels.
	FFmpegBinary string
	// ResolverBinary resolves indirect sources into playable URLs.
	ResolverBinary string
	// StopGracePeriod bounds the wait for a transcoder to exit before SIGKILL.
	StopGracePeriod time.Duration

	// ChannelsFile points at a separate YAML document holding channels,
	// profiles and scheduled channels. Empty means they are read from the
	// main configuration file instead.
	ChannelsFile string

	Auth Auth
}

func (Server) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().Bool("pprof", false, "enable pprof endpoint available at /debug/pprof")
	if err := viper.BindPFlag("pprof", cmd.PersistentFlags().Lookup("pprof")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("bind", "127.0.0.1:8080", "address/port/socket to serve amps")
	if err := viper.BindPFlag("bind", cmd.PersistentFlags().Lookup("bind")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("cert", "", "path to the SSL cert used to secure the amps server")
	if err := viper.BindPFlag("cert", cmd.PersistentFlags().Lookup("cert")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key", "", "path to the SSL key used to secure the amps server")
	if err := viper.BindPFlag("key", cmd.PersistentFlags().Lookup("key")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("proxy", false, "allow reverse proxies")
	if err := viper.BindPFlag("proxy", cmd.PersistentFlags().Lookup("proxy")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("output-dir", "", "base directory for segmented transcoder output")
	if err := viper.BindPFlag("output-dir", cmd.PersistentFlags().Lookup("output-dir")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("ffmpeg-binary", "ffmpeg", "transcoder binary")
	if err := viper.BindPFlag("ffmpeg-binary", cmd.PersistentFlags().Lookup("ffmpeg-binary")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("resolver-binary", "yt-dlp", "source resolver binary")
	if err := viper.BindPFlag("resolver-binary", cmd.PersistentFlags().Lookup("resolver-binary")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("stop-grace-period", 5*time.Second, "how long to wait for a transcoder to exit before killing it")
	if err := viper.BindPFlag("stop-grace-period", cmd.PersistentFlags().Lookup("stop-grace-period")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("channels-file", "", "separate YAML file with channels, profiles and scheduled channels")
	if err := viper.BindPFlag("channels-file", cmd.PersistentFlags().Lookup("channels-file")); err != nil {
		return err
	}

	return nil
}

func (s *Server) Set() {
	s.PProf = viper.GetBool("pprof")

	s.Cert = viper.GetString("cert")
	s.Key = viper.GetString("key")
	s.Bind = viper.GetString("bind")
	s.Proxy = viper.GetBool("proxy")

	s.OutputDir = viper.GetString("output-dir")
	if s.OutputDir == "" {
		s.OutputDir = path.Join(os.TempDir(), "amps-media")
	}

	s.FFmpegBinary = viper.GetString("ffmpeg-binary")
	if s.FFmpegBinary == "" {
		s.FFmpegBinary = "ffmpeg"
	}

	s.ResolverBinary = viper.GetString("resolver-binary")

	s.StopGracePeriod = viper.GetDuration("stop-grace-period")
	if s.StopGracePeriod <= 0 {
		s.StopGracePeriod = 5 * time.Second
	}

	s.ChannelsFile = viper.GetString("channels-file")

	if err := viper.UnmarshalKey("auth", &s.Auth); err != nil {
		panic(err)
	}
}
