package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// CustomCommand is a user-supplied transcoder invocation. Command and Env are
// kept untyped on purpose: their shape is validated when the invocation is
// resolved, so a single malformed channel fails its own requests instead of
// failing the whole configuration load.
type CustomCommand struct {
	Command interface{} `yaml:"command" mapstructure:"command" json:"command,omitempty"`
	Shell   bool        `yaml:"shell" mapstructure:"shell" json:"shell,omitempty"`
	Env     interface{} `yaml:"env" mapstructure:"env" json:"env,omitempty"`
	Cwd     interface{} `yaml:"cwd" mapstructure:"cwd" json:"cwd,omitempty"`
}

// UnmarshalYAML accepts either the mapping form or a plain string shorthand
// for simple commands.
func (c *CustomCommand) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var shorthand string
	if err := unmarshal(&shorthand); err == nil {
		c.Command = shorthand
		return nil
	}

	type plain CustomCommand
	var full plain
	if err := unmarshal(&full); err != nil {
		return err
	}

	*c = CustomCommand(full)
	return nil
}

// UnmarshalJSON mirrors the YAML shorthand for the management API.
func (c *CustomCommand) UnmarshalJSON(data []byte) error {
	var shorthand string
	if err := json.Unmarshal(data, &shorthand); err == nil {
		c.Command = shorthand
		return nil
	}

	type plain CustomCommand
	var full plain
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}

	*c = CustomCommand(full)
	return nil
}

// Handler describes how an indirect source is turned into a playable URL.
type Handler struct {
	Type    string                 `yaml:"type" mapstructure:"type" json:"type,omitempty"`
	Format  string                 `yaml:"format" mapstructure:"format" json:"format,omitempty"`
	Options map[string]interface{} `yaml:"options" mapstructure:"options" json:"options,omitempty"`
}

// Program is one upcoming EPG entry of a channel.
type Program struct {
	Title       string `yaml:"title" mapstructure:"title" json:"title,omitempty"`
	Start       string `yaml:"start" mapstructure:"start" json:"start,omitempty"`
	Stop        string `yaml:"stop" mapstructure:"stop" json:"stop,omitempty"`
	Description string `yaml:"description" mapstructure:"description" json:"description,omitempty"`
}

// Variant is a named override bundle for adaptive delivery.
type Variant struct {
	Name         string            `yaml:"name" mapstructure:"name" json:"name,omitempty"`
	Source       string            `yaml:"source" mapstructure:"source" json:"source,omitempty"`
	Profile      string            `yaml:"profile" mapstructure:"profile" json:"profile,omitempty"`
	Custom       *CustomCommand    `yaml:"custom_command" mapstructure:"custom_command" json:"custom_command,omitempty"`
	Handler      *Handler          `yaml:"source_handler" mapstructure:"source_handler" json:"source_handler,omitempty"`
	InputOptions map[string]string `yaml:"input_options" mapstructure:"input_options" json:"input_options,omitempty"`
	InputArgs    interface{}       `yaml:"input_args" mapstructure:"input_args" json:"input_args,omitempty"`
}

type Channel struct {
	ID      int            `yaml:"id" mapstructure:"id" json:"id"`
	Name    string         `yaml:"name" mapstructure:"name" json:"name,omitempty"`
	Source  string         `yaml:"source" mapstructure:"source" json:"source,omitempty"`
	Profile string         `yaml:"profile" mapstructure:"profile" json:"profile,omitempty"`
	Custom  *CustomCommand `yaml:"custom_command" mapstructure:"custom_command" json:"custom_command,omitempty"`
	Handler *Handler       `yaml:"source_handler" mapstructure:"source_handler" json:"source_handler,omitempty"`

	InputOptions map[string]string `yaml:"input_options" mapstructure:"input_options" json:"input_options,omitempty"`
	InputArgs    interface{}       `yaml:"input_args" mapstructure:"input_args" json:"input_args,omitempty"`

	Variants []Variant `yaml:"variants" mapstructure:"variants" json:"variants,omitempty"`

	Logo          string    `yaml:"logo" mapstructure:"logo" json:"logo,omitempty"`
	TVGName       string    `yaml:"tvg_name" mapstructure:"tvg_name" json:"tvg_name,omitempty"`
	Group         string    `yaml:"group" mapstructure:"group" json:"group,omitempty"`
	ChannelNumber int       `yaml:"channel_number" mapstructure:"channel_number" json:"channel_number,omitempty"`
	Description   string    `yaml:"description" mapstructure:"description" json:"description,omitempty"`
	ProgramFeed   string    `yaml:"program_feed" mapstructure:"program_feed" json:"program_feed,omitempty"`
	Programs      []Program `yaml:"next_programs" mapstructure:"next_programs" json:"next_programs,omitempty"`

	RegionsAllowed []string `yaml:"regions_allowed" mapstructure:"regions_allowed" json:"regions_allowed,omitempty"`
	RegionsBlocked []string `yaml:"regions_blocked" mapstructure:"regions_blocked" json:"regions_blocked,omitempty"`
}

// FindVariant returns the named variant of the channel.
func (c Channel) FindVariant(name string) (Variant, bool) {
	for _, v := range c.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// WithVariant produces the effective channel for one request. A field the
// variant specifies replaces the parent's value wholesale; input options are
// swapped as a unit, never merged key by key.
func (c Channel) WithVariant(v Variant) Channel {
	effective := c

	if v.Source != "" {
		effective.Source = v.Source
	}
	if v.Profile != "" {
		effective.Profile = v.Profile
	}
	if v.Custom != nil {
		effective.Custom = v.Custom
	}
	if v.Handler != nil {
		effective.Handler = v.Handler
	}
	if v.InputOptions != nil {
		effective.InputOptions = v.InputOptions
	}
	if v.InputArgs != nil {
		effective.InputArgs = v.InputArgs
	}

	return effective
}

// HWAccel selects hardware decode acceleration for a profile.
type HWAccel struct {
	Type   string `yaml:"type" mapstructure:"type" json:"type,omitempty"`
	Device string `yaml:"device" mapstructure:"device" json:"device,omitempty"`
}

// Profile is a named, immutable bundle of transcoder output options. Options
// maps option name to value; an empty value emits a bare flag.
type Profile struct {
	OutputFormat string            `yaml:"output_format" mapstructure:"output_format" json:"output_format,omitempty"`
	AudioOnly    bool              `yaml:"audio_only" mapstructure:"audio_only" json:"audio_only,omitempty"`
	HWAccel      *HWAccel          `yaml:"hwaccel" mapstructure:"hwaccel" json:"hwaccel,omitempty"`
	Options      map[string]string `yaml:"options" mapstructure:"options" json:"options,omitempty"`
}

// ScheduledChannel is a channel plus an optional [start, end) UTC window.
type ScheduledChannel struct {
	Channel `yaml:",inline" mapstructure:",squash"`

	Start string `yaml:"start" mapstructure:"start" json:"start,omitempty"`
	End   string `yaml:"end" mapstructure:"end" json:"end,omitempty"`
}

// Channels is the full channel lineup of one configuration load.
type Channels struct {
	Channels  []Channel          `yaml:"channels" mapstructure:"channels" json:"channels,omitempty"`
	Profiles  map[string]Profile `yaml:"profiles" mapstructure:"profiles" json:"profiles,omitempty"`
	Scheduled []ScheduledChannel `yaml:"scheduled_channels" mapstructure:"scheduled_channels" json:"scheduled_channels,omitempty"`
}

// LoadChannels reads the lineup either from a dedicated YAML file or from the
// keys of the main configuration file.
func LoadChannels(channelsFile string) (*Channels, error) {
	if channelsFile == "" {
		lineup := &Channels{}
		if err := viper.UnmarshalKey("channels", &lineup.Channels); err != nil {
			return nil, err
		}
		if err := viper.UnmarshalKey("profiles", &lineup.Profiles); err != nil {
			return nil, err
		}
		if err := viper.UnmarshalKey("scheduled_channels", &lineup.Scheduled); err != nil {
			return nil, err
		}
		return lineup, nil
	}

	data, err := os.ReadFile(channelsFile)
	if err != nil {
		return nil, err
	}

	lineup := &Channels{}
	if err := yaml.Unmarshal(data, lineup); err != nil {
		return nil, fmt.Errorf("unable to parse channels file: %w", err)
	}

	return lineup, nil
}
