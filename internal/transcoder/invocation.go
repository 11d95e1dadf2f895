package transcoder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amps-media/amps/internal/config"
)

// Invocation is a fully custom transcoder launch plan. Either Args or
// ShellCommand is set, never both.
type Invocation struct {
	Args         []string
	ShellCommand string
	Env          []string
	Dir          string
}

// InputSpec describes the structured input half of a profile-driven launch:
// the playable source plus options and raw arguments placed before it.
type InputSpec struct {
	Source  string
	Options map[string]string
	Args    []string
}

// MediaResolver turns an indirect source into a direct playable URL plus
// extra input options. Implementations are network-bound and always fallible.
type MediaResolver interface {
	Resolve(source string, handler *config.Handler) (string, map[string]string, error)
}

// ResolveCustom builds the invocation for a channel with a custom command
// spec. It returns (nil, nil) when the channel has none.
func ResolveCustom(ch config.Channel) (*Invocation, error) {
	if ch.Custom == nil {
		return nil, nil
	}

	if ch.Custom.Command == nil {
		return nil, fmt.Errorf("%w: custom command entry is missing", ErrConfiguration)
	}

	inv := &Invocation{}

	switch command := ch.Custom.Command.(type) {
	case string:
		substituted := substitutePlaceholders(command, ch)
		if ch.Custom.Shell {
			inv.ShellCommand = substituted
		} else {
			args, err := SplitCommand(substituted)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
			inv.Args = args
		}
	case []interface{}:
		// one token, one argument: substitution cannot change arity
		for _, token := range command {
			inv.Args = append(inv.Args, substitutePlaceholders(fmt.Sprint(token), ch))
		}
	case []string:
		for _, token := range command {
			inv.Args = append(inv.Args, substitutePlaceholders(token, ch))
		}
	default:
		return nil, fmt.Errorf("%w: custom command must be a string or a list of arguments", ErrConfiguration)
	}

	env, err := coerceEnv(ch.Custom.Env)
	if err != nil {
		return nil, err
	}
	inv.Env = env

	if ch.Custom.Cwd != nil {
		cwd, ok := ch.Custom.Cwd.(string)
		if !ok {
			return nil, fmt.Errorf("%w: custom cwd must be a string", ErrConfiguration)
		}
		inv.Dir = cwd
	}

	return inv, nil
}

// ResolveInput builds the structured input for a profile-driven channel,
// delegating to the resolver when a handler asks for it. Options coming out
// of resolution lose to user-configured options on key collision.
func ResolveInput(ch config.Channel, resolver MediaResolver, logger zerolog.Logger) (*InputSpec, error) {
	if ch.Source == "" {
		return nil, fmt.Errorf("%w: channel %d has no source", ErrConfiguration, ch.ID)
	}

	spec := &InputSpec{
		Source:  ch.Source,
		Options: map[string]string{},
	}

	if handlerDelegates(ch.Handler) {
		if resolver == nil {
			return nil, fmt.Errorf("%w: no resolver available for handler type %q", ErrResolution, ch.Handler.Type)
		}

		url, extra, err := resolver.Resolve(ch.Source, ch.Handler)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResolution, err)
		}
		if url == "" {
			return nil, fmt.Errorf("%w: resolver returned no playable URL", ErrResolution)
		}

		spec.Source = url
		for k, v := range extra {
			spec.Options[k] = v
		}
	}

	// user intent wins over resolution extras
	for k, v := range ch.InputOptions {
		spec.Options[k] = v
	}

	if ch.InputArgs != nil {
		args, ok := coerceStringSlice(ch.InputArgs)
		if !ok {
			logger.Warn().Int("channel", ch.ID).Msg("input_args must be a list of strings, ignoring")
		} else {
			spec.Args = args
		}
	}

	return spec, nil
}

// BuildArgs assembles the transcoder argument vector from a planned input
// and output. Input options are emitted in sorted order to keep invocations
// reproducible.
func BuildArgs(input *InputSpec, output *OutputSpec) []string {
	var args []string

	args = append(args, output.GlobalArgs...)

	keys := make([]string, 0, len(input.Options))
	for k := range input.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-"+k)
		if v := input.Options[k]; v != "" {
			args = append(args, v)
		}
	}

	args = append(args, input.Args...)
	args = append(args, "-i", input.Source)
	args = append(args, output.Args...)
	args = append(args, output.Target)

	return args
}

func handlerDelegates(handler *config.Handler) bool {
	if handler == nil {
		return false
	}
	switch strings.ToLower(handler.Type) {
	case "", "direct":
		return false
	default:
		return true
	}
}

// substitutePlaceholders fills {source}, {id} and {name} into a template.
// Substitution happens before any tokenizing, so a value containing
// whitespace splits into multiple arguments in the non-shell string form.
func substitutePlaceholders(template string, ch config.Channel) string {
	replacer := strings.NewReplacer(
		"{source}", ch.Source,
		"{id}", strconv.Itoa(ch.ID),
		"{name}", ch.Name,
	)
	return replacer.Replace(template)
}

func coerceEnv(value interface{}) ([]string, error) {
	if value == nil {
		return nil, nil
	}

	pairs := map[string]string{}

	switch env := value.(type) {
	case map[string]string:
		pairs = env
	case map[string]interface{}:
		for k, v := range env {
			pairs[k] = fmt.Sprint(v)
		}
	case map[interface{}]interface{}:
		for k, v := range env {
			pairs[fmt.Sprint(k)] = fmt.Sprint(v)
		}
	default:
		return nil, fmt.Errorf("%w: custom env must be a mapping", ErrConfiguration)
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+pairs[k])
	}
	return out, nil
}

func coerceStringSlice(value interface{}) ([]string, bool) {
	switch list := value.(type) {
	case []string:
		return list, true
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// SplitCommand tokenizes a command line with POSIX-shell quoting rules:
// single and double quotes group words, a backslash escapes the next rune.
func SplitCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	var quote rune
	pending := false

	runes := []rune(strings.TrimSpace(command))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
			pending = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == ' ' || r == '\t'):
			if pending || current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
				pending = false
			}
		case r == '\\' && quote != '\'' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	if pending || current.Len() > 0 {
		args = append(args, current.String())
	}

	return args, nil
}
