package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/amps-media/amps/internal/config"
)

const resolveTimeout = 30 * time.Second

// Exec resolves indirect sources by shelling out to an external tool that
// prints a JSON description of the playable media (the yt-dlp convention).
// The resolution protocol itself stays outside this codebase.
type Exec struct {
	logger zerolog.Logger
	binary string
}

func NewExec(binary string) *Exec {
	return &Exec{
		logger: log.With().Str("module", "resolver").Logger(),
		binary: binary,
	}
}

type mediaInfo struct {
	URL         string            `json:"url"`
	ManifestURL string            `json:"manifest_url"`
	Protocol    string            `json:"protocol"`
	HTTPHeaders map[string]string `json:"http_headers"`
}

// Resolve runs the resolver binary against the source and extracts a direct
// URL plus input options the transcoder needs to fetch it.
func (e *Exec) Resolve(source string, handler *config.Handler) (string, map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	format := "best"
	if handler != nil && handler.Format != "" {
		format = handler.Format
	}

	args := []string{"--quiet", "--no-warnings", "--no-playlist", "-f", format, "-j"}
	args = append(args, extraArgs(handler)...)
	args = append(args, source)

	out, err := exec.CommandContext(ctx, e.binary, args...).Output()
	if err != nil {
		return "", nil, fmt.Errorf("resolver failed for %q: %w", source, err)
	}

	var info mediaInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return "", nil, fmt.Errorf("resolver returned malformed output: %w", err)
	}

	url := info.URL
	if url == "" {
		url = info.ManifestURL
	}
	if url == "" {
		return "", nil, fmt.Errorf("resolver returned no playable URL for %q", source)
	}

	options := map[string]string{}

	if len(info.HTTPHeaders) > 0 {
		options["headers"] = headerLines(info.HTTPHeaders)
	}

	if strings.HasPrefix(info.Protocol, "m3u8") {
		options["protocol_whitelist"] = "file,http,https,tcp,tls,crypto"
	}

	e.logger.Debug().Str("source", source).Str("protocol", info.Protocol).Msg("source resolved")

	return url, options, nil
}

// extraArgs passes handler options through as long-form flags. Values are
// stringified; a true boolean emits a bare flag.
func extraArgs(handler *config.Handler) []string {
	if handler == nil || len(handler.Options) == 0 {
		return nil
	}

	keys := make([]string, 0, len(handler.Options))
	for k := range handler.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		flag := "--" + strings.ReplaceAll(k, "_", "-")
		switch v := handler.Options[k].(type) {
		case bool:
			if v {
				args = append(args, flag)
			}
		default:
			args = append(args, flag, fmt.Sprint(v))
		}
	}
	return args
}

func headerLines(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
		b.WriteString("\r\n")
	}
	return b.String()
}
