package transcoder

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"

	"github.com/amps-media/amps/internal/config"
)

// OutputSpec is the planned output half of a transcoder launch.
type OutputSpec struct {
	// GlobalArgs go ahead of every other argument (decode acceleration).
	GlobalArgs []string
	// Args are the output options, including the container format.
	Args []string
	// Target is pipe:1, a manifest path or a synthesized network address.
	Target string
	// Dir is the scratch directory owned by this output, empty for pipes.
	Dir string
	// Pipe reports whether media bytes arrive on the process stdout.
	Pipe bool
}

const pipeTarget = "pipe:1"

// PlanOutput turns an encoding profile into a concrete output target and
// option set for one (channel, variant) pair. Segmented formats get a fresh
// per-key directory: stale contents are removed before the process starts.
func PlanOutput(profile config.Profile, channelID int, variant string, baseDir string) (*OutputSpec, error) {
	opts := make(map[string]string, len(profile.Options))
	for k, v := range profile.Options {
		opts[k] = v
	}

	spec := &OutputSpec{
		GlobalArgs: hwaccelArgs(profile.HWAccel),
	}

	if profile.AudioOnly {
		applyAudioOnly(opts)
	}

	switch profile.OutputFormat {
	case "hls", "ll-hls":
		dir, err := freshOutputDir(baseDir, channelID, variant)
		if err != nil {
			return nil, err
		}

		hlsTime := popOption(opts, "hls_time", "4")
		listSize := popOption(opts, "hls_list_size", "0")
		strftime := popOption(opts, "strftime", "0")

		// low latency adds retention and announcement flags on top of
		// whatever the profile already asked for
		extraFlags := "delete_segments+omit_endlist"
		if profile.OutputFormat == "ll-hls" {
			extraFlags = "delete_segments+append_list+omit_endlist+program_date_time"
		}
		flags := joinFlags(popOption(opts, "hls_flags", ""), extraFlags)

		spec.Dir = dir
		spec.Target = path.Join(dir, "index.m3u8")
		spec.Args = append(spec.Args,
			"-f", "hls",
			"-hls_time", hlsTime,
			"-hls_list_size", listSize,
			"-hls_flags", flags,
			"-strftime", strftime,
		)

	case "dash":
		dir, err := freshOutputDir(baseDir, channelID, variant)
		if err != nil {
			return nil, err
		}

		spec.Dir = dir
		spec.Target = path.Join(dir, "manifest.mpd")
		spec.Args = append(spec.Args,
			"-f", "dash",
			"-seg_duration", popOption(opts, "seg_duration", "4"),
			"-remove_at_exit", popOption(opts, "remove_at_exit", "1"),
		)

	case "rtsp":
		// static local convention, keyed by channel and variant; there is
		// no negotiation, consumers know where to look
		spec.Target = fmt.Sprintf("rtsp://127.0.0.1:8554/channel_%d_%s", channelID, variant)
		spec.Args = append(spec.Args, "-f", popOption(opts, "f", "rtsp"))

	case "audio":
		applyAudioOnly(opts)
		spec.Target = pipeTarget
		spec.Pipe = true
		spec.Args = append(spec.Args, "-f", popOption(opts, "f", "adts"))

	default:
		// raw transport stream on stdout
		spec.Target = pipeTarget
		spec.Pipe = true
		spec.Args = append(spec.Args, "-f", popOption(opts, "f", "mpegts"))
	}

	// remaining profile options, in stable order
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		spec.Args = append(spec.Args, "-"+k)
		if v := opts[k]; v != "" {
			spec.Args = append(spec.Args, v)
		}
	}

	return spec, nil
}

func hwaccelArgs(hw *config.HWAccel) []string {
	if hw == nil {
		return nil
	}

	var args []string
	switch hw.Type {
	case "nvidia":
		args = append(args, "-hwaccel", "cuda")
	case "vaapi":
		args = append(args, "-hwaccel", "vaapi")
	case "videotoolbox":
		args = append(args, "-hwaccel", "videotoolbox")
	default:
		// unrecognized acceleration type is a no-op, not an error
		return nil
	}

	if hw.Device != "" {
		args = append(args, "-hwaccel_device", hw.Device)
	}

	return args
}

func applyAudioOnly(opts map[string]string) {
	opts["vn"] = ""
	if _, ok := opts["acodec"]; !ok {
		opts["acodec"] = "aac"
	}
}

func freshOutputDir(baseDir string, channelID int, variant string) (string, error) {
	dir := path.Join(baseDir, strconv.Itoa(channelID), variant)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("unable to clear output directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("unable to create output directory: %w", err)
	}
	return dir, nil
}

func popOption(opts map[string]string, key, fallback string) string {
	if v, ok := opts[key]; ok {
		delete(opts, key)
		return v
	}
	return fallback
}

func joinFlags(flags ...string) string {
	var out string
	for _, f := range flags {
		if f == "" {
			continue
		}
		if out == "" {
			out = f
		} else {
			out += "+" + f
		}
	}
	return out
}
