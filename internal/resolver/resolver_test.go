package resolver

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/amps-media/amps/internal/config"
)

// fakeResolverScript echoes its arguments to a file and prints canned JSON,
// standing in for the real resolver binary.
func fakeResolverScript(t *testing.T, stdout string) (binary, argsFile string) {
	t.Helper()

	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	binary = filepath.Join(dir, "resolver.sh")

	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + argsFile + "\ncat <<'EOF'\n" + stdout + "\nEOF\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return binary, argsFile
}

func TestResolve(t *testing.T) {
	binary, argsFile := fakeResolverScript(t, `{
		"url": "https://cdn/video.m3u8",
		"protocol": "m3u8_native",
		"http_headers": {"User-Agent": "agent", "Referer": "https://videosite/"}
	}`)

	e := NewExec(binary)
	url, options, err := e.Resolve("https://videosite/watch?v=abc", &config.Handler{
		Type:   "ytdlp",
		Format: "best[height<=720]",
		Options: map[string]interface{}{
			"no_check_certificate": true,
			"socket_timeout":       10,
			"skipped":              false,
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if url != "https://cdn/video.m3u8" {
		t.Errorf("url = %q", url)
	}
	if options["protocol_whitelist"] != "file,http,https,tcp,tls,crypto" {
		t.Errorf("protocol_whitelist = %q", options["protocol_whitelist"])
	}
	if options["headers"] != "Referer: https://videosite/\r\nUser-Agent: agent\r\n" {
		t.Errorf("headers = %q", options["headers"])
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	args := strings.Split(strings.TrimSpace(string(raw)), "\n")
	want := []string{
		"--quiet", "--no-warnings", "--no-playlist",
		"-f", "best[height<=720]", "-j",
		"--no-check-certificate",
		"--socket-timeout", "10",
		"https://videosite/watch?v=abc",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %q, want %q", args, want)
	}
}

func TestResolveManifestFallback(t *testing.T) {
	binary, _ := fakeResolverScript(t, `{"manifest_url": "https://cdn/manifest.mpd", "protocol": "https"}`)

	e := NewExec(binary)
	url, options, err := e.Resolve("https://videosite/x", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if url != "https://cdn/manifest.mpd" {
		t.Errorf("url = %q", url)
	}
	if _, ok := options["protocol_whitelist"]; ok {
		t.Error("protocol_whitelist set for a non m3u8 protocol")
	}
}

func TestResolveFailures(t *testing.T) {
	t.Run("no playable url", func(t *testing.T) {
		binary, _ := fakeResolverScript(t, `{"protocol": "https"}`)
		if _, _, err := NewExec(binary).Resolve("x", nil); err == nil {
			t.Error("expected an error for empty url")
		}
	})

	t.Run("malformed output", func(t *testing.T) {
		binary, _ := fakeResolverScript(t, `ERROR: not available`)
		if _, _, err := NewExec(binary).Resolve("x", nil); err == nil {
			t.Error("expected an error for malformed output")
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		if _, _, err := NewExec("/does/not/exist").Resolve("x", nil); err == nil {
			t.Error("expected an error for a missing binary")
		}
	})
}
