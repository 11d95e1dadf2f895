package utils

import (
	"bufio"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// ForwardLines reads r line by line and emits each non-empty line on the
// given logger until the pipe closes. Transcoder diagnostics arrive on
// stderr as free text, so everything is logged at a single level.
func ForwardLines(r io.Reader, logger zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	// diagnostic lines can exceed the default token size
	scanner.Buffer(make([]byte, 0, 4096), 256*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Info().Msg(line)
	}

	if err := scanner.Err(); err != nil && err != io.ErrClosedPipe {
		logger.Debug().Err(err).Msg("diagnostic stream closed")
	}
}
