package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestForwardLines(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	input := "frame= 100 fps= 30\n\n   \nDuration: 00:00:10\n"
	ForwardLines(strings.NewReader(input), logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "frame= 100 fps= 30") {
		t.Errorf("first line = %s", lines[0])
	}
	if !strings.Contains(lines[1], "Duration: 00:00:10") {
		t.Errorf("second line = %s", lines[1])
	}
}

func TestForwardLinesLongLine(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	long := strings.Repeat("x", 100*1024)
	ForwardLines(strings.NewReader(long+"\n"), logger)

	if !strings.Contains(buf.String(), long) {
		t.Error("long diagnostic line was dropped")
	}
}
