package amps

import (
	"testing"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/amps-media/amps/internal/config"
	"github.com/amps-media/amps/internal/registry"
	"github.com/amps-media/amps/internal/scheduler"
	"github.com/amps-media/amps/internal/transcoder"
)

func newTestMain(t *testing.T) *Main {
	t.Helper()

	main := &Main{
		ServerConfig: &config.Server{},
		logger:       log.With().Str("service", "main").Logger(),
		registry:     registry.New(),
		profiles:     registry.NewProfileStore(),
	}
	main.supervisor = transcoder.New(transcoder.Options{
		OutputDir:   t.TempDir(),
		GracePeriod: time.Second,
	})
	main.scheduler = scheduler.New(main.registry, main.supervisor)
	t.Cleanup(func() {
		main.supervisor.CleanupAll()
	})
	return main
}

func TestApplyLineupStopsDroppedChannels(t *testing.T) {
	main := newTestMain(t)

	dropped := config.Channel{
		ID:     1,
		Name:   "dropped",
		Custom: &config.CustomCommand{Command: []string{"sleep", "60"}},
	}
	kept := config.Channel{
		ID:     2,
		Name:   "kept",
		Custom: &config.CustomCommand{Command: []string{"sleep", "60"}},
	}

	main.applyLineup(&config.Channels{Channels: []config.Channel{dropped, kept}})

	first, _, err := main.supervisor.GetOrStart(dropped, config.Profile{}, "")
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}
	second, _, err := main.supervisor.GetOrStart(kept, config.Profile{}, "")
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}

	main.applyLineup(&config.Channels{Channels: []config.Channel{kept}})

	if first.Alive() {
		t.Error("dropped channel still has a live process after reload")
	}
	if !second.Alive() {
		t.Error("kept channel was stopped by the reload")
	}
	if _, ok := main.registry.Get(dropped.ID); ok {
		t.Error("dropped channel still in the registry")
	}
	if got := main.supervisor.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestApplyLineupStopsExpiredScheduledChannel(t *testing.T) {
	main := newTestMain(t)

	expired := config.ScheduledChannel{
		Channel: config.Channel{
			ID:     7,
			Name:   "event",
			Custom: &config.CustomCommand{Command: []string{"sleep", "60"}},
		},
		End: time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	}

	main.applyLineup(&config.Channels{
		Channels:  nil,
		Scheduled: []config.ScheduledChannel{expired},
	})
	main.registry.Add(expired.Channel)

	process, _, err := main.supervisor.GetOrStart(expired.Channel, config.Profile{}, "")
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}

	main.applyLineup(&config.Channels{
		Scheduled: []config.ScheduledChannel{expired},
	})

	if process.Alive() {
		t.Error("expired scheduled channel still has a live process after reload")
	}
	if _, ok := main.registry.Get(expired.Channel.ID); ok {
		t.Error("expired scheduled channel still in the registry")
	}
}
