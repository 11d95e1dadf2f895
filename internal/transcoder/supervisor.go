package transcoder

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"os/exec"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/amps-media/amps/internal/config"
	"github.com/amps-media/amps/internal/utils"
)

// DefaultVariant is the shared process slot of a channel.
const DefaultVariant = "default"

// Key identifies one supervised process slot.
type Key struct {
	Channel int
	Variant string
}

func NewKey(channelID int, variant string) Key {
	if variant == "" {
		variant = DefaultVariant
	}
	return Key{Channel: channelID, Variant: variant}
}

// PrivateVariant derives a tag for a process exclusive to one viewer
// session. The monotonic suffix guarantees it never collides with the shared
// slot or another session.
func PrivateVariant(base string) string {
	if base == "" {
		base = DefaultVariant
	}
	return fmt.Sprintf("%s-%d", base, time.Now().UnixNano())
}

type entry struct {
	mu      sync.Mutex
	process *Process
}

// Options configure a Supervisor.
type Options struct {
	FFmpegBinary string
	OutputDir    string
	GracePeriod  time.Duration
	Resolver     MediaResolver
}

// Supervisor owns the registry of live transcoder processes, one per key.
// It is constructed per server lifetime and passed by reference; tests build
// their own instance for isolation.
type Supervisor struct {
	logger       zerolog.Logger
	ffmpegLogger zerolog.Logger

	mu      sync.Mutex
	entries map[Key]*entry

	binary    string
	outputDir string
	grace     time.Duration
	resolver  MediaResolver

	cleanupOnce sync.Once
}

func New(opts Options) *Supervisor {
	binary := opts.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}

	grace := opts.GracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}

	return &Supervisor{
		logger:       log.With().Str("module", "transcoder").Logger(),
		ffmpegLogger: log.With().Str("module", "ffmpeg").Logger(),
		entries:      make(map[Key]*entry),
		binary:       binary,
		outputDir:    opts.OutputDir,
		grace:        grace,
		resolver:     opts.Resolver,
	}
}

// GetOrStart returns the live process for (channel, variant), spawning one
// when the slot is empty or its previous occupant has died. Concurrent
// callers for the same key serialize on the slot lock, so exactly one
// process ever exists per key.
func (s *Supervisor) GetOrStart(effective config.Channel, profile config.Profile, variant string) (*Process, string, error) {
	key := NewKey(effective.ID, variant)

	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			e = &entry{}
			s.entries[key] = e
		}
		s.mu.Unlock()

		e.mu.Lock()

		// a concurrent Stop may have dropped the slot after it was picked
		// up; spawning into the orphaned entry would leak a process no
		// Stop can ever reach
		s.mu.Lock()
		current := s.entries[key] == e
		s.mu.Unlock()
		if !current {
			e.mu.Unlock()
			continue
		}

		if e.process != nil && e.process.Alive() {
			process := e.process
			e.mu.Unlock()
			s.logger.Debug().
				Int("channel", key.Channel).
				Str("variant", key.Variant).
				Int("pid", process.PID()).
				Msg("reusing live process")
			return process, key.Variant, nil
		}

		process, err := s.start(effective, profile, key)
		if err != nil {
			e.process = nil
			e.mu.Unlock()
			return nil, key.Variant, err
		}

		e.process = process
		e.mu.Unlock()
		return process, key.Variant, nil
	}
}

func (s *Supervisor) start(effective config.Channel, profile config.Profile, key Key) (*Process, error) {
	var cmd *exec.Cmd

	inv, err := ResolveCustom(effective)
	if err != nil {
		return nil, err
	}

	if inv != nil {
		if inv.ShellCommand != "" {
			cmd = exec.Command("/bin/sh", "-c", inv.ShellCommand)
		} else {
			if len(inv.Args) == 0 {
				return nil, fmt.Errorf("%w: custom command is empty", ErrConfiguration)
			}
			cmd = exec.Command(inv.Args[0], inv.Args[1:]...)
		}
		cmd.Env = inv.Env
		cmd.Dir = inv.Dir
	} else {
		input, err := ResolveInput(effective, s.resolver, s.logger)
		if err != nil {
			return nil, err
		}

		output, err := PlanOutput(profile, key.Channel, key.Variant, s.outputDir)
		if err != nil {
			return nil, err
		}

		cmd = exec.Command(s.binary, BuildArgs(input, output)...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	// own process group, so children die with the transcoder
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to spawn transcoder: %w", err)
	}

	process := &Process{
		key:    key,
		cmd:    cmd,
		stdout: stdout,
		done:   make(chan struct{}),
	}

	logger := s.ffmpegLogger.With().
		Int("channel", key.Channel).
		Str("variant", key.Variant).
		Logger()

	go utils.ForwardLines(stderr, logger)

	go func() {
		process.waitErr = cmd.Wait()
		close(process.done)

		if process.waitErr != nil {
			s.logger.Warn().
				Err(process.waitErr).
				Int("channel", key.Channel).
				Str("variant", key.Variant).
				Msg("process exited")
		} else {
			s.logger.Info().
				Int("channel", key.Channel).
				Str("variant", key.Variant).
				Msg("process exited cleanly")
		}
	}()

	s.logger.Info().
		Int("channel", key.Channel).
		Str("variant", key.Variant).
		Int("pid", process.PID()).
		Msg("process started")

	return process, nil
}

// Stop removes every matching key from the registry, then terminates the
// removed processes. Removal happens first so a concurrent GetOrStart can
// never observe a half-stopped slot: it simply creates a fresh one.
// An empty variant matches every variant of the channel.
func (s *Supervisor) Stop(channelID int, variant string) {
	s.mu.Lock()
	var removed []*entry
	for key, e := range s.entries {
		if key.Channel != channelID {
			continue
		}
		if variant != "" && key.Variant != variant {
			continue
		}
		delete(s.entries, key)
		removed = append(removed, e)
	}
	s.mu.Unlock()

	for _, e := range removed {
		e.mu.Lock()
		process := e.process
		e.process = nil
		e.mu.Unlock()

		if process == nil || !process.Alive() {
			continue
		}

		s.terminate(process)
	}
}

func (s *Supervisor) terminate(process *Process) {
	logger := s.logger.With().
		Int("channel", process.key.Channel).
		Str("variant", process.key.Variant).
		Int("pid", process.PID()).
		Logger()

	logger.Info().Msg("terminating process")

	if err := process.terminate(); err != nil {
		logger.Warn().Err(err).Msg("unable to signal process")
	}

	select {
	case <-process.Done():
		logger.Info().Msg("process stopped")
	case <-time.After(s.grace):
		logger.Warn().Dur("grace", s.grace).Msg("process did not exit in time, killing")
		if err := process.kill(); err != nil {
			logger.Warn().Err(err).Msg("unable to kill process")
		}
		<-process.Done()
	}
}

// CleanupAll stops every channel currently present. Repeated calls, for
// example from stacked shutdown signals, run the sweep once.
func (s *Supervisor) CleanupAll() {
	s.cleanupOnce.Do(func() {
		s.logger.Info().Msg("stopping all processes")

		s.mu.Lock()
		ids := make(map[int]struct{}, len(s.entries))
		for key := range s.entries {
			ids[key.Channel] = struct{}{}
		}
		s.mu.Unlock()

		for id := range ids {
			s.Stop(id, "")
		}

		s.logger.Info().Msg("cleanup complete")
	})
}

// Count returns the number of live processes, for metrics.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	count := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.process != nil && e.process.Alive() {
			count++
		}
		e.mu.Unlock()
	}
	return count
}
