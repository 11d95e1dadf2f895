package scheduler

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/amps-media/amps/internal/config"
	"github.com/amps-media/amps/internal/registry"
	"github.com/amps-media/amps/internal/transcoder"
)

// naive layouts assumed to be UTC
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Controller drives time-windowed channels through Pending, Active and
// Expired. Each scheduled channel uses at most two one-shot timers, stored
// under derived ids so a reload replaces a pending timer instead of
// double-scheduling it.
type Controller struct {
	logger     zerolog.Logger
	registry   *registry.Registry
	supervisor *transcoder.Supervisor

	mu     sync.Mutex
	timers map[string]*time.Timer
	static map[int]struct{}
}

func New(reg *registry.Registry, supervisor *transcoder.Supervisor) *Controller {
	return &Controller{
		logger:     log.With().Str("module", "scheduler").Logger(),
		registry:   reg,
		supervisor: supervisor,
		timers:     make(map[string]*time.Timer),
		static:     make(map[int]struct{}),
	}
}

// Load arms the controller for a configuration load. Previously pending
// timers are dropped first, so reloading supersedes rather than stacks.
// One malformed entry is skipped and logged without aborting the rest.
func (c *Controller) Load(static []config.Channel, scheduled []config.ScheduledChannel) {
	c.cancelAll()

	c.mu.Lock()
	c.static = make(map[int]struct{}, len(static))
	for _, ch := range static {
		c.static[ch.ID] = struct{}{}
	}
	c.mu.Unlock()

	now := time.Now().UTC()

	for _, entry := range scheduled {
		c.load(entry, now)
	}
}

func (c *Controller) load(entry config.ScheduledChannel, now time.Time) {
	logger := c.logger.With().Int("channel", entry.ID).Str("name", entry.Name).Logger()

	if entry.ID <= 0 {
		logger.Warn().Msg("scheduled channel has no id, skipping")
		return
	}

	if c.isStatic(entry.ID) {
		// static definitions always win
		logger.Warn().Msg("scheduled channel collides with a static channel, skipping")
		return
	}

	start, hasStart, ok := c.parseInstant(entry.Start, logger)
	if !ok {
		return
	}
	end, hasEnd, ok := c.parseInstant(entry.End, logger)
	if !ok {
		return
	}

	if hasStart && hasEnd && !end.After(start) {
		logger.Warn().
			Time("start", start).
			Time("end", end).
			Msg("scheduled channel ends before it starts, skipping")
		return
	}

	channel := entry.Channel

	if hasEnd && !end.After(now) {
		logger.Info().Time("end", end).Msg("scheduled channel already expired")
		c.Deactivate(channel.ID)
		return
	}

	if !hasStart || !start.After(now) {
		c.Activate(channel.ID, channel)
	} else {
		logger.Info().Time("start", start).Msg("scheduled channel pending")
		c.schedule(timerID("start", channel.ID), start.Sub(now), func() {
			c.Activate(channel.ID, channel)
		})
	}

	if hasEnd {
		c.schedule(timerID("end", channel.ID), end.Sub(now), func() {
			c.Deactivate(channel.ID)
		})
	}
}

// Activate adds the channel to the registry. It is idempotent: a timer
// firing after the id appeared through another path changes nothing.
func (c *Controller) Activate(id int, channel config.Channel) {
	if c.isStatic(id) {
		c.logger.Warn().Int("channel", id).Msg("refusing to activate over a static channel")
		return
	}

	if !c.registry.Add(channel) {
		c.logger.Info().Int("channel", id).Msg("channel already active")
		return
	}

	c.logger.Info().Int("channel", id).Str("name", channel.Name).Msg("channel activated")
}

// Deactivate removes the channel from the registry and stops every variant
// process. Absent ids are a no-op.
func (c *Controller) Deactivate(id int) {
	if _, ok := c.registry.Remove(id); !ok {
		return
	}

	c.supervisor.Stop(id, "")
	c.logger.Info().Int("channel", id).Msg("channel deactivated")
}

// Shutdown drops all pending timers.
func (c *Controller) Shutdown() {
	c.cancelAll()
}

func (c *Controller) isStatic(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.static[id]
	return ok
}

// schedule arms a one-shot timer under the given id, replacing any timer
// already armed under it.
func (c *Controller) schedule(id string, d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[id]; ok {
		t.Stop()
	}
	c.timers[id] = time.AfterFunc(d, fn)
}

func (c *Controller) cancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

// parseInstant parses a schedule boundary as a UTC instant. A timestamp
// without zone information is assumed UTC with a warning. The third return
// is false when the value is present but unparseable.
func (c *Controller) parseInstant(value string, logger zerolog.Logger) (time.Time, bool, bool) {
	if value == "" {
		return time.Time{}, false, true
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true, true
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			logger.Warn().Str("timestamp", value).Msg("timestamp has no timezone, assuming UTC")
			return t, true, true
		}
	}

	logger.Warn().Str("timestamp", value).Msg("unparseable timestamp, skipping channel")
	return time.Time{}, false, false
}

func timerID(kind string, id int) string {
	return kind + ":" + strconv.Itoa(id)
}
