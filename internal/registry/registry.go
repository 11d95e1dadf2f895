package registry

import (
	"sort"
	"sync"

	"github.com/amps-media/amps/internal/config"
)

// Registry is the live channel lineup, keyed by channel id. It is mutated by
// the management API and the scheduler while viewer requests read from it, so
// every accessor takes a point-in-time snapshot under the lock.
type Registry struct {
	mu       sync.RWMutex
	channels map[int]config.Channel
}

func New() *Registry {
	return &Registry{
		channels: make(map[int]config.Channel),
	}
}

// Replace swaps the whole lineup, used on configuration (re)load.
func (r *Registry) Replace(channels []config.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels = make(map[int]config.Channel, len(channels))
	for _, ch := range channels {
		r.channels[ch.ID] = ch
	}
}

func (r *Registry) Get(id int) (config.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[id]
	return ch, ok
}

// List returns all channels ordered by id.
func (r *Registry) List() []config.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]config.Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add inserts a channel and reports whether the id was free.
func (r *Registry) Add(ch config.Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[ch.ID]; exists {
		return false
	}
	r.channels[ch.ID] = ch
	return true
}

// Set inserts or overwrites a channel.
func (r *Registry) Set(ch config.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels[ch.ID] = ch
}

// Remove deletes a channel and returns it.
func (r *Registry) Remove(id int) (config.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[id]
	if ok {
		delete(r.channels, id)
	}
	return ch, ok
}

// NextID returns the lowest id above every present channel id.
func (r *Registry) NextID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	next := 1
	for id := range r.channels {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.channels)
}
