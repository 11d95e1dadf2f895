package registry

import (
	"sync"

	"github.com/amps-media/amps/internal/config"
)

// ProfileStore is the read-mostly name to encoding profile mapping. Profiles
// are immutable once loaded; Replace swaps the whole set on reload.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]config.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]config.Profile),
	}
}

func (p *ProfileStore) Replace(profiles map[string]config.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.profiles = make(map[string]config.Profile, len(profiles))
	for name, profile := range profiles {
		p.profiles[name] = profile
	}
}

func (p *ProfileStore) Get(name string) (config.Profile, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	profile, ok := p.profiles[name]
	return profile, ok
}

func (p *ProfileStore) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

func (p *ProfileStore) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.profiles)
}
