package space

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a Registry lookup misses.
var ErrNotFound = errors.New("space: not found")

// Registry is the process-wide catalog of Spaces (component C), keyed by Space.ID.
type Registry struct {
	mu     sync.RWMutex
	spaces map[string]*Space
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{spaces: make(map[string]*Space)}
}

// Add registers a Space, overwriting any existing entry with the same id.
func (r *Registry) Add(sp *Space) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spaces[sp.ID] = sp
}

// Get returns the Space with the given id.
func (r *Registry) Get(id string) (*Space, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sp, ok := r.spaces[id]
	return sp, ok
}

// Delete removes a Space from the registry.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.spaces, id)
}

// All returns a snapshot slice of every registered Space.
func (r *Registry) All() []*Space {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Space, 0, len(r.spaces))
	for _, sp := range r.spaces {
		out = append(out, sp)
	}
	return out
}

// GetSpaceForChannel scans every registered Space's members for one whose ServerID/ChannelID pair matches, returning
// the first Space found. A Space has at most one channel per server, so at most one match is possible per server.
func (r *Registry) GetSpaceForChannel(serverID, channelID string) (*Space, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sp := range r.spaces {
		for _, m := range sp.Members() {
			if m.ServerID == serverID && m.ChannelID == channelID {
				return sp, true
			}
		}
	}
	return nil, false
}

// document is the JSON shape persisted through the Encrypted Store (§6.2).
type document struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Emoji   string   `json:"emoji"`
	Options Options  `json:"options"`
	Members []Member `json:"members"`
	Invites []Invite `json:"invites"`
	Bans    []string `json:"bans"`
}

// ToDict serializes every registered Space into the persisted document shape.
func (r *Registry) ToDict() map[string]any {
	r.mu.RLock()
	spaces := make([]*Space, 0, len(r.spaces))
	for _, sp := range r.spaces {
		spaces = append(spaces, sp)
	}
	r.mu.RUnlock()

	out := make(map[string]any, len(spaces))
	for _, sp := range spaces {
		sp.mu.Lock()
		bans := make([]string, 0, len(sp.bans))
		for id := range sp.bans {
			bans = append(bans, id)
		}
		doc := document{
			ID:      sp.ID,
			Name:    sp.Name,
			Emoji:   sp.Emoji,
			Options: sp.Options,
			Members: append([]Member(nil), sp.members...),
			Invites: append([]Invite(nil), sp.invites...),
			Bans:    bans,
		}
		sp.mu.Unlock()
		out[sp.ID] = doc
	}
	return out
}

// FromDocument reconstructs a Space from its persisted document form.
func FromDocument(id, name, emoji string, opts Options, members []Member, invites []Invite, bans []string) *Space {
	sp := &Space{
		ID:      id,
		Name:    name,
		Emoji:   emoji,
		Options: opts,
		members: append([]Member(nil), members...),
		invites: append([]Invite(nil), invites...),
		bans:    make(map[string]bool, len(bans)),
	}
	for _, b := range bans {
		sp.bans[b] = true
	}
	return sp
}
