// Package space implements the Space Registry (component C): the in-memory catalog of Spaces, their memberships,
// invites, and bans, loaded from and persisted through the Encrypted Store.
package space

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for Space membership operations (§7).
var (
	ErrAlreadyJoined = errors.New("space: server already joined")
	ErrNotJoined     = errors.New("space: server is not a member")
	ErrBanned        = errors.New("space: server is banned from this space")
	ErrInvalidInvite = errors.New("space: invite is invalid or expired")
	ErrNoInvite      = errors.New("space: a valid invite is required to join a private space")
)

// Invite is a join token for a private Space (§3). ExpiryUnix of 0 means the invite never expires on its own.
type Invite struct {
	Code       string `json:"code"`
	ExpiryUnix int64  `json:"expiry"`
	MaxUses    int    `json:"max_uses"`
	Uses       int    `json:"uses"`
}

// Expired reports whether the invite can no longer be used, per §3's definition.
func (i Invite) Expired(now time.Time) bool {
	if i.ExpiryUnix != 0 && i.ExpiryUnix <= now.Unix() {
		return true
	}
	return i.MaxUses > 0 && i.Uses >= i.MaxUses
}

// Member is one server's registration into a Space (§3). Partial is set when the registration was created by
// PartialJoin before the server's platform driver was available to resolve server/channel names; a partial member
// carries only ids until reification.
type Member struct {
	Platform   string `json:"platform"`
	ServerID   string `json:"server"`
	ChannelID  string `json:"channel"`
	WebhookID  string `json:"webhook,omitempty"`
	InviteCode string `json:"invite,omitempty"`
	Partial    bool   `json:"-"`
}

// Options holds the per-Space configuration enumerated in §3 and §6.2.
type Options struct {
	Private           bool                      `json:"private"`
	PrivateOwnerID    string                    `json:"private_owner_id,omitempty"`
	NSFW              bool                      `json:"nsfw"`
	RelayDeletes      bool                      `json:"relay_deletes"`
	RelayEdits        bool                      `json:"relay_edits"`
	ConvertLargeFiles bool                      `json:"convert_large_files"`
	Filters           []string                  `json:"filters"`
	FilterConfigs     map[string]map[string]any `json:"filter_configs"`
}

// Space is a logical room spanning one channel per participating server (§3, GLOSSARY).
type Space struct {
	ID      string
	Name    string
	Emoji   string
	Options Options

	mu      sync.Mutex
	members []Member
	invites []Invite
	bans    map[string]bool
}

// New constructs an empty Space with a fresh id.
func New(name string, opts Options) *Space {
	if opts.FilterConfigs == nil {
		opts.FilterConfigs = make(map[string]map[string]any)
	}
	return &Space{
		ID:      uuid.NewString(),
		Name:    name,
		Options: opts,
		bans:    make(map[string]bool),
	}
}

// Members returns a snapshot of the Space's current members.
func (s *Space) Members() []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Member, len(s.members))
	copy(out, s.members)
	return out
}

// Invites returns a snapshot of the Space's current invites.
func (s *Space) Invites() []Invite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Invite, len(s.invites))
	copy(out, s.invites)
	return out
}

// AddInvite registers a new invite, for the (out-of-scope) management surface that creates them.
func (s *Space) AddInvite(inv Invite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites = append(s.invites, inv)
}

// Ban adds serverID to the Space's ban list, removing it from members if currently joined.
func (s *Space) Ban(serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[serverID] = true
	s.removeMemberLocked(serverID)
}

// Unban removes serverID from the Space's ban list.
func (s *Space) Unban(serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bans, serverID)
}

// IsBanned reports whether serverID is on the Space's ban list.
func (s *Space) IsBanned(serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bans[serverID]
}

// GetMember returns the member registered for serverID, if any.
func (s *Space) GetMember(serverID string) (Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMemberLocked(serverID)
}

func (s *Space) getMemberLocked(serverID string) (Member, bool) {
	for _, m := range s.members {
		if m.ServerID == serverID {
			return m, true
		}
	}
	return Member{}, false
}

func (s *Space) removeMemberLocked(serverID string) bool {
	for i, m := range s.members {
		if m.ServerID == serverID {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return true
		}
	}
	return false
}

// Join registers serverID/channelID as a Space member (§4.6). A Space has at most one member per server; joining an
// already-member server raises ErrAlreadyJoined without consuming an invite use (invariant 5). A banned server is
// rejected before the invite check. When the Space is private and force is false, a valid, unexpired invite is
// required and consumes exactly one use.
func (s *Space) Join(platform, serverID, channelID, webhookID, inviteCode string, force bool) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bans[serverID] {
		return Member{}, ErrBanned
	}
	if _, joined := s.getMemberLocked(serverID); joined {
		return Member{}, ErrAlreadyJoined
	}

	usedCode := ""
	if s.Options.Private && !force {
		idx, inv, ok := s.findInviteLocked(inviteCode)
		if !ok {
			if inviteCode == "" {
				return Member{}, ErrNoInvite
			}
			return Member{}, ErrInvalidInvite
		}
		if inv.Expired(time.Now()) {
			s.invites = append(s.invites[:idx], s.invites[idx+1:]...)
			return Member{}, ErrInvalidInvite
		}
		inv.Uses++
		s.invites[idx] = inv
		usedCode = inv.Code
	}

	member := Member{Platform: platform, ServerID: serverID, ChannelID: channelID, WebhookID: webhookID, InviteCode: usedCode}
	s.members = append(s.members, member)
	return member, nil
}

// PartialJoin creates a placeholder member when platform's driver is not yet registered. Reification on driver
// registration is permitted but not required (§4.6).
func (s *Space) PartialJoin(platform, serverID, channelID, webhookID, inviteCode string) Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	member := Member{Platform: platform, ServerID: serverID, ChannelID: channelID, WebhookID: webhookID, InviteCode: inviteCode, Partial: true}
	s.members = append(s.members, member)
	return member
}

// Leave removes serverID's membership. Raises ErrNotJoined if the server is not currently a member (invariant 4).
func (s *Space) Leave(serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.removeMemberLocked(serverID) {
		return ErrNotJoined
	}
	return nil
}

func (s *Space) findInviteLocked(code string) (int, Invite, bool) {
	for i, inv := range s.invites {
		if inv.Code == code {
			return i, inv, true
		}
	}
	return 0, Invite{}, false
}
