// Package message implements the Message Cache (component B): a bounded store of individual cross-platform
// messages and the groups that own them, the bridge core's only persisted memory of what it has already sent.
package message

import (
	"context"
	"errors"
)

// Sentinel errors for the message package.
var (
	ErrNotFound = errors.New("message: not found")
)

// Message is one concrete sent message on one platform (§3). Content is frequently absent: the cache prefers to
// minimize on-disk payload and only a Message's bookkeeping fields are needed for edit/delete fan-out.
type Message struct {
	ID               string
	Platform         string
	AuthorID         string
	ServerID         string
	ChannelID        string
	HasContent       bool
	AttachmentsCount int
	Replies          []string
	WebhookID        string

	// GroupID is the reverse pointer a Message carries to its owning MessageGroup (§9 "Cyclic references"):
	// groups own the forward map, messages carry only the id.
	GroupID string
}

// MessageGroup is the canonical cross-platform identity of a single bridged message (§3). Exactly one group is
// emitted per successful bridge call.
type MessageGroup struct {
	ID       string
	AuthorID string
	SpaceID  string
	Messages map[string][]Message // keyed by platform id
	Replies  []string
}

// AllMessages flattens Messages across every platform, for callers that need "every message in this group"
// (edit/delete fan-out) rather than a per-platform view.
func (g MessageGroup) AllMessages() []Message {
	var all []Message
	for _, msgs := range g.Messages {
		all = append(all, msgs...)
	}
	return all
}

// Snapshot is the persisted shape of a Store, handed to the Encrypted Store by the caller (the Store itself has no
// encryption or blob-storage knowledge).
type Snapshot struct {
	Messages []Message
	Groups   []MessageGroup
}

// Store is the Message Cache's storage contract. Implementations bound both maps independently at a configured
// cache_limit, evicting the oldest insertion on overflow (§4.5, invariant 7).
type Store interface {
	AddMessage(ctx context.Context, msg Message) error
	AddGroup(ctx context.Context, group MessageGroup) error
	GetMessage(ctx context.Context, id string) (Message, bool, error)
	GetGroup(ctx context.Context, id string) (MessageGroup, bool, error)
	// GetGroupFromMessage resolves a message id to its owning group. The reference implementation does this via
	// the message's stored GroupID rather than the spec's linear scan, an acceptable tightening (§9 permits a
	// secondary index).
	GetGroupFromMessage(ctx context.Context, msgID string) (MessageGroup, bool, error)
	RemoveGroup(ctx context.Context, id string) error
	Snapshot(ctx context.Context) (Snapshot, error)
	Restore(ctx context.Context, snap Snapshot) error
}
