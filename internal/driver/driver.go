// Package driver defines the platform adapter contract (component G) that the bridge core dispatches through, and
// the registry (component D) that tracks which platforms are reserved, registered, and ready.
package driver

import (
	"context"
	"errors"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/model"
)

// ErrPlatformMismatch is returned when a server/member/channel passed into a driver method belongs to a different
// platform than the driver implements.
var ErrPlatformMismatch = errors.New("driver: entity belongs to a different platform")

// Destination names where a Driver should deliver a send.
type Destination struct {
	ServerID  string
	ChannelID string
}

// SendOptions carries the optional parameters of a send (§4.1/§4.2).
type SendOptions struct {
	// SendAs impersonates the given author on platforms that support webhook-style display override.
	SendAs *model.User
	// WebhookID routes the send through a pre-registered webhook rather than the bot's own identity.
	WebhookID string
	// SelfSend marks a send back into the message's channel of origin (used for age-gate or error replies).
	SelfSend bool
}

// Driver is the platform adapter contract (§4.2). Implementations must be safe for concurrent use: the Core may
// invoke Send/Edit/Delete for distinct destinations concurrently.
type Driver interface {
	// Platform returns the immutable platform identifier used as a routing key.
	Platform() string

	// GetUser, GetServer, GetChannel and GetWebhook read from the driver's local cache and never block on network.
	GetUser(id string) (model.User, bool)
	GetServer(id string) (model.Server, bool)
	GetChannel(id string) (model.Channel, bool)
	GetWebhook(id string) (model.Webhook, bool)

	// FetchUser, FetchServer, FetchChannel may block on network and must populate the driver's cache on success.
	FetchUser(ctx context.Context, id string) (model.User, error)
	FetchServer(ctx context.Context, id string) (model.Server, error)
	FetchChannel(ctx context.Context, id string) (model.Channel, error)

	// GetMember returns the member of the given server. It returns ErrPlatformMismatch if server.Platform differs
	// from this driver's platform.
	GetMember(ctx context.Context, server model.Server, memberID string) (model.Member, bool, error)

	// Send delivers content to destination. A nil returned message (ok=false) means the target was unreachable;
	// any other failure is returned as an error.
	Send(ctx context.Context, dest Destination, content content.MessageContent, opts SendOptions) (msgID string, ok bool, err error)

	// Edit idempotently replaces the rendered payload of an already-sent message.
	Edit(ctx context.Context, messageID string, content content.MessageContent) error

	// Delete idempotently removes an already-sent message; missing targets do not error.
	Delete(ctx context.Context, messageID string) error

	// SanitizeInbound escapes platform mentions/pings in text read from this platform before it is relayed
	// elsewhere.
	SanitizeInbound(text string) string

	// SanitizeOutbound resolves neutral mention tokens into this platform's human-readable form before sending.
	SanitizeOutbound(text string) string

	// SupportsParallel, SupportsConcurrent and SupportsAgeGate declare the driver's execution and content
	// capabilities to the Core (§5).
	SupportsParallel() bool
	SupportsConcurrent() bool
	SupportsAgeGate() bool

	// FileCountLimit is the maximum number of file attachments this platform accepts per message.
	FileCountLimit() int

	// GetFilesizeLimit returns the maximum attachment size in bytes for the given server, or the platform default
	// when server is nil.
	GetFilesizeLimit(server *model.Server) int64
}

// BotReplaceable is an optional capability: a driver whose bot handle can be hot-swapped without Core involvement,
// e.g. after a credential rotation (§4.2).
type BotReplaceable interface {
	ReplaceBot(ctx context.Context, newHandle any) error
}
