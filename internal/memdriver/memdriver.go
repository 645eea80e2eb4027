// Package memdriver is a minimal in-process driver.Driver implementation with no external transport: every entity
// lives in maps guarded by a mutex, and Send/Edit/Delete append to an in-memory log instead of calling out to a real
// platform. It exists for this repository's own tests and for local smoke-running a bridge without live platform
// credentials; it is not meant to back a production deployment.
package memdriver

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/driver"
	"github.com/beaconbridge/beacon/internal/model"
	"github.com/beaconbridge/beacon/internal/sanitize"
)

// Sent records one accepted Send call, kept for assertions in tests that exercise a Driver end to end.
type Sent struct {
	ID      string
	Dest    driver.Destination
	Content content.MessageContent
	Opts    driver.SendOptions
}

// Driver is the in-memory reference implementation of driver.Driver (§4.2).
type Driver struct {
	platform  string
	sanitizer *sanitize.Policy

	supportsParallel   bool
	supportsConcurrent bool
	supportsAgeGate    bool
	fileCountLimit     int
	filesizeLimit      int64

	mu       sync.Mutex
	users    map[string]model.User
	servers  map[string]model.Server
	channels map[string]model.Channel
	webhooks map[string]model.Webhook
	members  map[string]model.Member // keyed by serverID + "/" + userID

	nextID  atomic.Int64
	sent    []Sent
	edited  []string
	deleted []string
}

// Options configures New. Zero values are valid: a Driver with every Supports* flag false runs the Core's
// sequential fan-out path.
type Options struct {
	SupportsParallel   bool
	SupportsConcurrent bool
	SupportsAgeGate    bool
	FileCountLimit     int   // defaults to 10 if zero
	FilesizeLimit      int64 // defaults to 8MiB if zero
}

// New constructs an empty Driver for platform, backed by sanitizer for its SanitizeInbound hook.
func New(platform string, sanitizer *sanitize.Policy, opts Options) *Driver {
	if opts.FileCountLimit == 0 {
		opts.FileCountLimit = 10
	}
	if opts.FilesizeLimit == 0 {
		opts.FilesizeLimit = 8 << 20
	}
	return &Driver{
		platform:           platform,
		sanitizer:          sanitizer,
		supportsParallel:   opts.SupportsParallel,
		supportsConcurrent: opts.SupportsConcurrent,
		supportsAgeGate:    opts.SupportsAgeGate,
		fileCountLimit:     opts.FileCountLimit,
		filesizeLimit:      opts.FilesizeLimit,
		users:              make(map[string]model.User),
		servers:            make(map[string]model.Server),
		channels:           make(map[string]model.Channel),
		webhooks:           make(map[string]model.Webhook),
		members:            make(map[string]model.Member),
	}
}

// Seed* methods populate the driver's cache directly, standing in for the fetch_* calls a real driver would make
// against a live platform API.

func (d *Driver) SeedUser(u model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u.Platform = d.platform
	d.users[u.ID] = u
}

func (d *Driver) SeedServer(s model.Server) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s.Platform = d.platform
	d.servers[s.ID] = s
}

func (d *Driver) SeedChannel(c model.Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c.Platform = d.platform
	d.channels[c.ID] = c
}

func (d *Driver) SeedWebhook(w model.Webhook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w.Platform = d.platform
	d.webhooks[w.ID] = w
}

func (d *Driver) SeedMember(serverID string, u model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u.Platform = d.platform
	d.members[serverID+"/"+u.ID] = u2member(u, d.servers[serverID])
}

func u2member(u model.User, s model.Server) model.Member {
	return model.Member{User: u, Server: s}
}

// Log returns a snapshot of every Send this driver has accepted, for test assertions.
func (d *Driver) Log() []Sent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Sent, len(d.sent))
	copy(out, d.sent)
	return out
}

// EditLog and DeleteLog return the message ids this driver has been asked to edit/delete, for test assertions.
func (d *Driver) EditLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.edited))
	copy(out, d.edited)
	return out
}

func (d *Driver) DeleteLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.deleted))
	copy(out, d.deleted)
	return out
}

func (d *Driver) Platform() string { return d.platform }

func (d *Driver) GetUser(id string) (model.User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	return u, ok
}

func (d *Driver) GetServer(id string) (model.Server, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.servers[id]
	return s, ok
}

func (d *Driver) GetChannel(id string) (model.Channel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.channels[id]
	return c, ok
}

func (d *Driver) GetWebhook(id string) (model.Webhook, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.webhooks[id]
	return w, ok
}

// FetchUser, FetchServer, FetchChannel never touch the network; they just return whatever has already been seeded,
// failing if nothing has.
func (d *Driver) FetchUser(_ context.Context, id string) (model.User, error) {
	if u, ok := d.GetUser(id); ok {
		return u, nil
	}
	return model.User{}, fmt.Errorf("memdriver: user %q not seeded", id)
}

func (d *Driver) FetchServer(_ context.Context, id string) (model.Server, error) {
	if s, ok := d.GetServer(id); ok {
		return s, nil
	}
	return model.Server{}, fmt.Errorf("memdriver: server %q not seeded", id)
}

func (d *Driver) FetchChannel(_ context.Context, id string) (model.Channel, error) {
	if c, ok := d.GetChannel(id); ok {
		return c, nil
	}
	return model.Channel{}, fmt.Errorf("memdriver: channel %q not seeded", id)
}

func (d *Driver) GetMember(_ context.Context, server model.Server, memberID string) (model.Member, bool, error) {
	if server.Platform != d.platform {
		return model.Member{}, false, driver.ErrPlatformMismatch
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[server.ID+"/"+memberID]
	return m, ok, nil
}

// Send implements the origin-channel self-skip rule (§4.1): a destination matching the content's original channel,
// with self_send false, fabricates a Message carrying the origin id instead of emitting a second copy.
func (d *Driver) Send(_ context.Context, dest driver.Destination, c content.MessageContent, opts driver.SendOptions) (string, bool, error) {
	if !opts.SelfSend && dest.ChannelID == c.OriginalChannelID {
		return c.OriginalID, true, nil
	}

	rendered := c
	rendered.BlockKeys = append([]string(nil), c.BlockKeys...)
	rendered.Blocks = make(map[string]content.ContentBlock, len(c.Blocks))
	for k, b := range c.Blocks {
		if b.Tag == content.BlockText {
			b.Text = d.SanitizeInbound(b.Text)
		}
		rendered.Blocks[k] = b
	}

	id := strconv.FormatInt(d.nextID.Add(1), 10)

	d.mu.Lock()
	d.sent = append(d.sent, Sent{ID: id, Dest: dest, Content: rendered, Opts: opts})
	d.mu.Unlock()

	return id, true, nil
}

func (d *Driver) Edit(_ context.Context, messageID string, _ content.MessageContent) error {
	d.mu.Lock()
	d.edited = append(d.edited, messageID)
	d.mu.Unlock()
	return nil
}

func (d *Driver) Delete(_ context.Context, messageID string) error {
	d.mu.Lock()
	d.deleted = append(d.deleted, messageID)
	d.mu.Unlock()
	return nil
}

// SanitizeInbound strips HTML-like markup via the shared bluemonday policy, then inserts a zero-width space after
// every '@' so a relayed mention token cannot be re-interpreted as a live mention inside this platform.
func (d *Driver) SanitizeInbound(text string) string {
	clean := text
	if d.sanitizer != nil {
		clean = d.sanitizer.Clean(text)
	}
	return escapeMentions(clean)
}

// SanitizeOutbound is the identity transform: this reference driver has no platform-specific mention-token format
// to resolve.
func (d *Driver) SanitizeOutbound(text string) string { return text }

const zeroWidthSpace = '​'

func escapeMentions(text string) string {
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if r == '@' {
			out = append(out, '@', zeroWidthSpace)
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func (d *Driver) SupportsParallel() bool   { return d.supportsParallel }
func (d *Driver) SupportsConcurrent() bool { return d.supportsConcurrent }
func (d *Driver) SupportsAgeGate() bool    { return d.supportsAgeGate }
func (d *Driver) FileCountLimit() int      { return d.fileCountLimit }

func (d *Driver) GetFilesizeLimit(server *model.Server) int64 {
	if server != nil && server.FilesizeLimit != nil {
		return *server.FilesizeLimit
	}
	return d.filesizeLimit
}
