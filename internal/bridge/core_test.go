package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/driver"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/message"
	"github.com/beaconbridge/beacon/internal/model"
	"github.com/beaconbridge/beacon/internal/sanitize"
	"github.com/beaconbridge/beacon/internal/secrets"
	"github.com/beaconbridge/beacon/internal/space"
)

// fakeDriver is a configurable Driver double exercising the Bridge Core's fan-out and age-gate logic.
type fakeDriver struct {
	platform           string
	supportsParallel   bool
	supportsConcurrent bool
	supportsAgeGate    bool
	channels           map[string]model.Channel

	mu       sync.Mutex
	sent     []string // "serverID/channelID"
	edited   []string
	deleted  []string
	failSend bool
	nextID   int
}

func (d *fakeDriver) Platform() string                        { return d.platform }
func (d *fakeDriver) GetUser(string) (model.User, bool)       { return model.User{}, false }
func (d *fakeDriver) GetServer(string) (model.Server, bool)   { return model.Server{}, false }
func (d *fakeDriver) GetChannel(id string) (model.Channel, bool) {
	ch, ok := d.channels[id]
	return ch, ok
}
func (d *fakeDriver) GetWebhook(string) (model.Webhook, bool) { return model.Webhook{}, false }
func (d *fakeDriver) FetchUser(context.Context, string) (model.User, error) {
	return model.User{}, nil
}
func (d *fakeDriver) FetchServer(context.Context, string) (model.Server, error) {
	return model.Server{}, nil
}
func (d *fakeDriver) FetchChannel(context.Context, string) (model.Channel, error) {
	return model.Channel{}, nil
}
func (d *fakeDriver) GetMember(context.Context, model.Server, string) (model.Member, bool, error) {
	return model.Member{}, false, nil
}

func (d *fakeDriver) Send(_ context.Context, dest driver.Destination, _ content.MessageContent, _ driver.SendOptions) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSend {
		return "", false, errors.New("fake send failure")
	}
	d.nextID++
	id := dest.ServerID + "/" + dest.ChannelID + "#" + string(rune('0'+d.nextID))
	d.sent = append(d.sent, dest.ServerID+"/"+dest.ChannelID)
	return id, true, nil
}

func (d *fakeDriver) Edit(_ context.Context, messageID string, _ content.MessageContent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edited = append(d.edited, messageID)
	return nil
}

func (d *fakeDriver) Delete(_ context.Context, messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, messageID)
	return nil
}

func (d *fakeDriver) SanitizeInbound(text string) string  { return text }
func (d *fakeDriver) SanitizeOutbound(text string) string { return text }
func (d *fakeDriver) SupportsParallel() bool              { return d.supportsParallel }
func (d *fakeDriver) SupportsConcurrent() bool            { return d.supportsConcurrent }
func (d *fakeDriver) SupportsAgeGate() bool                { return d.supportsAgeGate }
func (d *fakeDriver) FileCountLimit() int                  { return 10 }
func (d *fakeDriver) GetFilesizeLimit(*model.Server) int64 { return 8 << 20 }

func newTestHandle(t *testing.T) *secrets.Handle {
	t.Helper()
	blobs := secrets.NewMemoryBlobStore()
	ctx := context.Background()
	store, err := secrets.Open(ctx, blobs, "hunter2", secrets.Options{})
	if err != nil {
		t.Fatalf("secrets.Open() error = %v", err)
	}
	return secrets.NewHandle(store, nil, []string{spaceDocumentFile, cacheDocumentFile})
}

func newTestCore(t *testing.T, drivers *driver.Registry) *Core {
	t.Helper()
	spaces := space.NewRegistry()
	filters := filter.NewEngine()
	cache := message.NewMemoryStore(100)
	sanitizer := sanitize.NewPolicy()
	handle := newTestHandle(t)
	log := zerolog.Nop()

	c := NewCore(drivers, spaces, filters, cache, sanitizer, handle, log, true)
	if err := c.LoadData(context.Background()); err != nil {
		t.Fatalf("LoadData() error = %v", err)
	}
	return c
}

func textMessage(text string) *content.MessageContent {
	msg := &content.MessageContent{}
	msg.SetBlock("body", content.NewText(text))
	return msg
}

func TestCoreSendFansOutToEveryMember(t *testing.T) {
	t.Parallel()

	drivers := driver.NewRegistry(nil)
	d := &fakeDriver{platform: "discord"}
	if err := drivers.Register(d); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	c := newTestCore(t, drivers)

	sp := space.New("test-space", space.Options{RelayEdits: true, RelayDeletes: true})
	if _, err := sp.Join("discord", "server-a", "chan-a", "", "", true); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if _, err := sp.Join("discord", "server-b", "chan-b", "", "", true); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	c.spaces.Add(sp)

	author := model.Member{User: model.User{ID: "u1", Platform: "discord"}, Server: model.Server{ID: "server-a", Platform: "discord"}}
	group, err := c.Send(context.Background(), author, sp, textMessage("hello"), "")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(group.AllMessages()) != 2 {
		t.Fatalf("Send() produced %d messages, want 2", len(group.AllMessages()))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sent) != 2 {
		t.Errorf("driver received %d sends, want 2", len(d.sent))
	}
}

func TestCoreSendBlockedByBridgePaused(t *testing.T) {
	t.Parallel()

	drivers := driver.NewRegistry(nil)
	d := &fakeDriver{platform: "discord"}
	if err := drivers.Register(d); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	c := newTestCore(t, drivers)

	sp := space.New("test-space", space.Options{})
	if _, err := sp.Join("discord", "server-a", "chan-a", "", "", true); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	c.spaces.Add(sp)

	c.SetBridgePaused("u1", PausedRule{Inclusive: true, Entries: []PausedEntry{{Prefix: "secret"}}})

	author := model.Member{User: model.User{ID: "u1", Platform: "discord"}, Server: model.Server{ID: "server-a", Platform: "discord"}}
	_, err := c.Send(context.Background(), author, sp, textMessage("secret plans"), "")
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("Send() error = %v, want ErrBlocked", err)
	}

	var blockedErr *BlockedError
	if !errors.As(err, &blockedErr) || blockedErr.Reason != BlockBridgePaused {
		t.Errorf("Send() error = %#v, want BlockBridgePaused", err)
	}
}

func TestCoreSendRejectsAgeGateMismatch(t *testing.T) {
	t.Parallel()

	drivers := driver.NewRegistry(nil)
	d := &fakeDriver{
		platform: "discord",
		channels: map[string]model.Channel{"chan-a": {ID: "chan-a", NSFW: false}},
	}
	if err := drivers.Register(d); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	c := newTestCore(t, drivers)

	sp := space.New("test-space", space.Options{NSFW: true})
	if _, err := sp.Join("discord", "server-a", "chan-a", "", "", true); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	c.spaces.Add(sp)

	author := model.Member{User: model.User{ID: "u1", Platform: "discord"}, Server: model.Server{ID: "server-a", Platform: "discord"}}
	_, err := c.Send(context.Background(), author, sp, textMessage("hi"), "")
	if !errors.Is(err, ErrAgeGateMismatch) {
		t.Fatalf("Send() error = %v, want ErrAgeGateMismatch", err)
	}
}

func TestCoreEditFansOutToEveryMessage(t *testing.T) {
	t.Parallel()

	drivers := driver.NewRegistry(nil)
	d := &fakeDriver{platform: "discord"}
	if err := drivers.Register(d); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	c := newTestCore(t, drivers)

	sp := space.New("test-space", space.Options{})
	if _, err := sp.Join("discord", "server-a", "chan-a", "", "", true); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if _, err := sp.Join("discord", "server-b", "chan-b", "", "", true); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	c.spaces.Add(sp)

	author := model.Member{User: model.User{ID: "u1", Platform: "discord"}, Server: model.Server{ID: "server-a", Platform: "discord"}}
	group, err := c.Send(context.Background(), author, sp, textMessage("hello"), "")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	origin := group.AllMessages()[0]
	if err := c.Edit(context.Background(), origin, *textMessage("hello, edited")); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.edited) != 2 {
		t.Errorf("driver received %d edits, want 2 (edit does not self-skip the origin message)", len(d.edited))
	}
}

func TestCoreDeleteRemovesGroupFromCache(t *testing.T) {
	t.Parallel()

	drivers := driver.NewRegistry(nil)
	d := &fakeDriver{platform: "discord"}
	if err := drivers.Register(d); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	c := newTestCore(t, drivers)

	sp := space.New("test-space", space.Options{})
	if _, err := sp.Join("discord", "server-a", "chan-a", "", "", true); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	c.spaces.Add(sp)

	author := model.Member{User: model.User{ID: "u1", Platform: "discord"}, Server: model.Server{ID: "server-a", Platform: "discord"}}
	group, err := c.Send(context.Background(), author, sp, textMessage("hello"), "")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	origin := group.AllMessages()[0]
	if err := c.Delete(context.Background(), origin); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, ok, _ := c.cache.GetGroup(context.Background(), group.ID); ok {
		t.Error("group still present in cache after Delete()")
	}
}

func TestCoreNotReadyBeforeLoadData(t *testing.T) {
	t.Parallel()

	drivers := driver.NewRegistry(nil)
	spaces := space.NewRegistry()
	filters := filter.NewEngine()
	cache := message.NewMemoryStore(100)
	sanitizer := sanitize.NewPolicy()
	handle := newTestHandle(t)

	c := NewCore(drivers, spaces, filters, cache, sanitizer, handle, zerolog.Nop(), true)
	if c.Ready() {
		t.Error("Ready() = true before LoadData was called")
	}

	author := model.Member{User: model.User{ID: "u1"}}
	sp := space.New("s", space.Options{})
	if _, err := c.Send(context.Background(), author, sp, textMessage("hi"), ""); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Send() before ready error = %v, want ErrNotInitialized", err)
	}
}

func TestCoreSaveDataAndLoadDataRoundTrip(t *testing.T) {
	t.Parallel()

	drivers := driver.NewRegistry(nil)
	c := newTestCore(t, drivers)

	sp := space.New("round-trip", space.Options{Private: true})
	if _, err := sp.Join("discord", "server-a", "chan-a", "", "", true); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	c.spaces.Add(sp)
	c.SetBridgePaused("u1", PausedRule{Inclusive: false, Entries: []PausedEntry{{Prefix: "ok-"}}})

	if err := c.SaveData(context.Background()); err != nil {
		t.Fatalf("SaveData() error = %v", err)
	}

	reloaded := newTestCoreSharedHandle(t, driver.NewRegistry(nil), c.secrets)
	restoredSpace, ok := reloaded.spaces.Get(sp.ID)
	if !ok {
		t.Fatal("reloaded registry missing persisted space")
	}
	if restoredSpace.Name != "round-trip" {
		t.Errorf("restored space name = %q, want %q", restoredSpace.Name, "round-trip")
	}
	if len(restoredSpace.Members()) != 1 {
		t.Errorf("restored space has %d members, want 1", len(restoredSpace.Members()))
	}
	if reloaded.paused.blocked("u1", "not-ok") != true {
		t.Error("restored bridge-paused rule did not block a non-matching message under exclusive mode")
	}
}

// newTestCoreSharedHandle mirrors newTestCore but reuses an already-populated secrets.Handle, to exercise
// LoadData against data a prior Core instance persisted.
func newTestCoreSharedHandle(t *testing.T, drivers *driver.Registry, handle *secrets.Handle) *Core {
	t.Helper()
	spaces := space.NewRegistry()
	filters := filter.NewEngine()
	cache := message.NewMemoryStore(100)
	sanitizer := sanitize.NewPolicy()

	c := NewCore(drivers, spaces, filters, cache, sanitizer, handle, zerolog.Nop(), true)
	if err := c.LoadData(context.Background()); err != nil {
		t.Fatalf("LoadData() error = %v", err)
	}
	return c
}
