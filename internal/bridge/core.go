// Package bridge implements the Bridge Core (component F): the orchestrator that checks eligibility, fans a
// message out across platform drivers, assembles the resulting MessageGroup, and persists state through the
// Encrypted Store.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
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

const (
	spaceDocumentFile = "spaces"
	cacheDocumentFile = "cache"
)

// Core is the Bridge Core (component F). Construct with NewCore at boot with every injected collaborator; there is
// exactly one Core per process (§9 "process-wide state").
type Core struct {
	drivers   *driver.Registry
	spaces    *space.Registry
	filters   *filter.Engine
	cache     message.Store
	sanitizer *sanitize.Policy
	secrets   *secrets.Handle
	log       zerolog.Logger

	enableMulti bool

	paused *pausedState

	ready atomic.Bool
}

// NewCore constructs a Core from its collaborators. It is not ready until LoadData completes and the driver
// registry reports no outstanding reservations (§4.1 "Initialization").
func NewCore(drivers *driver.Registry, spaces *space.Registry, filters *filter.Engine, cache message.Store, sanitizer *sanitize.Policy, secretsHandle *secrets.Handle, log zerolog.Logger, enableMulti bool) *Core {
	c := &Core{
		drivers:     drivers,
		spaces:      spaces,
		filters:     filters,
		cache:       cache,
		sanitizer:   sanitizer,
		secrets:     secretsHandle,
		log:         log,
		enableMulti: enableMulti,
		paused:      newPausedState(),
	}
	return c
}

// Ready reports whether LoadData has completed and the driver registry has no reservations outstanding.
func (c *Core) Ready() bool {
	return c.ready.Load() && c.drivers.Ready()
}

// LoadData reads the persisted Space document and rebuilds the Space Registry and bridge-paused state. If the
// driver registry still has reservations outstanding, it registers a setup callback that marks the Core ready and
// returns immediately without waiting for it; callers that need to know when the Core is ready poll Ready().
func (c *Core) LoadData(ctx context.Context) error {
	raw, err := c.secrets.ReadJSON(ctx, spaceDocumentFile)
	if err != nil {
		return fmt.Errorf("load space document: %w", err)
	}

	doc, err := decodeSpacesDocument(raw)
	if err != nil {
		return fmt.Errorf("decode space document: %w", err)
	}

	for id, entry := range doc.Spaces {
		sp := space.FromDocument(id, entry.Name, entry.Emoji, entry.Options, entry.Members, entry.Invites, entry.Bans)
		c.spaces.Add(sp)
	}
	for userID, rule := range doc.Raw.BridgePaused {
		c.paused.set(userID, rule)
	}

	cacheRaw, err := c.secrets.ReadJSON(ctx, cacheDocumentFile)
	if err != nil {
		return fmt.Errorf("load cache document: %w", err)
	}
	if len(cacheRaw) > 0 {
		snap, err := decodeCacheSnapshot(cacheRaw)
		if err != nil {
			return fmt.Errorf("decode cache document: %w", err)
		}
		if err := c.cache.Restore(ctx, snap); err != nil {
			return fmt.Errorf("restore cache: %w", err)
		}
	}

	if c.drivers.Ready() {
		c.ready.Store(true)
		return nil
	}

	c.drivers.SetSetupCallback(func() {
		c.ready.Store(true)
	})
	return nil
}

// SaveData persists the current Space Registry, bridge-paused state, and Message Cache contents to the Encrypted
// Store, each under its own document (§6.2 "Cache groups and per-message records persist through a separate
// document").
func (c *Core) SaveData(ctx context.Context) error {
	out := map[string]any{
		"spaces": c.spaces.ToDict(),
		"raw":    rawSection{BridgePaused: c.paused.snapshot()},
	}
	asMap, err := reencodeAsMap(out)
	if err != nil {
		return fmt.Errorf("encode space document: %w", err)
	}
	if err := c.secrets.SaveJSON(ctx, spaceDocumentFile, asMap); err != nil {
		return err
	}

	snap, err := c.cache.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot cache: %w", err)
	}
	cacheMap, err := reencodeAsMap(snap)
	if err != nil {
		return fmt.Errorf("encode cache document: %w", err)
	}
	return c.secrets.SaveJSON(ctx, cacheDocumentFile, cacheMap)
}

func reencodeAsMap(v any) (map[string]any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var asMap map[string]any
	if err := json.Unmarshal(encoded, &asMap); err != nil {
		return nil, err
	}
	return asMap, nil
}

func decodeCacheSnapshot(raw map[string]any) (message.Snapshot, error) {
	var snap message.Snapshot
	encoded, err := json.Marshal(raw)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(encoded, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// SetBridgePaused installs or replaces userID's bridge-paused rule.
func (c *Core) SetBridgePaused(userID string, rule PausedRule) {
	c.paused.set(userID, rule)
}

// ClearBridgePaused removes userID's bridge-paused rule, if any.
func (c *Core) ClearBridgePaused(userID string) {
	c.paused.clear(userID)
}

// CanSend is the pure eligibility predicate (§4.1): it never mutates content or the cache. skipFilter lets ingress
// paths prefilter cheaply; the authoritative check still runs inside Send.
func (c *Core) CanSend(author model.Member, sp *space.Space, msgContent content.MessageContent, webhookID string, skipFilter bool) error {
	if !c.Ready() {
		return ErrNotInitialized
	}
	if c.paused.blocked(author.ID, msgContent.PlainText()) {
		return &BlockedError{Reason: BlockBridgePaused}
	}
	if skipFilter {
		return nil
	}

	// The pipeline may replace Text blocks in place, so it runs on a copy that shares no map or slice with the caller.
	probe := msgContent
	probe.BlockKeys = append([]string(nil), msgContent.BlockKeys...)
	probe.Blocks = make(map[string]content.ContentBlock, len(msgContent.Blocks))
	for k, b := range msgContent.Blocks {
		probe.Blocks[k] = b
	}
	blocked, _ := c.filters.Run(author.User, &probe, webhookID, author.Server.ID, sp.Options.Filters, sp.Options.FilterConfigs)
	if blocked {
		return &BlockedError{Reason: BlockFilterBlocked}
	}
	return nil
}

// Send runs the eligibility algorithm, fans msgContent out to every Space member, assembles and caches the
// resulting MessageGroup, and persists state. msgContent may be mutated in place by the filter pipeline's
// safe_content substitution (§4.1).
func (c *Core) Send(ctx context.Context, author model.Member, sp *space.Space, msgContent *content.MessageContent, webhookID string) (*message.MessageGroup, error) {
	if !c.Ready() {
		return nil, ErrNotInitialized
	}

	if err := c.checkAgeGate(author, sp); err != nil {
		return nil, err
	}

	if c.paused.blocked(author.ID, msgContent.PlainText()) {
		return nil, &BlockedError{Reason: BlockBridgePaused}
	}

	blocked, _ := c.filters.Run(author.User, msgContent, webhookID, author.Server.ID, sp.Options.Filters, sp.Options.FilterConfigs)
	if blocked {
		return nil, &BlockedError{Reason: BlockFilterBlocked}
	}

	c.sanitizeTextBlocks(msgContent)

	groupID := uuid.NewString()
	sent := c.fanOutSend(ctx, sp, author, groupID, *msgContent)

	group := message.MessageGroup{
		ID:       groupID,
		AuthorID: author.ID,
		SpaceID:  sp.ID,
		Messages: make(map[string][]message.Message),
		Replies:  msgContent.Replies,
	}
	for _, m := range sent {
		group.Messages[m.Platform] = append(group.Messages[m.Platform], m)
		if err := c.cache.AddMessage(ctx, m); err != nil {
			c.log.Warn().Err(err).Str("message_id", m.ID).Msg("failed to cache fanned-out message")
		}
	}
	if err := c.cache.AddGroup(ctx, group); err != nil {
		c.log.Warn().Err(err).Str("group_id", group.ID).Msg("failed to cache message group")
	}
	if err := c.SaveData(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist state after send")
	}

	return &group, nil
}

// sanitizeTextBlocks runs every Text block through the shared bluemonday baseline (§4.2) before the per-destination
// driver hooks run their own platform-specific mention escaping in fanOutSend.
func (c *Core) sanitizeTextBlocks(msgContent *content.MessageContent) {
	for _, k := range msgContent.BlockKeys {
		b, ok := msgContent.Blocks[k]
		if !ok || b.Tag != content.BlockText {
			continue
		}
		b.Text = c.sanitizer.Clean(b.Text)
		msgContent.Blocks[k] = b
	}
}

func (c *Core) checkAgeGate(author model.Member, sp *space.Space) error {
	originMember, ok := sp.GetMember(author.Server.ID)
	if !ok {
		return nil
	}
	d, ok := c.drivers.Get(author.Platform)
	if !ok {
		return nil
	}

	if sp.Options.NSFW && !d.SupportsAgeGate() {
		return &AgeGateMismatchError{SpaceNSFW: sp.Options.NSFW, MissingAgeGate: true}
	}

	ch, ok := d.GetChannel(originMember.ChannelID)
	if ok && ch.NSFW != sp.Options.NSFW {
		return &AgeGateMismatchError{ChannelNSFW: ch.NSFW, SpaceNSFW: sp.Options.NSFW}
	}
	return nil
}

// Edit looks up message's group in the cache and fans an edit out to every platform. No-op if the group is absent.
func (c *Core) Edit(ctx context.Context, msg message.Message, msgContent content.MessageContent) error {
	if !c.Ready() {
		return ErrNotInitialized
	}
	group, ok, err := c.cache.GetGroupFromMessage(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("look up message group: %w", err)
	}
	if !ok {
		return nil
	}
	c.fanOutEdit(ctx, group, msgContent)
	return nil
}

// Delete fans a delete out to every platform's message in the group except msg itself, then removes the group from
// cache and persists. No-op if the group is absent.
func (c *Core) Delete(ctx context.Context, msg message.Message) error {
	if !c.Ready() {
		return ErrNotInitialized
	}
	group, ok, err := c.cache.GetGroupFromMessage(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("look up message group: %w", err)
	}
	if !ok {
		return nil
	}

	c.fanOutDelete(ctx, group, msg.ID)

	if err := c.cache.RemoveGroup(ctx, group.ID); err != nil {
		return fmt.Errorf("remove message group: %w", err)
	}
	if err := c.SaveData(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist state after delete")
	}
	return nil
}

// spacesDocument mirrors the persisted Space document shape (§6.2), for decoding the Encrypted Store's JSON blob
// back into typed values.
type spacesDocument struct {
	Spaces map[string]spaceEntry `json:"spaces"`
	Raw    rawSection            `json:"raw"`
}

type spaceEntry struct {
	Name    string         `json:"name"`
	Emoji   string         `json:"emoji"`
	Members []space.Member `json:"members"`
	Invites []space.Invite `json:"invites"`
	Bans    []string       `json:"bans"`
	Options space.Options  `json:"options"`
}

type rawSection struct {
	BridgePaused map[string]PausedRule `json:"bridge_paused"`
}

func decodeSpacesDocument(raw map[string]any) (spacesDocument, error) {
	var doc spacesDocument
	if len(raw) == 0 {
		doc.Spaces = make(map[string]spaceEntry)
		doc.Raw.BridgePaused = make(map[string]PausedRule)
		return doc, nil
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return doc, err
	}
	if doc.Spaces == nil {
		doc.Spaces = make(map[string]spaceEntry)
	}
	if doc.Raw.BridgePaused == nil {
		doc.Raw.BridgePaused = make(map[string]PausedRule)
	}
	return doc, nil
}
