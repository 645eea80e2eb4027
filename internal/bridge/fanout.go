package bridge

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/driver"
	"github.com/beaconbridge/beacon/internal/message"
	"github.com/beaconbridge/beacon/internal/model"
	"github.com/beaconbridge/beacon/internal/space"
)

// fanOutSend delivers msgContent to every member of sp, dispatched through each member's platform driver, and
// returns the Message record for every destination that accepted it. A destination whose send returns an error is
// logged and skipped; one the driver reports as not sent (ok=false, no error) is skipped without a log entry —
// partial success across platforms is acceptable (§7).
func (c *Core) fanOutSend(ctx context.Context, sp *space.Space, author model.Member, groupID string, msgContent content.MessageContent) []message.Message {
	var (
		mu      sync.Mutex
		results []message.Message
	)

	record := func(d driver.Driver, m space.Member, msgID string) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, message.Message{
			ID:               msgID,
			Platform:         d.Platform(),
			AuthorID:         author.ID,
			ServerID:         m.ServerID,
			ChannelID:        m.ChannelID,
			HasContent:       true,
			AttachmentsCount: len(msgContent.Files),
			WebhookID:        m.WebhookID,
			GroupID:          groupID,
		})
	}

	send := func(d driver.Driver, m space.Member) {
		dest := driver.Destination{ServerID: m.ServerID, ChannelID: m.ChannelID}
		opts := driver.SendOptions{SendAs: &author.User, WebhookID: m.WebhookID}
		rendered := renderFilesForDestination(sp, d, m, msgContent)
		msgID, ok, err := d.Send(ctx, dest, rendered, opts)
		if err != nil {
			c.log.Warn().Err(err).Str("platform", d.Platform()).Str("server_id", m.ServerID).Msg("fan-out send failed")
			return
		}
		if !ok {
			return
		}
		record(d, m, msgID)
	}

	for _, d := range c.drivers.All() {
		members := membersForPlatform(sp, d.Platform())
		if len(members) == 0 {
			continue
		}

		if !c.enableMulti || (!d.SupportsParallel() && !d.SupportsConcurrent()) {
			for _, m := range members {
				send(d, m)
			}
			continue
		}

		g, _ := errgroup.WithContext(ctx)
		if !d.SupportsParallel() {
			g.SetLimit(1)
		}
		for _, m := range members {
			m := m
			g.Go(func() error {
				send(d, m)
				return nil
			})
		}
		_ = g.Wait()
	}

	return results
}

func membersForPlatform(sp *space.Space, platform string) []space.Member {
	var out []space.Member
	for _, m := range sp.Members() {
		if m.Platform == platform && !m.Partial {
			out = append(out, m)
		}
	}
	return out
}

// fanOutEdit calls Edit on every driver responsible for a message in group, per §4.1.
func (c *Core) fanOutEdit(ctx context.Context, group message.MessageGroup, msgContent content.MessageContent) {
	var wg sync.WaitGroup
	for _, m := range group.AllMessages() {
		m := m
		d, ok := c.drivers.Get(m.Platform)
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Edit(ctx, m.ID, msgContent); err != nil {
				c.log.Warn().Err(err).Str("platform", m.Platform).Str("message_id", m.ID).Msg("fan-out edit failed")
			}
		}()
	}
	wg.Wait()
}

// fanOutDelete calls Delete on every driver responsible for a message in group, excluding excludeMessageID (the
// origin message, already deleted on its own platform).
func (c *Core) fanOutDelete(ctx context.Context, group message.MessageGroup, excludeMessageID string) {
	var wg sync.WaitGroup
	for _, m := range group.AllMessages() {
		if m.ID == excludeMessageID {
			continue
		}
		m := m
		d, ok := c.drivers.Get(m.Platform)
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Delete(ctx, m.ID); err != nil {
				c.log.Warn().Err(err).Str("platform", m.Platform).Str("message_id", m.ID).Msg("fan-out delete failed")
			}
		}()
	}
	wg.Wait()
}
