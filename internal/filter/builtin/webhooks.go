package builtin

import (
	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/model"
)

// Webhooks blocks any message sent through a webhook rather than directly by a user.
type Webhooks struct{}

func NewWebhooks() Webhooks { return Webhooks{} }

func (Webhooks) ID() string          { return "webhooks" }
func (Webhooks) Name() string        { return "Webhooks" }
func (Webhooks) Description() string { return "Blocks messages sent through a webhook." }
func (Webhooks) Configs() map[string]filter.ConfigSpec { return nil }

func (Webhooks) Check(_ model.User, _ content.MessageContent, webhookID string, _ map[string]any, _ map[string]any) filter.Result {
	return filter.Result{Blocked: webhookID != ""}
}
