// Package builtin implements the nine built-in Filters enumerated in the filter engine's contract table.
package builtin

import (
	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/model"
)

// Bots blocks any message authored by a bot account.
type Bots struct{}

func NewBots() Bots { return Bots{} }

func (Bots) ID() string          { return "bots" }
func (Bots) Name() string        { return "Bots" }
func (Bots) Description() string { return "Blocks messages sent by bot accounts." }
func (Bots) Configs() map[string]filter.ConfigSpec { return nil }

func (Bots) Check(author model.User, _ content.MessageContent, _ string, _ map[string]any, _ map[string]any) filter.Result {
	return filter.Result{Blocked: author.Bot}
}
