package builtin

import (
	"strings"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/model"
)

// inviteSubstrings are the literal markers the original implementation matched; rvlt.gg is matched as a plain
// substring (not word-bounded), the conservative, more-blocking reading the original's observable behavior takes.
var inviteSubstrings = []string{
	"discord.gg/",
	"discord.com/invite/",
	"discordapp.com/invite/",
	"rvlt.gg",
	"fluxer.gg",
}

// Invites blocks plaintext containing an invite link to a known platform.
type Invites struct{}

func NewInvites() Invites { return Invites{} }

func (Invites) ID() string          { return "invites" }
func (Invites) Name() string        { return "Invites" }
func (Invites) Description() string { return "Blocks messages containing an invite link." }
func (Invites) Configs() map[string]filter.ConfigSpec { return nil }

func (Invites) Check(_ model.User, msg content.MessageContent, _ string, _ map[string]any, _ map[string]any) filter.Result {
	text := msg.PlainText()
	for _, sub := range inviteSubstrings {
		if strings.Contains(text, sub) {
			return filter.Result{Blocked: true, ShouldLog: true, ShouldContribute: true}
		}
	}
	return filter.Result{}
}
