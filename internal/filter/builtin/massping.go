package builtin

import (
	"strings"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/model"
)

// Massping blocks plaintext containing an @everyone or @here mass-mention.
type Massping struct{}

func NewMassping() Massping { return Massping{} }

func (Massping) ID() string          { return "massping" }
func (Massping) Name() string        { return "Mass ping" }
func (Massping) Description() string { return "Blocks messages that mass-ping a server." }
func (Massping) Configs() map[string]filter.ConfigSpec { return nil }

var mentionReplacer = strings.NewReplacer("@everyone", "[redacted]", "@here", "[redacted]")

func (Massping) Check(_ model.User, msg content.MessageContent, _ string, _ map[string]any, _ map[string]any) filter.Result {
	text := msg.PlainText()
	if strings.Contains(text, "@everyone") || strings.Contains(text, "@here") {
		safe := mentionReplacer.Replace(text)
		return filter.Result{Blocked: true, ShouldLog: true, ShouldContribute: true, SafeContent: &safe}
	}
	return filter.Result{}
}
