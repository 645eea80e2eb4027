package builtin

import (
	"regexp"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/model"
)

var urlPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s]+`)

// Links blocks plaintext containing any http(s) URL.
type Links struct{}

func NewLinks() Links { return Links{} }

func (Links) ID() string          { return "links" }
func (Links) Name() string        { return "Links" }
func (Links) Description() string { return "Blocks messages containing a URL." }
func (Links) Configs() map[string]filter.ConfigSpec { return nil }

func (Links) Check(_ model.User, msg content.MessageContent, _ string, _ map[string]any, _ map[string]any) filter.Result {
	if urlPattern.MatchString(msg.PlainText()) {
		return filter.Result{Blocked: true, ShouldLog: true}
	}
	return filter.Result{}
}
