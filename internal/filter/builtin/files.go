package builtin

import (
	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/model"
)

// Files blocks any message carrying one or more file attachments.
type Files struct{}

func NewFiles() Files { return Files{} }

func (Files) ID() string          { return "files" }
func (Files) Name() string        { return "Files" }
func (Files) Description() string { return "Blocks messages that carry file attachments." }
func (Files) Configs() map[string]filter.ConfigSpec { return nil }

func (Files) Check(_ model.User, msg content.MessageContent, _ string, _ map[string]any, _ map[string]any) filter.Result {
	return filter.Result{Blocked: len(msg.Files) > 0}
}
