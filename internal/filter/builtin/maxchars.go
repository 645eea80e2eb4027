package builtin

import (
	"unicode/utf8"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/model"
)

const (
	maxCharsDefault = 2000
	maxCharsFloor   = 0
	maxCharsCeiling = 2000
)

// Maxchars blocks plaintext longer than a configurable limit (default and ceiling 2000, per-server configurable
// down to 0).
type Maxchars struct{}

func NewMaxchars() Maxchars { return Maxchars{} }

func (Maxchars) ID() string   { return "maxchars" }
func (Maxchars) Name() string { return "Max characters" }
func (Maxchars) Description() string {
	return "Blocks messages whose plaintext exceeds a per-server character limit."
}

func (Maxchars) Configs() map[string]filter.ConfigSpec {
	floor := float64(maxCharsFloor)
	ceiling := float64(maxCharsCeiling)
	return map[string]filter.ConfigSpec{
		"limit": {Type: filter.ConfigInteger, Min: &floor, Max: &ceiling, Default: maxCharsDefault},
	}
}

func (Maxchars) Check(_ model.User, msg content.MessageContent, _ string, config map[string]any, _ map[string]any) filter.Result {
	limit := maxCharsDefault
	if v, ok := config["limit"]; ok {
		if n, ok := toInt(v); ok {
			limit = n
		}
	}
	if limit < maxCharsFloor {
		limit = maxCharsFloor
	}
	if limit > maxCharsCeiling {
		limit = maxCharsCeiling
	}

	if utf8.RuneCountInString(msg.PlainText()) > limit {
		return filter.Result{Blocked: true, ShouldLog: true}
	}
	return filter.Result{}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
