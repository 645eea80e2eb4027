package builtin

import (
	"time"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/model"
)

const slowmodeDefaultSeconds = 0

// Slowmode blocks a message when its author sent another message within config.slowdown seconds of the last one.
// State is persisted per (server, author.id); earlier behavior kept the timestamp under a misnamed key, which broke
// the idempotence invariant every repeated check was expected to hold, so this reads and writes the same
// author.id key on every call.
type Slowmode struct{}

func NewSlowmode() Slowmode { return Slowmode{} }

func (Slowmode) ID() string          { return "slowmode" }
func (Slowmode) Name() string        { return "Slowmode" }
func (Slowmode) Description() string { return "Rate-limits how often one author may send a message." }

func (Slowmode) Configs() map[string]filter.ConfigSpec {
	zero := 0.0
	return map[string]filter.ConfigSpec{
		"slowdown": {Type: filter.ConfigInteger, Min: &zero, Default: slowmodeDefaultSeconds},
	}
}

func (Slowmode) Check(author model.User, _ content.MessageContent, _ string, config map[string]any, data map[string]any) filter.Result {
	slowdown := slowmodeDefaultSeconds
	if v, ok := config["slowdown"]; ok {
		if n, ok := toInt(v); ok {
			slowdown = n
		}
	}

	now := time.Now()
	last := make(map[string]any)
	for k, v := range data {
		last[k] = v
	}

	blocked := false
	if slowdown > 0 {
		if raw, ok := last[author.ID]; ok {
			if unix, ok := toInt64(raw); ok {
				if now.Unix()-unix < int64(slowdown) {
					blocked = true
				}
			}
		}
	}

	if !blocked {
		last[author.ID] = now.Unix()
	}

	return filter.Result{Blocked: blocked, Data: last}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
