package filter

import (
	"errors"
	"sync"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/model"
)

// ErrUnknownFilter is returned when a caller references a filter id the Engine does not hold.
var ErrUnknownFilter = errors.New("filter: unknown filter id")

// Engine is the Filter Engine (component E): an ordered registry of Filters plus their per-server persisted state.
type Engine struct {
	mu      sync.Mutex
	order   []string
	filters map[string]Filter
	state   map[string]map[string]map[string]any // filter id -> server id -> data
}

// NewEngine returns an empty Engine.
func NewEngine() *Engine {
	return &Engine{
		filters: make(map[string]Filter),
		state:   make(map[string]map[string]map[string]any),
	}
}

// Register adds a Filter, appending it to evaluation order. Registering the same id again replaces the Filter but
// keeps its position and persisted state.
func (e *Engine) Register(f Filter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.filters[f.ID()]; !exists {
		e.order = append(e.order, f.ID())
	}
	e.filters[f.ID()] = f
}

// Get returns the Filter registered under id.
func (e *Engine) Get(id string) (Filter, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.filters[id]
	return f, ok
}

// Evaluation is one filter's outcome within a Run, retained for logging (§9's "platform", "space_id", "filter_id"
// structured fields).
type Evaluation struct {
	FilterID string
	Result   Result
}

// Run evaluates enabled filters in registration order against one message for one server, mutating msg in place
// when a blocking filter supplies substitute content (§4.1 point 2). enabled names the Space's active filters (§3
// Space.options.filters); configs supplies per-filter configuration for that Space.
//
// A filter that blocks without SafeContent stops the pipeline immediately (blocked=true, FilterBlocked). A filter
// that blocks with SafeContent replaces every Text block in msg with a single block carrying that text and the
// pipeline continues evaluating the remaining filters against the substituted content. Filters that do not block
// never affect msg.
func (e *Engine) Run(author model.User, msg *content.MessageContent, webhookID, serverID string, enabled []string, configs map[string]map[string]any) (blocked bool, evaluations []Evaluation) {
	e.mu.Lock()
	order := make([]string, len(e.order))
	copy(order, e.order)
	enabledSet := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		enabledSet[id] = true
	}
	e.mu.Unlock()

	for _, id := range order {
		if !enabledSet[id] {
			continue
		}

		e.mu.Lock()
		f, ok := e.filters[id]
		var prevData map[string]any
		if ok {
			if byServer, exists := e.state[id]; exists {
				prevData = byServer[serverID]
			}
		}
		e.mu.Unlock()
		if !ok {
			continue
		}

		result := f.Check(author, *msg, webhookID, configs[id], prevData)
		evaluations = append(evaluations, Evaluation{FilterID: id, Result: result})

		if result.Data != nil {
			e.mu.Lock()
			if e.state[id] == nil {
				e.state[id] = make(map[string]map[string]any)
			}
			e.state[id][serverID] = result.Data
			e.mu.Unlock()
		}

		if result.Blocked {
			if result.SafeContent == nil {
				return true, evaluations
			}
			msg.ReplaceTextBlocks("filtered_block", *result.SafeContent)
		}
	}

	return false, evaluations
}
