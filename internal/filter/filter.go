// Package filter implements the Filter Engine (component E): an ordered pipeline of content predicates consulted
// by the bridge core before a message is relayed into a Space.
package filter

import (
	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/model"
)

// ConfigType is the declared type of a Filter's configuration key.
type ConfigType int

const (
	ConfigString ConfigType = iota
	ConfigInteger
	ConfigFloat
	ConfigBoolean
)

// ConfigSpec describes one configuration key a Filter accepts, with optional numeric bounds.
type ConfigSpec struct {
	Type    ConfigType
	Min     *float64
	Max     *float64
	Default any
}

// Result is the outcome of a single Filter.Check call.
type Result struct {
	// Blocked reports whether the message should not be relayed.
	Blocked bool
	// ShouldLog reports whether the block (or near-miss) is worth surfacing to operators.
	ShouldLog bool
	// ShouldContribute reports whether the filter wants its check result folded into the aggregate eligibility
	// decision even when it did not itself block (used by filters that only ever advise, never block alone).
	ShouldContribute bool
	// Data is persisted by the engine under (filter id, server id) and passed back in on the next Check.
	Data map[string]any
	// SafeContent, when set on a Blocked result, is substituted for the message's Text blocks instead of blocking
	// outright; the engine continues the pipeline against the substituted content.
	SafeContent *string
}

// Filter is a pure content predicate (§4.4); the only state it may carry across calls is returned via Result.Data
// and handed back in by the engine, keyed per (filter, server).
type Filter interface {
	ID() string
	Name() string
	Description() string
	// Configs declares the filter's configuration keys and their types/bounds/defaults.
	Configs() map[string]ConfigSpec
	// Check evaluates one message. webhookID is empty when the message did not originate from a webhook. data is
	// the filter's persisted state for this server from the previous call (nil on the first call).
	Check(author model.User, msg content.MessageContent, webhookID string, config map[string]any, data map[string]any) Result
}
