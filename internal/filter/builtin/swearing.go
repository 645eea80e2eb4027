package builtin

import (
	"strings"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/filter"
	"github.com/beaconbridge/beacon/internal/model"
)

// defaultDictionary is a small, conservative default word list; deployments needing a fuller dictionary supply one
// via NewSwearingWithDictionary.
var defaultDictionary = []string{
	"fuck",
	"shit",
	"bitch",
	"asshole",
	"bastard",
	"cunt",
}

// Swearing blocks plaintext containing a profane word from its dictionary.
type Swearing struct {
	dictionary []string
}

// NewSwearing returns a Swearing filter using the built-in default word list.
func NewSwearing() Swearing { return Swearing{dictionary: defaultDictionary} }

// NewSwearingWithDictionary returns a Swearing filter using a caller-supplied word list instead of the default.
func NewSwearingWithDictionary(words []string) Swearing { return Swearing{dictionary: words} }

func (Swearing) ID() string          { return "swearing" }
func (Swearing) Name() string        { return "Swearing" }
func (Swearing) Description() string { return "Blocks messages containing profanity." }
func (Swearing) Configs() map[string]filter.ConfigSpec { return nil }

func (s Swearing) Check(_ model.User, msg content.MessageContent, _ string, _ map[string]any, _ map[string]any) filter.Result {
	text := strings.ToLower(msg.PlainText())
	for _, word := range s.dictionary {
		if strings.Contains(text, word) {
			return filter.Result{Blocked: true, ShouldLog: true}
		}
	}
	return filter.Result{}
}
