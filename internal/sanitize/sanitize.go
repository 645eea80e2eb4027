// Package sanitize backs the Bridge Core's shared Text-block pass and the reference driver's SanitizeInbound hook
// (§4.2): plaintext passed between platforms is run through a strict HTML policy so one platform's renderer cannot
// interpret markup injected via another platform's text. The reference driver's SanitizeOutbound does not use it.
package sanitize

import "github.com/microcosm-cc/bluemonday"

// Policy wraps a bluemonday strict policy, safe for concurrent use across every registered Driver.
type Policy struct {
	p *bluemonday.Policy
}

// NewPolicy returns a Policy built on bluemonday.StrictPolicy, which strips all HTML-like markup.
func NewPolicy() *Policy {
	return &Policy{p: bluemonday.StrictPolicy()}
}

// Clean strips any HTML-like markup from text. The remaining text is HTML-escaped, so characters such as '&', '<',
// '>' and quotes come back as entities; text without such characters is returned unchanged.
func (s *Policy) Clean(text string) string {
	return s.p.Sanitize(text)
}
