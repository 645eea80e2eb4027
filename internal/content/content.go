// Package content defines the neutral message payload the bridge core passes between drivers: a tagged sum type of
// content blocks, attached files, and the origin-message envelope that carries them through a single fan-out call.
package content

import "time"

// Block is the tag identifying a ContentBlock's concrete shape. Drivers dispatch on the tag and must silently skip
// kinds they do not understand, since future block kinds may be added without notice.
type Block int

const (
	BlockText Block = iota
	BlockEmbed
)

// EmbedAuthor is the small-print author line shown above an embed's title.
type EmbedAuthor struct {
	Name    string
	URL     string
	IconURL string
}

// EmbedFooter is the small-print line shown below an embed's fields.
type EmbedFooter struct {
	Text    string
	IconURL string
}

// EmbedField is one name/value pair rendered in an embed's field list.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is the rich-content block kind: a title/description/fields card, analogous to a Discord embed but carried
// platform-neutrally until a driver renders it.
type Embed struct {
	Title       string
	Description string
	URL         string
	Color       int32
	Timestamp   *time.Time
	Author      *EmbedAuthor
	Footer      *EmbedFooter
	Thumbnail   string // image URL
	Media       string // image URL, rendered large
	Fields      []EmbedField
}

// ContentBlock is a tagged sum type: exactly one of Text or Embed is populated, selected by Tag. Prefer this to an
// interface hierarchy so drivers can switch on Tag instead of type-asserting.
type ContentBlock struct {
	Tag   Block
	Text  string
	Embed *Embed
}

// NewText builds a Text content block.
func NewText(text string) ContentBlock {
	return ContentBlock{Tag: BlockText, Text: text}
}

// NewEmbed builds an Embed content block.
func NewEmbed(e Embed) ContentBlock {
	return ContentBlock{Tag: BlockEmbed, Embed: &e}
}

// File is an attachment owned by the MessageContent that carries it; dropped after fan-out completes.
type File struct {
	Data    []byte
	Filename string
	URL     string // reference URL, used in place of Data when the attachment exceeds a destination's size limit
	Media   bool   // true for images/video the driver may render inline
	Spoiler bool
}

// MessageContent is the origin message as seen by the core: an ordered set of content blocks, attached files, and
// whatever reply bookkeeping the origin platform supplied. A MessageContent is consumed once per send; the filter
// engine may substitute Text blocks in place before fan-out begins, but nothing mutates it afterward.
type MessageContent struct {
	OriginalID        string
	OriginalChannelID string

	// Blocks preserves insertion order; keys let the filter engine replace a block in place without disturbing
	// adjacent blocks.
	BlockKeys []string
	Blocks    map[string]ContentBlock

	Files []File

	// Replies references other MessageGroups this message replies to, plus the per-group preview text and
	// attachment count a driver can render without resolving the full reply chain.
	Replies           []string
	ReplyContent      map[string]string
	ReplyAttachments  map[string]int
}

// OrderedBlocks returns the content blocks in insertion order.
func (c *MessageContent) OrderedBlocks() []ContentBlock {
	blocks := make([]ContentBlock, 0, len(c.BlockKeys))
	for _, k := range c.BlockKeys {
		if b, ok := c.Blocks[k]; ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// SetBlock inserts or replaces the block stored under key, preserving its position if key already existed.
func (c *MessageContent) SetBlock(key string, block ContentBlock) {
	if c.Blocks == nil {
		c.Blocks = make(map[string]ContentBlock)
	}
	if _, exists := c.Blocks[key]; !exists {
		c.BlockKeys = append(c.BlockKeys, key)
	}
	c.Blocks[key] = block
}

// ReplaceTextBlocks removes every Text block from the content and inserts a single Text block under key, used by the
// filter engine's safe_content substitution path. Embed blocks are left untouched.
func (c *MessageContent) ReplaceTextBlocks(key, text string) {
	kept := c.BlockKeys[:0]
	for _, k := range c.BlockKeys {
		if c.Blocks[k].Tag == BlockText {
			delete(c.Blocks, k)
			continue
		}
		kept = append(kept, k)
	}
	c.BlockKeys = kept
	c.SetBlock(key, NewText(text))
}

// PlainText concatenates every Text block's content, in order, separated by newlines. Filters operate on this
// flattened view rather than walking blocks themselves.
func (c *MessageContent) PlainText() string {
	var out string
	first := true
	for _, b := range c.OrderedBlocks() {
		if b.Tag != BlockText {
			continue
		}
		if !first {
			out += "\n"
		}
		out += b.Text
		first = false
	}
	return out
}
