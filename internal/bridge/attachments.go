package bridge

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/driver"
	"github.com/beaconbridge/beacon/internal/model"
	"github.com/beaconbridge/beacon/internal/space"
)

// imageEncodings maps a file extension to the imaging.Format used to re-encode it after a resize. Anything not
// listed here is never resized, regardless of content.File.Media.
var imageEncodings = map[string]imaging.Format{
	".jpg":  imaging.JPEG,
	".jpeg": imaging.JPEG,
	".png":  imaging.PNG,
	".gif":  imaging.GIF,
	".bmp":  imaging.BMP,
	".tiff": imaging.TIFF,
}

// minResizeWidth is the floor shrinkImage gives up at rather than producing a degenerate thumbnail.
const minResizeWidth = 32

// renderFilesForDestination applies Space.Options.convert_large_files (§3) for a single fan-out destination: a file
// over d's size limit is downsampled if it's an image imaging recognizes, otherwise sent by URL reference instead
// of inline bytes. Destinations disagree on their limit (GetFilesizeLimit(server) may be server-specific), so this
// runs once per destination rather than once per send.
func renderFilesForDestination(sp *space.Space, d driver.Driver, m space.Member, msgContent content.MessageContent) content.MessageContent {
	if !sp.Options.ConvertLargeFiles || len(msgContent.Files) == 0 {
		return msgContent
	}

	var server *model.Server
	if s, ok := d.GetServer(m.ServerID); ok {
		server = &s
	}
	limit := d.GetFilesizeLimit(server)

	rendered := msgContent
	rendered.Files = make([]content.File, len(msgContent.Files))
	for i, f := range msgContent.Files {
		if int64(len(f.Data)) > limit {
			f = convertOversizedFile(f, limit)
		}
		rendered.Files[i] = f
	}
	return rendered
}

// convertOversizedFile handles a single file already known to exceed limit: a recognized image format is
// downsampled until it fits; anything else (or an image shrinkImage couldn't fit) falls back to its URL reference,
// dropping the inline bytes the destination couldn't accept.
func convertOversizedFile(f content.File, limit int64) content.File {
	if format, ok := imageEncodings[strings.ToLower(filepath.Ext(f.Filename))]; ok {
		if shrunk, ok := shrinkImage(f.Data, format, limit); ok {
			f.Data = shrunk
			return f
		}
	}
	if f.URL != "" {
		f.Data = nil
	}
	return f
}

// shrinkImage halves the decoded image's width, re-encoding at each step, until the result fits within limit or
// the width would drop below minResizeWidth. Returns ok=false if data can't be decoded or never fits.
func shrinkImage(data []byte, format imaging.Format, limit int64) ([]byte, bool) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}

	width := img.Bounds().Dx()
	for width >= minResizeWidth {
		resized := imaging.Resize(img, width, 0, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, format); err != nil {
			return nil, false
		}
		if int64(buf.Len()) <= limit {
			return buf.Bytes(), true
		}
		width /= 2
	}
	return nil, false
}
