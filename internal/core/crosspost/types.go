// Package crosspost writes an optional, independent app.bsky.feed.post
// referencing a published check-in. Crossposting is best-effort: its
// failure surfaces as a warning alongside a successful publish, never as a
// publish failure.
package crosspost

// Feed post collection and facet feature type tags.
const (
	CollectionFeedPost = "app.bsky.feed.post"
	featureLinkType    = "app.bsky.richtext.facet#link"
	embedRecordType    = "app.bsky.embed.record"
)

// ByteSlice is a facet range. Offsets index BYTES of the UTF-8 encoded
// post text, not characters - the protocol defines facet ranges this way,
// and character offsets break as soon as the text contains multi-byte
// runes.
type ByteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// LinkFeature is a facet feature marking its range as a hyperlink.
type LinkFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

// Facet is a rich-text annotation over a byte range of the post text.
type Facet struct {
	Index    ByteSlice     `json:"index"`
	Features []LinkFeature `json:"features"`
}
