package crosspost

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// maxPostGraphemes is the feed's post length limit, counted in grapheme
// clusters the way the feed counts it.
const maxPostGraphemes = 300

// linkFacet builds a link facet over the first occurrence of substr in
// text. strings.Index returns a byte offset into the UTF-8 encoded string,
// which is exactly the unit facet ranges use, so no conversion happens -
// converting to rune or grapheme counts here is the classic bug.
func linkFacet(text, substr, uri string) (*Facet, error) {
	if substr == "" {
		return nil, fmt.Errorf("link substring is empty")
	}
	start := strings.Index(text, substr)
	if start < 0 {
		return nil, fmt.Errorf("link substring %q not found in post text", substr)
	}
	return &Facet{
		Index: ByteSlice{
			ByteStart: start,
			ByteEnd:   start + len(substr),
		},
		Features: []LinkFeature{{
			Type: featureLinkType,
			URI:  uri,
		}},
	}, nil
}

// validatePostText enforces the feed's grapheme-cluster length limit.
func validatePostText(text string) error {
	if text == "" {
		return fmt.Errorf("post text is empty")
	}
	if count := uniseg.GraphemeClusterCount(text); count > maxPostGraphemes {
		return fmt.Errorf("post text is %d graphemes, limit is %d", count, maxPostGraphemes)
	}
	return nil
}
