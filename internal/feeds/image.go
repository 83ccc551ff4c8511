package feeds

import (
	"strings"

	"github.com/mmcdole/gofeed"
)

// ImageURL picks a lead image for a feed item.
// Priority: media:content > media:thumbnail > enclosure. Only values with an
// http(s) scheme are accepted; an empty string means no image.
func ImageURL(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, ext := range media[name] {
				if u := strings.TrimSpace(ext.Attrs["url"]); isHTTP(u) {
					return u
				}
			}
		}
	}

	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if u := strings.TrimSpace(enc.URL); isHTTP(u) {
			return u
		}
	}

	return ""
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "http")
}
