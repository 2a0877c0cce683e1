package youtube

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"regexp"
)

// maxBrowsePages stops a listing whose continuation tokens never run out.
const maxBrowsePages = 1000

var (
	videoIDRE      = regexp.MustCompile(`"videoRenderer":\{"videoId":"([A-Za-z0-9_-]+)"`)
	continuationRE = regexp.MustCompile(`"continuationCommand":\{"token":"([^"]+)"`)
)

// errNoInitialData is returned when a channel page carries no ytInitialData,
// usually because the channel id does not exist.
var errNoInitialData = errors.New("youtube: ytInitialData not found in channel page")

// Lister enumerates the uploads of a channel. It implements
// ingest.VideoLister.
type Lister struct {
	client *Client
}

// NewLister returns a Lister that sends its requests through c.
func NewLister(c *Client) *Lister {
	return &Lister{client: c}
}

// Videos yields the id of every upload of channelID, newest first, each
// once. The first page is the channel's videos tab; further pages come from
// the browse endpoint until no continuation token is left.
func (l *Lister) Videos(ctx context.Context, channelID string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		page, err := l.client.getPage(ctx, "/channel/"+url.PathEscape(channelID)+"/videos", nil)
		if err != nil {
			yield("", fmt.Errorf("youtube: channel page %q: %w", channelID, err))
			return
		}
		data := embeddedJSON(page, "ytInitialData")
		if data == nil {
			yield("", fmt.Errorf("%w: %q", errNoInitialData, channelID))
			return
		}

		seen := make(map[string]struct{})
		tokens := make(map[string]struct{})
		for range maxBrowsePages {
			for _, m := range videoIDRE.FindAllSubmatch(data, -1) {
				id := string(m[1])
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				if !yield(id, nil) {
					return
				}
			}

			token := lastContinuation(data)
			if token == "" {
				return
			}
			if _, again := tokens[token]; again {
				return
			}
			tokens[token] = struct{}{}

			data, err = l.client.postInnertube(ctx, "browse", map[string]any{
				"context":      webContext(),
				"continuation": token,
			})
			if err != nil {
				yield("", fmt.Errorf("youtube: browse %q: %w", channelID, err))
				return
			}
		}
	}
}

func lastContinuation(data []byte) string {
	all := continuationRE.FindAllSubmatch(data, -1)
	if len(all) == 0 {
		return ""
	}
	return string(all[len(all)-1][1])
}
