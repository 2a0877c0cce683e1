package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrWong99/saidwhen/internal/ingest"
)

// DefaultLanguage is the caption language picked when none is configured.
const DefaultLanguage = "en"

type playerResponse struct {
	Captions *struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated
	Name         struct {
		SimpleText string `json:"simpleText"`
		Runs       []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"name"`
}

func (t captionTrack) label() string {
	if t.Name.SimpleText != "" {
		return t.Name.SimpleText
	}
	var b strings.Builder
	for _, r := range t.Name.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// needsPoToken reports whether a track can only be fetched by a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// Captions finds and downloads caption tracks. It implements
// ingest.CaptionSource.
type Captions struct {
	client   *Client
	language string
}

// NewCaptions returns a caption source preferring tracks in language.
func NewCaptions(c *Client, language string) *Captions {
	if language == "" {
		language = DefaultLanguage
	}
	return &Captions{client: c, language: language}
}

// Lookup reads the caption track list from the watch page of videoID and
// picks a track: a manual track in the preferred language, then an
// auto-generated one, then any track of the same base language.
func (c *Captions) Lookup(ctx context.Context, videoID string) (ingest.Track, error) {
	page, err := c.client.getPage(ctx, "/watch", url.Values{"v": {videoID}})
	if err != nil {
		return ingest.Track{}, fmt.Errorf("youtube: watch page %q: %w", videoID, err)
	}
	data := embeddedJSON(page, "ytInitialPlayerResponse")
	if data == nil {
		return ingest.Track{}, fmt.Errorf("%w: no player response for %q", ingest.ErrNoCaptions, videoID)
	}

	var pr playerResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return ingest.Track{}, fmt.Errorf("youtube: decode player response %q: %w", videoID, err)
	}
	if pr.Captions == nil || len(pr.Captions.Renderer.CaptionTracks) == 0 {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Reason != "" {
			return ingest.Track{}, fmt.Errorf("%w: %s", ingest.ErrNoCaptions, pr.PlayabilityStatus.Reason)
		}
		return ingest.Track{}, fmt.Errorf("%w: %q", ingest.ErrNoCaptions, videoID)
	}

	t, ok := pickTrack(pr.Captions.Renderer.CaptionTracks, c.language)
	if !ok {
		return ingest.Track{}, fmt.Errorf("%w: no fetchable %q track for %q", ingest.ErrNoCaptions, c.language, videoID)
	}
	return ingest.Track{
		VideoID:   videoID,
		Language:  t.LanguageCode,
		Name:      t.label(),
		URL:       t.BaseURL,
		Generated: t.Kind == "asr",
	}, nil
}

// Fetch downloads t as WebVTT. It does not retry.
func (c *Captions) Fetch(ctx context.Context, t ingest.Track) ([]byte, error) {
	u, err := c.vttURL(t.URL)
	if err != nil {
		return nil, fmt.Errorf("youtube: caption url of %q: %w", t.VideoID, err)
	}
	payload, err := c.client.fetch(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("youtube: captions of %q: %w", t.VideoID, err)
	}
	return payload, nil
}

// vttURL resolves a track URL against the base URL and asks for WebVTT.
func (c *Captions) vttURL(raw string) (string, error) {
	base, err := url.Parse(c.client.baseURL + "/")
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u := base.ResolveReference(ref)
	q := u.Query()
	q.Set("fmt", "vtt")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// pickTrack skips PoToken-only tracks and prefers manual captions in lang
// over auto-generated ones, falling back to any track whose language shares
// the base tag (e.g. "en-GB" for "en").
func pickTrack(tracks []captionTrack, lang string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	for _, t := range usable {
		if t.LanguageCode == lang && t.Kind != "asr" {
			return t, true
		}
	}
	for _, t := range usable {
		if t.LanguageCode == lang {
			return t, true
		}
	}
	base, _, _ := strings.Cut(lang, "-")
	for _, t := range usable {
		if tb, _, _ := strings.Cut(t.LanguageCode, "-"); tb == base {
			return t, true
		}
	}
	return captionTrack{}, false
}
