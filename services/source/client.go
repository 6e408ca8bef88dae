package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slideflow/models"
)

const (
	// requestTimeout bounds a single channel fetch; a hang becomes a
	// per-channel error instead of stalling the poll.
	requestTimeout = 10 * time.Second

	// listingLimit is the recent-window size requested per channel.
	listingLimit = 25
)

// Client fetches channel listings from the content provider. All failures
// are converted to in-band ChannelResult errors; FetchChannel never
// returns a Go error to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient creates a content source client against the given API base URL.
func NewClient(baseURL, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
	}
}

// listingResponse mirrors the provider's nested listing shape.
type listingResponse struct {
	Data struct {
		Children []struct {
			Data postData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Subreddit         string  `json:"subreddit"`
	URL               string  `json:"url"`
	Thumbnail         string  `json:"thumbnail"`
	PostHint          string  `json:"post_hint"`
	IsVideo           bool    `json:"is_video"`
	CreatedUTC        float64 `json:"created_utc"`
	RemovedByCategory string  `json:"removed_by_category"`
	Author            string  `json:"author"`
	Media             struct {
		Video struct {
			FallbackURL string `json:"fallback_url"`
		} `json:"reddit_video"`
	} `json:"media"`
}

// FetchChannel retrieves the recent top listing for one channel. Transport,
// authorization, and shape failures land in ChannelResult.Err as
// human-readable text so one bad channel never aborts a batch.
func (c *Client) FetchChannel(ctx context.Context, channel, credential string) models.ChannelResult {
	result := models.ChannelResult{Channel: channel}

	channel = strings.TrimSpace(channel)
	if channel == "" {
		result.Err = "channel name is empty"
		return result
	}

	endpoint := fmt.Sprintf("%s/r/%s/top.json?t=week&limit=%d&raw_json=1",
		c.baseURL, url.PathEscape(channel), listingLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		result.Err = fmt.Sprintf("build request: %v", err)
		return result
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Err = fmt.Sprintf("fetch failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		result.Err = "unauthorized: credential rejected"
		return result
	case resp.StatusCode == http.StatusForbidden:
		result.Err = "forbidden: channel is private or quarantined"
		return result
	case resp.StatusCode == http.StatusNotFound:
		result.Err = "channel not found"
		return result
	case resp.StatusCode != http.StatusOK:
		result.Err = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return result
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		result.Err = "unexpected response from content source"
		return result
	}

	items := make([]models.MediaItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		item, ok := normalizePost(child.Data)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	result.Items = items
	return result
}

// normalizePost maps one provider post to a MediaItem. Removed posts and
// posts without recognizable image/video content are dropped.
func normalizePost(p postData) (models.MediaItem, bool) {
	if p.RemovedByCategory != "" || p.Author == "[deleted]" {
		return models.MediaItem{}, false
	}

	kind, ok := classify(p)
	if !ok {
		return models.MediaItem{}, false
	}

	item := models.MediaItem{
		ID:        p.ID,
		Title:     p.Title,
		Channel:   p.Subreddit,
		URL:       p.URL,
		Kind:      kind,
		CreatedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
	}
	if kind == models.MediaKindVideo && p.Media.Video.FallbackURL != "" {
		item.VideoURL = p.Media.Video.FallbackURL
	}
	// Provider uses placeholder words ("self", "default", "nsfw") where no
	// real thumbnail exists.
	if strings.HasPrefix(p.Thumbnail, "http") {
		item.ThumbnailURL = p.Thumbnail
	}
	return item, true
}

// classify determines media kind from explicit type hints first, falling
// back to filename-extension matching on the display URL.
func classify(p postData) (models.MediaKind, bool) {
	if p.IsVideo || p.PostHint == "hosted:video" || p.PostHint == "rich:video" {
		return models.MediaKindVideo, true
	}
	if p.PostHint == "image" {
		return models.MediaKindImage, true
	}

	lower := strings.ToLower(p.URL)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			return models.MediaKindImage, true
		}
	}
	for _, ext := range []string{".mp4", ".webm"} {
		if strings.HasSuffix(lower, ext) {
			return models.MediaKindVideo, true
		}
	}
	return "", false
}
