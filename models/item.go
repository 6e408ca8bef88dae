package models

import "time"

// MediaKind classifies what a media item is.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// MediaItem is one playable media unit pulled from a channel.
// Items are immutable once constructed; a poll replaces the whole
// snapshot, it never mutates items in place.
type MediaItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Channel      string    `json:"channel"`
	URL          string    `json:"url"`
	VideoURL     string    `json:"videoUrl,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Kind         MediaKind `json:"kind"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ChannelResult is one channel's fetch outcome. A failed fetch carries an
// empty item list and a human-readable error; it never aborts the batch.
type ChannelResult struct {
	Channel string      `json:"channel"`
	Items   []MediaItem `json:"items"`
	Err     string      `json:"error,omitempty"`
}

// Failed reports whether this channel's fetch ended in an error.
func (r ChannelResult) Failed() bool {
	return r.Err != ""
}

// PlaylistSnapshot is the flattened, ordered set of items currently
// eligible for display, plus per-channel warnings from the poll that
// produced it.
type PlaylistSnapshot struct {
	Items    []MediaItem `json:"items"`
	Warnings []string    `json:"warnings,omitempty"`
	// AllFailed is true when every channel errored and no items are
	// available; callers surface a blocking "nothing available" state.
	AllFailed bool      `json:"allFailed"`
	FetchedAt time.Time `json:"fetchedAt"`
}
