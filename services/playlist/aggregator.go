package playlist

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"slideflow/models"
)

// Flatten concatenates channel results into one ordered item list:
// channel-declaration order first, then item order within each channel.
// No sorting, no deduplication.
func Flatten(results []models.ChannelResult) []models.MediaItem {
	total := 0
	for _, r := range results {
		total += len(r.Items)
	}
	items := make([]models.MediaItem, 0, total)
	for _, r := range results {
		items = append(items, r.Items...)
	}
	return items
}

var titleCaser = cases.Title(language.English)

// ChannelLabel renders a channel name for user-facing warnings.
func ChannelLabel(channel string) string {
	return titleCaser.String(channel)
}

// BuildSnapshot flattens a batch of channel results and classifies the
// failure mode: per-channel errors become non-blocking warnings when at
// least one channel produced items; if every channel failed the snapshot
// is marked AllFailed so callers surface a blocking "nothing available"
// state.
func BuildSnapshot(results []models.ChannelResult, now time.Time) models.PlaylistSnapshot {
	snapshot := models.PlaylistSnapshot{
		Items:     Flatten(results),
		FetchedAt: now,
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
			snapshot.Warnings = append(snapshot.Warnings,
				fmt.Sprintf("%s: %s", ChannelLabel(r.Channel), r.Err))
		}
	}
	snapshot.AllFailed = len(results) > 0 && failed == len(results)
	return snapshot
}
