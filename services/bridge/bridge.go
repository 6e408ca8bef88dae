package bridge

import (
	"log"
	"sync"
	"time"

	"slideflow/models"
)

// ChannelSink receives channel-list and cadence updates. Implemented by
// playlist.Poller.
type ChannelSink interface {
	SetChannels(channels []string)
	SetSlideInterval(interval time.Duration)
}

// SlideshowSink receives live slideshow reconfiguration. Implemented by
// slideshow.Controller.
type SlideshowSink interface {
	Configure(interval time.Duration, style models.TransitionStyle)
	SetPlaylist(items []models.MediaItem)
}

// CaptionSink receives caption reconfiguration. Implemented by
// caption.Coordinator.
type CaptionSink interface {
	SetInstruction(instruction string)
	SetEnabled(enabled bool)
}

// Bridge maps preference snapshots into live reconfiguration of the
// poller, the slideshow controller, and the caption coordinator. No
// component is torn down on a settings change. It also owns the single
// process-wide degraded notice: set when a poll yields nothing, cleared on
// the first successful poll, and read by exactly one consumer (the status
// endpoint).
type Bridge struct {
	channels ChannelSink
	show     SlideshowSink
	captions CaptionSink

	mu         sync.Mutex
	activeUser string
	degraded   bool
	notice     string
}

// New wires the bridge to its three dependent components.
func New(channels ChannelSink, show SlideshowSink, captions CaptionSink) *Bridge {
	return &Bridge{
		channels: channels,
		show:     show,
		captions: captions,
	}
}

// SetActiveUser switches whose preferences drive the slideshow and applies
// that user's snapshot immediately.
func (b *Bridge) SetActiveUser(userID string, prefs models.Preferences) {
	b.mu.Lock()
	b.activeUser = userID
	b.mu.Unlock()
	b.apply(prefs)
}

// ActiveUser returns the account currently driving the slideshow.
func (b *Bridge) ActiveUser() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeUser
}

// OnPreferencesChanged is subscribed to the settings service. Updates from
// users other than the active one are ignored; the slideshow follows one
// set of preferences at a time.
func (b *Bridge) OnPreferencesChanged(userID string, prefs models.Preferences) {
	b.mu.Lock()
	active := b.activeUser
	b.mu.Unlock()
	if userID != active {
		return
	}
	b.apply(prefs)
}

// apply dispatches one preferences snapshot to the three components. The
// caption instruction takes effect on the next triggered request; the
// interval and style apply live without resetting position.
func (b *Bridge) apply(prefs models.Preferences) {
	interval := time.Duration(prefs.IntervalSeconds) * time.Second
	b.channels.SetChannels(prefs.Channels)
	b.channels.SetSlideInterval(interval)
	b.show.Configure(interval, prefs.Transition)
	b.captions.SetInstruction(prefs.Instruction)
	b.captions.SetEnabled(prefs.CaptionsEnabled)
}

// OnSnapshot is subscribed to the poller: it forwards the playlist to the
// controller and maintains the degraded notice.
func (b *Bridge) OnSnapshot(snapshot models.PlaylistSnapshot) {
	b.show.SetPlaylist(snapshot.Items)

	b.mu.Lock()
	defer b.mu.Unlock()
	if snapshot.AllFailed {
		if !b.degraded {
			log.Printf("[bridge] no content available from any channel")
		}
		b.degraded = true
		b.notice = "nothing available right now"
		if len(snapshot.Warnings) > 0 {
			b.notice = snapshot.Warnings[0]
		}
		return
	}
	if b.degraded {
		log.Printf("[bridge] content recovered")
	}
	b.degraded = false
	b.notice = ""
}

// Notice returns the current degraded notice, if any.
func (b *Bridge) Notice() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notice, b.degraded
}
