package bridge

import (
	"sync"
	"testing"
	"time"

	"slideflow/models"
)

type recordingSinks struct {
	mu          sync.Mutex
	channels    []string
	cadence     time.Duration
	interval    time.Duration
	style       models.TransitionStyle
	playlist    []models.MediaItem
	instruction string
	enabled     bool
	configured  int
}

func (r *recordingSinks) SetChannels(channels []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = channels
}

func (r *recordingSinks) SetSlideInterval(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cadence = interval
}

func (r *recordingSinks) Configure(interval time.Duration, style models.TransitionStyle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = interval
	r.style = style
	r.configured++
}

func (r *recordingSinks) SetPlaylist(items []models.MediaItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playlist = items
}

func (r *recordingSinks) SetInstruction(instruction string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instruction = instruction
}

func (r *recordingSinks) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

func prefs() models.Preferences {
	return models.Preferences{
		Channels:        []string{"pics", "aww"},
		IntervalSeconds: 12,
		Transition:      models.TransitionSlide,
		Instruction:     "be brief",
		CaptionsEnabled: true,
	}
}

func TestApplyFansOutToAllComponents(t *testing.T) {
	sinks := &recordingSinks{}
	b := New(sinks, sinks, sinks)
	b.SetActiveUser("u1", prefs())

	sinks.mu.Lock()
	defer sinks.mu.Unlock()
	if len(sinks.channels) != 2 {
		t.Errorf("channels not forwarded: %v", sinks.channels)
	}
	if sinks.interval != 12*time.Second || sinks.style != models.TransitionSlide {
		t.Errorf("controller config wrong: %v %s", sinks.interval, sinks.style)
	}
	if sinks.cadence != 12*time.Second {
		t.Errorf("poller cadence input wrong: %v", sinks.cadence)
	}
	if sinks.instruction != "be brief" || !sinks.enabled {
		t.Errorf("caption config wrong: %q %v", sinks.instruction, sinks.enabled)
	}
}

func TestInactiveUserUpdatesIgnored(t *testing.T) {
	sinks := &recordingSinks{}
	b := New(sinks, sinks, sinks)
	b.SetActiveUser("u1", prefs())

	other := prefs()
	other.IntervalSeconds = 99
	b.OnPreferencesChanged("u2", other)

	sinks.mu.Lock()
	defer sinks.mu.Unlock()
	if sinks.interval != 12*time.Second {
		t.Errorf("inactive user's prefs must not apply, interval=%v", sinks.interval)
	}
}

func TestActiveUserUpdateApplies(t *testing.T) {
	sinks := &recordingSinks{}
	b := New(sinks, sinks, sinks)
	b.SetActiveUser("u1", prefs())

	updated := prefs()
	updated.IntervalSeconds = 30
	b.OnPreferencesChanged("u1", updated)

	sinks.mu.Lock()
	defer sinks.mu.Unlock()
	if sinks.interval != 30*time.Second {
		t.Errorf("active user's prefs must apply live, interval=%v", sinks.interval)
	}
	if sinks.configured != 2 {
		t.Errorf("expected two configure calls, got %d", sinks.configured)
	}
}

func TestDegradedNoticeLifecycle(t *testing.T) {
	sinks := &recordingSinks{}
	b := New(sinks, sinks, sinks)

	if _, degraded := b.Notice(); degraded {
		t.Fatal("bridge must start healthy")
	}

	b.OnSnapshot(models.PlaylistSnapshot{AllFailed: true, Warnings: []string{"Pics: forbidden"}})
	notice, degraded := b.Notice()
	if !degraded || notice == "" {
		t.Fatalf("all-failed snapshot must set the notice, got %q", notice)
	}

	b.OnSnapshot(models.PlaylistSnapshot{Items: []models.MediaItem{{ID: "a"}}})
	if _, degraded := b.Notice(); degraded {
		t.Error("successful poll must clear the notice")
	}

	sinks.mu.Lock()
	defer sinks.mu.Unlock()
	if len(sinks.playlist) != 1 {
		t.Errorf("snapshot items must reach the controller, got %d", len(sinks.playlist))
	}
}
